// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package modbus

import (
	"net"
	"sync"
	"time"
)

// TCPTransporterConfig configures a TCPTransporter.
type TCPTransporterConfig struct {
	Address        string
	ConnectTimeout time.Duration
	KeepAlive      time.Duration // 0 disables TCP keep-alive
}

// DefaultTCPTransporterConfig returns sane defaults for a Modbus/TCP client
// connection to address.
func DefaultTCPTransporterConfig(address string) TCPTransporterConfig {
	return TCPTransporterConfig{
		Address:        address,
		ConnectTimeout: 5 * time.Second,
		KeepAlive:      30 * time.Second,
	}
}

// TCPTransporter implements Transport over a net.Conn. It owns only
// raw I/O: dialing, reading, writing, and closing the socket. Framing,
// transaction ids, and retries live in Framer and TransactionManager, not
// here.
type TCPTransporter struct {
	mu     sync.Mutex
	config TCPTransporterConfig
	conn   net.Conn
}

// NewTCPTransporter dials config.Address and returns a ready Transport.
func NewTCPTransporter(config TCPTransporterConfig) (*TCPTransporter, error) {
	conn, err := net.DialTimeout("tcp", config.Address, config.ConnectTimeout)
	if err != nil {
		return nil, &IOError{Kind: IOErrorConnectFailed, Err: err}
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok && config.KeepAlive > 0 {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(config.KeepAlive)
	}
	return &TCPTransporter{config: config, conn: conn}, nil
}

// NewTCPTransporterFromConn wraps an already-connected net.Conn, used by the
// server side to adopt an accepted connection as a Transport.
func NewTCPTransporterFromConn(conn net.Conn) *TCPTransporter {
	return &TCPTransporter{conn: conn}
}

func (t *TCPTransporter) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return &IOError{Kind: IOErrorDisconnected}
	}
	if _, err := t.conn.Write(data); err != nil {
		return &IOError{Kind: IOErrorDisconnected, Err: err}
	}
	return nil
}

func (t *TCPTransporter) Recv(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, &IOError{Kind: IOErrorDisconnected}
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, nil
		}
		return nil, &IOError{Kind: IOErrorDisconnected, Err: err}
	}
	return buf[:n], nil
}

// Reconnect closes the current socket, if any, and redials config.Address.
// It fails with a *ConfigError when this transporter was built via
// NewTCPTransporterFromConn, which has
// no dial configuration to redial with — that constructor is for adopting
// an already-open connection (e.g. a server's accepted client), not for a
// client that may need to reconnect.
func (t *TCPTransporter) Reconnect() error {
	t.mu.Lock()
	config := t.config
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()

	if config.Address == "" {
		return &ConfigError{Message: "tcp transport has no dial configuration to reconnect with"}
	}

	conn, err := net.DialTimeout("tcp", config.Address, config.ConnectTimeout)
	if err != nil {
		return &IOError{Kind: IOErrorConnectFailed, Err: err}
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok && config.KeepAlive > 0 {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(config.KeepAlive)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *TCPTransporter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *TCPTransporter) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// LocalAddr and RemoteAddr expose the underlying socket's endpoints, used
// by server-side logging to identify a client connection.
func (t *TCPTransporter) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

func (t *TCPTransporter) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}
