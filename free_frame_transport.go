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
	"io"
	"net"
	"sync"
	"time"
)

// FreeFrameTransport adapts any io.ReadWriteCloser (serial port, TCP, UDP)
// into a Transport for use with FreeFrameFramer, so raw/custom function
// codes can ride whatever physical link a regular Framer would also use.
type FreeFrameTransport struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
}

// NewFreeFrameTransport wraps conn as a Transport.
func NewFreeFrameTransport(conn io.ReadWriteCloser) *FreeFrameTransport {
	return &FreeFrameTransport{conn: conn}
}

func (t *FreeFrameTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return &IOError{Kind: IOErrorDisconnected}
	}
	if c, ok := t.conn.(net.Conn); ok {
		c.SetWriteDeadline(time.Time{})
	}
	written := 0
	for written < len(data) {
		n, err := t.conn.Write(data[written:])
		if err != nil {
			return &IOError{Kind: IOErrorDisconnected, Err: err}
		}
		written += n
	}
	return nil
}

func (t *FreeFrameTransport) Recv(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, &IOError{Kind: IOErrorDisconnected}
	}
	if c, ok := conn.(net.Conn); ok {
		c.SetReadDeadline(time.Now().Add(timeout))
	}
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, nil
		}
		return nil, &IOError{Kind: IOErrorDisconnected, Err: err}
	}
	return buf[:n], nil
}

func (t *FreeFrameTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *FreeFrameTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}
