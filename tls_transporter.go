package modbus

import (
	"crypto/tls"
	"net"
	"time"
)

// TLSTransporterConfig configures a TLSTransporter.
type TLSTransporterConfig struct {
	Address        string
	ConnectTimeout time.Duration
	TLSConfig      *tls.Config
}

// TLSTransporter implements Transport over a TLS-wrapped TCP connection.
// It delegates raw I/O to an embedded
// TCPTransporter once the handshake completes.
type TLSTransporter struct {
	TCPTransporter
}

// NewTLSTransporter dials and TLS-handshakes config.Address, returning a
// ready Transport.
func NewTLSTransporter(config TLSTransporterConfig) (*TLSTransporter, error) {
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: config.ConnectTimeout}, Config: config.TLSConfig}
	conn, err := dialer.Dial("tcp", config.Address)
	if err != nil {
		return nil, &IOError{Kind: IOErrorConnectFailed, Err: err}
	}
	return &TLSTransporter{TCPTransporter: TCPTransporter{conn: conn}}, nil
}
