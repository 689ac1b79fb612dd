package modbus

import (
	"io"
	"net"
	"time"
)

// ClientConfig tunes the TransactionManager and Client a handler
// constructor builds: how long to wait for a response, how many times to
// retry, and the link-level behaviors that vary across framings.
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int

	// DeviceID is the slave address a Client defaults to when a caller
	// doesn't override it; see Client.DefaultDeviceID.
	DeviceID uint8

	// BroadcastEnable gates device id 0 fire-and-forget requests.
	BroadcastEnable bool

	// ZeroMode reports the server's addressing convention; see
	// Client.ZeroMode.
	ZeroMode bool

	// HandleLocalEcho discards the half-duplex line's echo of the
	// transmitted request before looking for the real response (common on
	// RTU/ASCII serial lines); see TransactionManager.HandleLocalEcho.
	HandleLocalEcho bool

	// ReconnectDelayMin/Max bound the exponential backoff applied before a
	// reconnect attempt following a disconnection.
	ReconnectDelayMin time.Duration
	ReconnectDelayMax time.Duration
}

// DefaultClientConfig returns the conservative client defaults. A handler
// constructor takes only Timeout, MaxRetries, ReconnectDelayMin and
// ReconnectDelayMax from them, where the passed ClientConfig leaves those
// zero; boolean fields such as BroadcastEnable keep the caller's value.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           1 * time.Second,
		MaxRetries:        3,
		BroadcastEnable:   true,
		ReconnectDelayMin: 100 * time.Millisecond,
		ReconnectDelayMax: 5 * time.Minute,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	defaults := DefaultClientConfig()
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.ReconnectDelayMin <= 0 {
		c.ReconnectDelayMin = defaults.ReconnectDelayMin
	}
	if c.ReconnectDelayMax <= 0 {
		c.ReconnectDelayMax = defaults.ReconnectDelayMax
	}
	return c
}

// apply wires the link-level fields cfg carries into tm and client, after
// the handler constructor has already set the timeout/retry budget that
// NewTransactionManager takes directly.
func (cfg ClientConfig) apply(tm *TransactionManager, client *Client) {
	tm.BroadcastEnable = cfg.BroadcastEnable
	tm.HandleLocalEcho = cfg.HandleLocalEcho
	tm.ReconnectDelayMin = cfg.ReconnectDelayMin
	tm.ReconnectDelayMax = cfg.ReconnectDelayMax
	client.defaultDeviceID = cfg.DeviceID
	client.zeroMode = cfg.ZeroMode
}

// NewModbusRTUHandler builds a Client speaking RTU framing over an
// already-open serial port. port is typically a *goserial line opened by
// the caller; tests substitute an in-memory io.ReadWriteCloser.
func NewModbusRTUHandler(port io.ReadWriteCloser, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	transport := NewRTUTransporterFromPort(port)
	tm := NewTransactionManager(transport, NewRTUFramer(), cfg.Timeout, cfg.MaxRetries)
	client := NewClient(tm, "RTU")
	cfg.apply(tm, client)
	return client
}

// NewModbusASCIIHandler builds a Client speaking Modbus ASCII framing over
// an already-open serial port, sharing RTUTransporter's raw I/O under
// ASCIITransporter.
func NewModbusASCIIHandler(port io.ReadWriteCloser, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	transport := NewASCIITransporterFromPort(port)
	tm := NewTransactionManager(transport, NewASCIIFramer(), cfg.Timeout, cfg.MaxRetries)
	client := NewClient(tm, "ASCII")
	cfg.apply(tm, client)
	return client
}

// NewModbusTCPHandler builds a Client speaking MBAP framing over an
// already-connected TCP socket.
func NewModbusTCPHandler(conn net.Conn, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	transport := NewTCPTransporterFromConn(conn)
	tm := NewTransactionManager(transport, NewTCPFramer(), cfg.Timeout, cfg.MaxRetries)
	client := NewClient(tm, "TCP")
	cfg.apply(tm, client)
	return client
}

// NewModbusTLSHandler builds a Client speaking MBAP framing over an
// already-handshaken TLS connection (typically a *tls.Conn). Modbus/TLS is
// point-to-point: device id and transaction id are pinned to 0 on the wire
// (TLSFramer rejects anything else), so callers address the peer as device
// id 0 and broadcast semantics do not apply.
func NewModbusTLSHandler(conn net.Conn, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	transport := NewTCPTransporterFromConn(conn)
	tm := NewTransactionManager(transport, NewTLSFramer(), cfg.Timeout, cfg.MaxRetries)
	client := NewClient(tm, "TLS")
	cfg.apply(tm, client)
	tm.PointToPoint = true
	return client
}

// NewRtuOverTCPHandler builds a Client speaking RTU framing (including CRC)
// tunneled over an already-connected TCP socket.
func NewRtuOverTCPHandler(conn net.Conn, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	transport := NewRTUOverTCPTransporterFromConn(conn)
	tm := NewTransactionManager(transport, NewRTUFramer(), cfg.Timeout, cfg.MaxRetries)
	client := NewClient(tm, "RTU_OVER_TCP")
	cfg.apply(tm, client)
	return client
}

// NewFreeFrameHandler builds a Client over any io.ReadWriteCloser with no
// framing at all: bytes pass through untouched in both directions. It is the
// escape hatch for devices speaking a vendor framing this package does not
// model — callers hand-roll the complete ADU and exchange it via
// ReadRawData; the typed builders do not apply, since there is no function
// code or device id for the stack to interpret.
func NewFreeFrameHandler(conn io.ReadWriteCloser, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	transport := NewFreeFrameTransport(conn)
	tm := NewTransactionManager(transport, NewFreeFrameFramer(), cfg.Timeout, cfg.MaxRetries)
	client := NewClient(tm, "FREE_FRAME")
	cfg.apply(tm, client)
	return client
}
