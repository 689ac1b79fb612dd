package modbus

import "time"

// Transport is the raw byte-level channel a Framer's encoded frames travel
// over: a TCP/TLS socket, a serial port, or anything else that can
// send and receive bytes. It knows nothing about PDUs, transaction ids, or
// retries — that is the TransactionManager's job.
type Transport interface {
	// Send writes data in full or returns an *IOError.
	Send(data []byte) error
	// Recv blocks for up to timeout waiting for at least one byte, and
	// returns whatever arrived. A zero-length, nil-error return means the
	// timeout elapsed with nothing received.
	Recv(timeout time.Duration) ([]byte, error)
	// Close releases the underlying connection or port.
	Close() error
	// IsOpen reports whether Send/Recv are still expected to succeed.
	IsOpen() bool
}

// Reconnecter is implemented by a Transport that was opened from a dial/open
// configuration (rather than adopting an already-connected socket or port)
// and so can redial after a disconnection. TransactionManager.Execute
// checks for this optional interface to back off and reconnect before
// retrying a request whose Send/Recv failed with IOErrorDisconnected or
// IOErrorConnectFailed.
type Reconnecter interface {
	Reconnect() error
}
