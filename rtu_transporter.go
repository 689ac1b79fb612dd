package modbus

import (
	"io"
	"sync"
	"time"

	serial "github.com/hootrhino/goserial"
)

// RTUTransporter implements Transport over a serial port. It performs
// only raw reads and writes; framing and CRC live in RTUFramer.
type RTUTransporter struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	config SerialConfig // zero value when opened via NewRTUTransporterFromPort
}

// SerialConfig mirrors the subset of goserial's configuration a Modbus RTU
// link needs.
type SerialConfig struct {
	Address  string
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
	Timeout  time.Duration
}

// DefaultSerialConfig returns the conventional 9600-8N1 RTU line settings.
func DefaultSerialConfig(address string) SerialConfig {
	return SerialConfig{
		Address:  address,
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
		Timeout:  1 * time.Second,
	}
}

// NewRTUTransporter opens config.Address via goserial and returns a ready
// Transport.
func NewRTUTransporter(config SerialConfig) (*RTUTransporter, error) {
	port, err := serial.Open(&serial.Config{
		Address:  config.Address,
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		Parity:   config.Parity,
		StopBits: config.StopBits,
		Timeout:  config.Timeout,
	})
	if err != nil {
		return nil, &IOError{Kind: IOErrorConnectFailed, Err: err}
	}
	return &RTUTransporter{port: port, config: config}, nil
}

// NewRTUTransporterFromPort wraps an already-open port, for tests that
// substitute an in-memory io.ReadWriteCloser for the physical line.
func NewRTUTransporterFromPort(port io.ReadWriteCloser) *RTUTransporter {
	return &RTUTransporter{port: port}
}

func (t *RTUTransporter) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return &IOError{Kind: IOErrorDisconnected}
	}
	written := 0
	for written < len(data) {
		n, err := t.port.Write(data[written:])
		if err != nil {
			return &IOError{Kind: IOErrorDisconnected, Err: err}
		}
		written += n
	}
	return nil
}

func (t *RTUTransporter) Recv(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return nil, &IOError{Kind: IOErrorDisconnected}
	}

	type deadliner interface {
		SetReadDeadline(time.Time) error
	}
	if d, ok := port.(deadliner); ok {
		d.SetReadDeadline(time.Now().Add(timeout))
	}

	buf := make([]byte, 512)
	n, err := port.Read(buf)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		type timeoutErr interface{ Timeout() bool }
		if terr, ok := err.(timeoutErr); ok && terr.Timeout() {
			return nil, nil
		}
		return nil, &IOError{Kind: IOErrorDisconnected, Err: err}
	}
	return buf[:n], nil
}

// Reconnect closes the current port, if any, and reopens config.Address
// via goserial. It fails with
// a *ConfigError when this transporter was built via
// NewRTUTransporterFromPort, which has no dial configuration to reopen.
func (t *RTUTransporter) Reconnect() error {
	t.mu.Lock()
	config := t.config
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
	t.mu.Unlock()

	if config.Address == "" {
		return &ConfigError{Message: "serial transport has no dial configuration to reconnect with"}
	}

	port, err := serial.Open(&serial.Config{
		Address:  config.Address,
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		Parity:   config.Parity,
		StopBits: config.StopBits,
		Timeout:  config.Timeout,
	})
	if err != nil {
		return &IOError{Kind: IOErrorConnectFailed, Err: err}
	}

	t.mu.Lock()
	t.port = port
	t.mu.Unlock()
	return nil
}

func (t *RTUTransporter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

func (t *RTUTransporter) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}
