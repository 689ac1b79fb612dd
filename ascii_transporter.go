package modbus

import "io"

// ASCIITransporter is a serial-line Transport for Modbus ASCII. The raw
// I/O is identical to Modbus RTU's — only the Framer differs — so it
// reuses RTUTransporter rather than duplicating the serial port plumbing.
type ASCIITransporter struct {
	RTUTransporter
}

// NewASCIITransporter opens config.Address via goserial and returns a
// ready Transport for Modbus ASCII.
func NewASCIITransporter(config SerialConfig) (*ASCIITransporter, error) {
	rtu, err := NewRTUTransporter(config)
	if err != nil {
		return nil, err
	}
	return &ASCIITransporter{RTUTransporter: *rtu}, nil
}

// NewASCIITransporterFromPort wraps an already-open port, for tests (and
// handler constructors) that substitute an in-memory io.ReadWriteCloser
// for the physical line.
func NewASCIITransporterFromPort(port io.ReadWriteCloser) *ASCIITransporter {
	return &ASCIITransporter{RTUTransporter: *NewRTUTransporterFromPort(port)}
}
