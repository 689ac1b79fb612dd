package modbus

// TLSFramer is the Modbus/TCP MBAP framing run over a TLS-wrapped stream.
// The layout is identical to plain TCP, but the
// protocol restricts Modbus/TLS to device_id=0 and transaction_id=0 (the
// TLS channel itself carries the identity and correlation a TCP connection
// would otherwise need the MBAP header for); Encode and Decode both reject
// anything else rather than silently accepting a bare-TCP frame.
type TLSFramer struct {
	TCPFramer
}

// NewTLSFramer returns a stateless Modbus/TLS framer.
func NewTLSFramer() *TLSFramer {
	return &TLSFramer{}
}

func (f *TLSFramer) Encode(pdu *ProtocolDataUnit) ([]byte, error) {
	if pdu.DeviceId != 0 || pdu.TransactionId != 0 {
		return nil, &FrameError{Kind: FrameErrorShort, Message: "modbus/TLS requires device_id=0 and transaction_id=0"}
	}
	return f.TCPFramer.Encode(pdu)
}

// HasTransactionID reports false: the MBAP field is present on the wire but
// pinned to 0, so it cannot correlate responses. Matching falls back to the
// positional/FIFO discipline RTU and ASCII use.
func (f *TLSFramer) HasTransactionID() bool { return false }

func (f *TLSFramer) Decode(buffer []byte, role FramerRole) (int, *ProtocolDataUnit, error) {
	consumed, pdu, err := f.TCPFramer.Decode(buffer, role)
	if err != nil || pdu == nil {
		return consumed, pdu, err
	}
	if pdu.DeviceId != 0 || pdu.TransactionId != 0 {
		return consumed, nil, &FrameError{Kind: FrameErrorShort, Consumed: consumed, Message: "modbus/TLS frame carried non-zero device_id or transaction_id"}
	}
	return consumed, pdu, nil
}
