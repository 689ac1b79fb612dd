package modbus

import (
	"encoding/binary"
	"fmt"
)

// Modbus TCP Protocol Constants
const (
	TCPHeaderLength = 7 // MBAP header length in bytes
	MaxPDULength    = 253
	// MaxMBAPLength bounds the MBAP header's length field; it is wider
	// than MaxPDULength+1 because some gateways pad beyond the strict
	// 253-byte PDU limit.
	MaxMBAPLength         = 260
	MaxTCPFrameLength     = TCPHeaderLength + MaxPDULength
	ProtocolIdentifierTCP = 0x0000
)

// TCPFramer implements Framer for Modbus TCP: a 7-byte MBAP header
// (transaction id, protocol id, length, unit id) followed by the PDU, with
// no CRC since TCP already guarantees byte-level integrity.
type TCPFramer struct{}

// NewTCPFramer returns a stateless TCP framer.
func NewTCPFramer() *TCPFramer {
	return &TCPFramer{}
}

func (f *TCPFramer) Encode(pdu *ProtocolDataUnit) ([]byte, error) {
	body := make([]byte, 1+len(pdu.Data))
	body[0] = pdu.FunctionCode
	copy(body[1:], pdu.Data)
	if len(body) > MaxPDULength {
		return nil, fmt.Errorf("modbus: PDU length %d exceeds maximum %d bytes", len(body), MaxPDULength)
	}

	length := uint16(len(body) + 1) // + unit id
	frame := make([]byte, TCPHeaderLength+len(body))
	binary.BigEndian.PutUint16(frame[0:2], pdu.TransactionId)
	binary.BigEndian.PutUint16(frame[2:4], ProtocolIdentifierTCP)
	binary.BigEndian.PutUint16(frame[4:6], length)
	frame[6] = pdu.DeviceId
	copy(frame[7:], body)
	return frame, nil
}

// HasTransactionID reports true: the MBAP header carries a real wire
// transaction id, so responses are matched to requests by id equality
// rather than FIFO order.
func (f *TCPFramer) HasTransactionID() bool { return true }

func (f *TCPFramer) Decode(buffer []byte, role FramerRole) (int, *ProtocolDataUnit, error) {
	if len(buffer) < TCPHeaderLength {
		return 0, nil, nil
	}

	protocolID := binary.BigEndian.Uint16(buffer[2:4])
	if protocolID != ProtocolIdentifierTCP {
		return 1, nil, &FrameError{Kind: FrameErrorHeader, Consumed: 1, Message: fmt.Sprintf("unexpected protocol identifier 0x%04X", protocolID)}
	}

	length := binary.BigEndian.Uint16(buffer[4:6])
	if length == 0 || int(length) > MaxMBAPLength {
		return 1, nil, &FrameError{Kind: FrameErrorHeader, Consumed: 1, Message: fmt.Sprintf("invalid MBAP length field %d", length)}
	}

	total := TCPHeaderLength + int(length) - 1 // length includes the unit id byte already counted in the header
	if len(buffer) < total {
		return 0, nil, nil
	}

	frame := buffer[:total]
	pdu := &ProtocolDataUnit{
		TransactionId: binary.BigEndian.Uint16(frame[0:2]),
		DeviceId:      frame[6],
		FunctionCode:  frame[7],
		Data:          append([]byte(nil), frame[8:total]...),
	}
	return total, pdu, nil
}
