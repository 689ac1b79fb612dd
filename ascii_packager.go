package modbus

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	asciiStart = ':'
	asciiCR    = '\r'
	asciiLF    = '\n'
)

// ASCIIFramer implements Framer for Modbus ASCII: start-of-frame ':',
// hex-encoded device id + PDU + LRC, terminated by CRLF. Unlike
// RTU/TCP, frame boundaries are explicit in the byte stream, so Decode can
// resync by scanning forward for the next ':' instead of dropping exactly
// one byte.
type ASCIIFramer struct{}

// NewASCIIFramer returns a stateless ASCII framer.
func NewASCIIFramer() *ASCIIFramer {
	return &ASCIIFramer{}
}

func (f *ASCIIFramer) Encode(pdu *ProtocolDataUnit) ([]byte, error) {
	body := make([]byte, 1+1+len(pdu.Data))
	body[0] = pdu.DeviceId
	body[1] = pdu.FunctionCode
	copy(body[2:], pdu.Data)
	body = append(body, ComputeLRC(body))

	encoded := make([]byte, hex.EncodedLen(len(body)))
	hex.Encode(encoded, body)
	upper := bytes.ToUpper(encoded)

	frame := make([]byte, 0, 1+len(upper)+2)
	frame = append(frame, asciiStart)
	frame = append(frame, upper...)
	frame = append(frame, asciiCR, asciiLF)
	return frame, nil
}

// HasTransactionID reports false: like RTU, ASCII has no transaction id
// field on the wire, so responses are matched positionally.
func (f *ASCIIFramer) HasTransactionID() bool { return false }

func (f *ASCIIFramer) Decode(buffer []byte, role FramerRole) (int, *ProtocolDataUnit, error) {
	start := bytes.IndexByte(buffer, asciiStart)
	if start < 0 {
		return len(buffer), nil, nil // nothing useful buffered; drop it all
	}
	if start > 0 {
		return start, nil, &FrameError{Kind: FrameErrorResync, Consumed: start, Message: "discarding bytes before ASCII start-of-frame"}
	}

	end := bytes.Index(buffer, []byte{asciiCR, asciiLF})
	if end < 0 {
		return 0, nil, nil
	}

	hexBody := buffer[1:end]
	if len(hexBody)%2 != 0 || len(hexBody) < 4 {
		return end + 2, nil, &FrameError{Kind: FrameErrorShort, Consumed: end + 2, Message: "malformed ASCII frame body"}
	}

	body := make([]byte, hex.DecodedLen(len(hexBody)))
	if _, err := hex.Decode(body, hexBody); err != nil {
		return end + 2, nil, &FrameError{Kind: FrameErrorShort, Consumed: end + 2, Message: fmt.Sprintf("invalid ASCII hex encoding: %v", err)}
	}

	if !CheckLRC(body) {
		return end + 2, nil, &FrameError{Kind: FrameErrorLRC, Consumed: end + 2, Message: "ASCII LRC mismatch"}
	}

	pdu := &ProtocolDataUnit{
		DeviceId:     body[0],
		FunctionCode: body[1],
		Data:         append([]byte(nil), body[2:len(body)-1]...),
	}
	return end + 2, pdu, nil
}
