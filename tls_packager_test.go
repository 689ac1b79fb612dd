package modbus

import (
	"bytes"
	"testing"
)

func TestTLSFramer_EncodeDecode(t *testing.T) {
	f := NewTLSFramer()
	pdu := &ProtocolDataUnit{
		FunctionCode: FuncCodeReadHoldingRegisters,
		Data:         []byte{0x00, 0x6B, 0x00, 0x03},
	}

	frame, err := f.Encode(pdu)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	consumed, got, err := f.Decode(frame, RoleServer)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if consumed != len(frame) {
		t.Errorf("consumed = %d, want %d", consumed, len(frame))
	}
	if got.DeviceId != 0 || got.TransactionId != 0 {
		t.Errorf("decoded ids = (%d, %d), want (0, 0)", got.DeviceId, got.TransactionId)
	}
	if !bytes.Equal(got.Data, pdu.Data) {
		t.Errorf("decoded data = %v, want %v", got.Data, pdu.Data)
	}
}

func TestTLSFramer_Encode_RejectsNonZeroIDs(t *testing.T) {
	f := NewTLSFramer()
	if _, err := f.Encode(&ProtocolDataUnit{DeviceId: 1, FunctionCode: FuncCodeReadCoils}); err == nil {
		t.Error("Encode should reject a non-zero device id")
	}
	if _, err := f.Encode(&ProtocolDataUnit{TransactionId: 1, FunctionCode: FuncCodeReadCoils}); err == nil {
		t.Error("Encode should reject a non-zero transaction id")
	}
}

func TestTLSFramer_Decode_RejectsNonZeroIDs(t *testing.T) {
	// Build a well-formed MBAP frame with non-zero ids via the plain TCP
	// framer, then feed it to the TLS framer.
	frame, err := NewTCPFramer().Encode(&ProtocolDataUnit{
		TransactionId: 5,
		DeviceId:      1,
		FunctionCode:  FuncCodeReadCoils,
		Data:          []byte{0x00, 0x00, 0x00, 0x01},
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	f := NewTLSFramer()
	consumed, pdu, err := f.Decode(frame, RoleServer)
	if err == nil {
		t.Fatalf("expected a FrameError for non-zero ids")
	}
	if _, ok := err.(*FrameError); !ok {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if consumed != len(frame) {
		t.Errorf("consumed = %d, want %d (skip the rejected frame)", consumed, len(frame))
	}
	if pdu != nil {
		t.Errorf("pdu = %+v, want nil", pdu)
	}
}

func TestTLSFramer_HasTransactionID(t *testing.T) {
	if NewTLSFramer().HasTransactionID() {
		t.Error("the pinned-to-zero MBAP field cannot correlate responses; matching is positional")
	}
}
