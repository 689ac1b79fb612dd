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
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTCPFramer_EncodeDecode(t *testing.T) {
	f := NewTCPFramer()
	pdu := &ProtocolDataUnit{
		TransactionId: 0x1234,
		DeviceId:      0x01,
		FunctionCode:  FuncCodeReadHoldingRegisters,
		Data:          []byte{0x00, 0x00, 0x00, 0x01},
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
	// got.SkipEncode/SubFunctionCode are zero-value on a plain decode, so a
	// full-struct diff catches any stray field the byte-by-byte checks
	// below wouldn't.
	if diff := cmp.Diff(pdu, got); diff != "" {
		t.Errorf("decoded PDU mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(got.Data, pdu.Data) {
		t.Errorf("Data = %v, want %v", got.Data, pdu.Data)
	}
}

// TestTCPFramer_ReadHoldingRegistersKnownBytes runs a known request frame
// against a known register layout and checks the exact response bytes.
func TestTCPFramer_ReadHoldingRegistersKnownBytes(t *testing.T) {
	f := NewTCPFramer()
	requestFrame := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x11, 0x03, 0x00, 0x6B, 0x00, 0x03}

	consumed, req, err := f.Decode(requestFrame, RoleServer)
	if err != nil {
		t.Fatalf("Decode request failed: %v", err)
	}
	if consumed != len(requestFrame) {
		t.Fatalf("consumed = %d, want %d", consumed, len(requestFrame))
	}

	ctx := NewSlaveContext(0x100)
	// Zero-based addressing so wire address 0x6B lands on block cell 0x6B,
	// matching the scenario's literal register layout.
	ctx.ZeroMode = true
	if err := ctx.HoldingRegisters.SetRegisters(0x6B, []uint16{0xAE41, 0x5652, 0x4340}); err != nil {
		t.Fatalf("seeding holding registers failed: %v", err)
	}

	request, err := DecodeRequest(req)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}
	response, err := request.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	response.TransactionId = req.TransactionId
	response.DeviceId = req.DeviceId

	gotFrame, err := f.Encode(response)
	if err != nil {
		t.Fatalf("Encode response failed: %v", err)
	}

	wantFrame := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 0x11, 0x03, 0x06, 0xAE, 0x41, 0x56, 0x52, 0x43, 0x40}
	if !bytes.Equal(gotFrame, wantFrame) {
		t.Errorf("response frame = % X, want % X", gotFrame, wantFrame)
	}
}

// TestReadHoldingRegistersOversizedCount checks that an out-of-range
// count on FC3 yields exception code 0x03 (illegal data value).
func TestReadHoldingRegistersOversizedCount(t *testing.T) {
	pdu := &ProtocolDataUnit{
		TransactionId: 1,
		DeviceId:      1,
		FunctionCode:  FuncCodeReadHoldingRegisters,
		Data:          []byte{0x00, 0x00, 0x08, 0x00}, // count = 0x0800
	}
	request, err := DecodeRequest(pdu)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}
	ctx := NewSlaveContext(0x10)
	_, err = request.Execute(ctx)
	if err == nil {
		t.Fatalf("expected an error for an oversized register count")
	}
	mbErr, ok := err.(*ModbusError)
	if !ok {
		t.Fatalf("expected *ModbusError, got %T", err)
	}
	if mbErr.ExceptionCode != ExceptionIllegalDataValue {
		t.Errorf("ExceptionCode = %v, want ExceptionIllegalDataValue", mbErr.ExceptionCode)
	}

	resp := NewExceptionResponse(pdu.FunctionCode, mbErr.ExceptionCode)
	if resp.FunctionCode != 0x83 {
		t.Errorf("exception FunctionCode = %#02x, want 0x83", resp.FunctionCode)
	}
	if resp.Data[0] != 0x03 {
		t.Errorf("exception code byte = %#02x, want 0x03", resp.Data[0])
	}
}

func TestTCPFramer_Decode_NeedsMoreData(t *testing.T) {
	f := NewTCPFramer()
	consumed, pdu, err := f.Decode([]byte{0x00, 0x01, 0x00, 0x00, 0x00}, RoleServer)
	if err != nil || pdu != nil || consumed != 0 {
		t.Errorf("short header: got (%d, %+v, %v), want (0, nil, nil)", consumed, pdu, err)
	}
}

func TestTCPFramer_Decode_InvalidProtocolID(t *testing.T) {
	f := NewTCPFramer()
	frame := []byte{0x00, 0x01, 0xFF, 0xFF, 0x00, 0x02, 0x01, 0x03}
	_, _, err := f.Decode(frame, RoleServer)
	if err == nil {
		t.Error("Decode should reject a non-zero protocol identifier")
	}
	if _, ok := err.(*FrameError); !ok {
		t.Errorf("expected *FrameError, got %T", err)
	}
}

func TestTCPFramer_Decode_InvalidLength(t *testing.T) {
	f := NewTCPFramer()
	frame := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x03}
	_, _, err := f.Decode(frame, RoleServer)
	if err == nil {
		t.Error("Decode should reject a zero length field")
	}
}

func TestTCPFramer_Encode_PDUTooLarge(t *testing.T) {
	f := NewTCPFramer()
	_, err := f.Encode(&ProtocolDataUnit{FunctionCode: FuncCodeReadHoldingRegisters, Data: make([]byte, MaxPDULength)})
	if err == nil {
		t.Error("Encode should reject a PDU exceeding MaxPDULength")
	}
}
