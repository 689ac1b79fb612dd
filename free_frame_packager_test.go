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
)

func TestFreeFrameFramer_EncodeDecode(t *testing.T) {
	f := NewFreeFrameFramer()
	pdu := &ProtocolDataUnit{SkipEncode: true, Data: []byte{0x01, 0x02, 0x03, 0xFF}}

	frame, err := f.Encode(pdu)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(frame, pdu.Data) {
		t.Errorf("Encode returned %v, want %v", frame, pdu.Data)
	}

	// Encode must copy, not alias, the PDU's data.
	frame[0] = 0x99
	if pdu.Data[0] == 0x99 {
		t.Error("Encode did not return a copy of the input data")
	}

	consumed, got, err := f.Decode(frame, RoleServer)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if consumed != len(frame) {
		t.Errorf("consumed = %d, want %d", consumed, len(frame))
	}
	if !got.SkipEncode {
		t.Error("decoded PDU should have SkipEncode set")
	}
	if !bytes.Equal(got.Data, frame) {
		t.Errorf("decoded data = %v, want %v", got.Data, frame)
	}

	// Decode must copy, not alias, the input buffer.
	got.Data[0] = 0x55
	if frame[0] == 0x55 {
		t.Error("Decode did not return a copy of the input buffer")
	}
}

func TestFreeFrameFramer_Encode_Empty(t *testing.T) {
	f := NewFreeFrameFramer()
	_, err := f.Encode(&ProtocolDataUnit{SkipEncode: true})
	if err == nil {
		t.Error("Encode should reject an empty payload")
	}
}

func TestFreeFrameFramer_Decode_Empty(t *testing.T) {
	f := NewFreeFrameFramer()
	consumed, pdu, err := f.Decode([]byte{}, RoleServer)
	if err != nil || pdu != nil || consumed != 0 {
		t.Errorf("empty buffer: got (%d, %+v, %v), want (0, nil, nil)", consumed, pdu, err)
	}
}
