// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"testing"
)

func TestCRC(t *testing.T) {
	var crc1 crc
	crc1.reset()
	crc1.pushBytes([]byte{0x02, 0x07})

	if crc1.value() != 0x1241 {
		t.Fatalf("crc expected %v, actual %v", 0x1241, crc1.value())
	}
}

func TestComputeCRCMatchesBitwise(t *testing.T) {
	data := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03}
	var bitwise crc
	bitwise.reset().pushBytes(data)

	if got := ComputeCRC(data); got != bitwise.value() {
		t.Fatalf("ComputeCRC = 0x%04X, bitwise = 0x%04X", got, bitwise.value())
	}
}

func TestCheckCRC(t *testing.T) {
	data := []byte{0x11, 0x05, 0x00, 0xAC, 0xFF, 0x00}
	frame := AppendCRC(append([]byte{}, data...))

	if !CheckCRC(frame) {
		t.Fatalf("expected CheckCRC to accept a freshly appended CRC")
	}

	broken := append([]byte{}, frame...)
	broken[len(broken)-1] ^= 0xFF
	if CheckCRC(broken) {
		t.Fatalf("expected CheckCRC to reject a flipped CRC byte")
	}

	flippedPayload := append([]byte{}, frame...)
	flippedPayload[0] ^= 0x01
	if CheckCRC(flippedPayload) {
		t.Fatalf("expected CheckCRC to reject a flipped payload bit")
	}
}

func TestCheckCRCKnownWriteSingleCoilFrame(t *testing.T) {
	frame := []byte{0x11, 0x05, 0x00, 0xAC, 0xFF, 0x00, 0x4E, 0x8B}
	if !CheckCRC(frame) {
		t.Fatalf("known-good frame failed CRC check")
	}
}
