// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "testing"

func TestLRC(t *testing.T) {
	var lrc1 lrc
	lrc1.reset().pushByte(0x01).pushByte(0x03)
	lrc1.pushBytes([]byte{0x01, 0x0A})

	if lrc1.value() != 0xF1 {
		t.Fatalf("lrc expected %v, actual %v", 0xF1, lrc1.value())
	}
}

func TestCheckLRC(t *testing.T) {
	payload := []byte{0x11, 0x01, 0x00, 0x13, 0x00, 0x13}
	frame := append(append([]byte{}, payload...), ComputeLRC(payload))

	if !CheckLRC(frame) {
		t.Fatalf("expected CheckLRC to accept a freshly computed LRC")
	}

	broken := append([]byte{}, frame...)
	broken[0] ^= 0x01
	if CheckLRC(broken) {
		t.Fatalf("expected CheckLRC to reject a flipped payload bit")
	}
}
