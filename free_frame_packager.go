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

// FreeFrameFramer implements Framer for a PDU with SkipEncode set: the
// Data bytes travel over the wire completely unchanged, with no header,
// CRC, or length byte added. This backs raw/custom function codes that a
// caller wants to hand-roll rather than have a standard Framer interpret.
type FreeFrameFramer struct{}

// NewFreeFrameFramer returns a stateless pass-through framer.
func NewFreeFrameFramer() *FreeFrameFramer {
	return &FreeFrameFramer{}
}

func (f *FreeFrameFramer) Encode(pdu *ProtocolDataUnit) ([]byte, error) {
	if len(pdu.Data) == 0 {
		return nil, &ConfigError{Message: "free frame payload cannot be empty"}
	}
	out := make([]byte, len(pdu.Data))
	copy(out, pdu.Data)
	return out, nil
}

// HasTransactionID reports false: a free frame carries no header at all,
// let alone a transaction id, so it is matched positionally like RTU/ASCII.
func (f *FreeFrameFramer) HasTransactionID() bool { return false }

func (f *FreeFrameFramer) Decode(buffer []byte, role FramerRole) (int, *ProtocolDataUnit, error) {
	if len(buffer) == 0 {
		return 0, nil, nil
	}
	return len(buffer), &ProtocolDataUnit{SkipEncode: true, Data: append([]byte(nil), buffer...)}, nil
}
