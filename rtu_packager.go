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

import "fmt"

// RTUFramer implements Framer for Modbus RTU: device id, PDU, CRC-16,
// little-endian on the wire. There is no length-prefix or
// delimiter; frame boundaries come from inter-character silence at the
// transport level, so Decode always treats the whole buffer handed to it
// as the start of one candidate frame.
type RTUFramer struct{}

// NewRTUFramer returns a stateless RTU framer.
func NewRTUFramer() *RTUFramer {
	return &RTUFramer{}
}

func (f *RTUFramer) Encode(pdu *ProtocolDataUnit) ([]byte, error) {
	if pdu.DeviceId > 247 && pdu.DeviceId != 0 {
		return nil, &ConfigError{Message: fmt.Sprintf("invalid device id %d (must be 0-247)", pdu.DeviceId)}
	}
	body := make([]byte, 1+len(pdu.Data))
	body[0] = pdu.FunctionCode
	copy(body[1:], pdu.Data)

	frame := make([]byte, 1+len(body))
	frame[0] = pdu.DeviceId
	copy(frame[1:], body)
	return AppendCRC(frame), nil
}

// HasTransactionID reports false: RTU has no transaction id field on the
// wire, so the TransactionManager matches responses positionally instead.
func (f *RTUFramer) HasTransactionID() bool { return false }

func (f *RTUFramer) Decode(buffer []byte, role FramerRole) (int, *ProtocolDataUnit, error) {
	if len(buffer) < 4 {
		return 0, nil, nil
	}

	length, ok := predictPDULength(buffer[1:], role)
	if !ok {
		if len(buffer) > 256 {
			return 1, nil, &FrameError{Kind: FrameErrorShort, Consumed: 1, Message: "RTU frame exceeds maximum length without resolving"}
		}
		return 0, nil, nil
	}

	total := 1 + length + 2 // device id + pdu + crc
	if len(buffer) < total {
		return 0, nil, nil
	}

	frame := buffer[:total]
	if !CheckCRC(frame) {
		return 1, nil, &FrameError{Kind: FrameErrorCRC, Consumed: 1, Message: "RTU CRC mismatch"}
	}

	pdu := &ProtocolDataUnit{
		DeviceId:     frame[0],
		FunctionCode: frame[1],
		Data:         append([]byte(nil), frame[2:total-2]...),
	}
	return total, pdu, nil
}
