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

import "net"

// RTUOverTCPTransporter carries Modbus RTU frames (device id + PDU + CRC)
// over a plain TCP socket instead of a serial line — common on gateways
// that bridge a serial bus to the network without adopting the MBAP
// header. The raw I/O is identical to Modbus/TCP's, so this simply adopts
// TCPTransporter; pair it with RTUFramer rather than TCPFramer.
type RTUOverTCPTransporter struct {
	TCPTransporter
}

// NewRTUOverTCPTransporter dials config.Address and returns a ready
// Transport for RTU-over-TCP.
func NewRTUOverTCPTransporter(config TCPTransporterConfig) (*RTUOverTCPTransporter, error) {
	tcp, err := NewTCPTransporter(config)
	if err != nil {
		return nil, err
	}
	return &RTUOverTCPTransporter{TCPTransporter: *tcp}, nil
}

// NewRTUOverTCPTransporterFromConn wraps an already-connected net.Conn, for
// the server side adopting an accepted connection.
func NewRTUOverTCPTransporterFromConn(conn net.Conn) *RTUOverTCPTransporter {
	return &RTUOverTCPTransporter{TCPTransporter: *NewTCPTransporterFromConn(conn)}
}
