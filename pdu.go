// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import "encoding/binary"

// Function codes defined in the Modbus spec.
const (
	FuncCodeReadCoils                  = 1
	FuncCodeReadDiscreteInputs         = 2
	FuncCodeReadHoldingRegisters       = 3
	FuncCodeReadInputRegisters         = 4
	FuncCodeWriteSingleCoil            = 5
	FuncCodeWriteSingleRegister        = 6
	FuncCodeReadExceptionStatus        = 7
	FuncCodeDiagnostics                = 8
	FuncCodeGetCommEventCounter        = 11
	FuncCodeGetCommEventLog            = 12
	FuncCodeWriteMultipleCoils         = 15
	FuncCodeWriteMultipleRegisters     = 16
	FuncCodeReportSlaveID              = 17
	FuncCodeReadFileRecord             = 20
	FuncCodeWriteFileRecord            = 21
	FuncCodeMaskWriteRegister          = 22
	FuncCodeReadWriteMultipleRegisters = 23
	FuncCodeReadFIFOQueue              = 24
	FuncCodeMEI                        = 43 // 0x2B: encapsulated interface transport
)

// MEI (Modbus Encapsulated Interface) sub-types used by FC 43/14.
const (
	MEITypeReadDeviceIdentification = 0x0E
)

// Diagnostics (FC 8) sub-function codes.
const (
	SubDiagReturnQueryData                    = 0x00
	SubDiagRestartCommunicationsOption        = 0x01
	SubDiagReturnDiagnosticRegister           = 0x02
	SubDiagClearCountersAndDiagnosticRegister = 0x0A
	SubDiagReturnBusMessageCount              = 0x0B
	SubDiagReturnBusCommunicationErrorCount   = 0x0C
	SubDiagReturnBusExceptionErrorCount       = 0x0D
	SubDiagReturnSlaveMessageCount            = 0x0E
	SubDiagReturnSlaveNoResponseCount         = 0x0F
)

// exceptionBit marks a response PDU's function code as an exception.
const exceptionBit = 0x80

// ProtocolDataUnit is the shared header carried by every request/response:
// function code, optional sub-function code, and the correlators a
// framer needs to route bytes back to the right caller. SkipEncode passes
// pre-encoded payload bytes straight through a framer without further PDU
// interpretation (used by raw/custom function codes).
type ProtocolDataUnit struct {
	FunctionCode    byte
	SubFunctionCode uint16
	TransactionId   uint16
	DeviceId        uint8
	SkipEncode      bool
	Data            []byte
}

// IsException reports whether the high bit of FunctionCode is set.
func (pdu *ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&exceptionBit != 0
}

// dataBlock creates a sequence of big-endian uint16 data.
func dataBlock(value ...uint16) []byte {
	data := make([]byte, 2*len(value))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}

// dataBlockSuffix creates a sequence of uint16 data and appends the suffix
// plus its length.
func dataBlockSuffix(suffix []byte, value ...uint16) []byte {
	length := 2 * len(value)
	data := make([]byte, length+1+len(suffix))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	data[length] = uint8(len(suffix))
	copy(data[length+1:], suffix)
	return data
}

// packBits packs quantity booleans, LSB first, into ceil(quantity/8) bytes.
func packBits(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// unpackBits unpacks quantity booleans, LSB first, from data.
func unpackBits(data []byte, quantity int) []bool {
	out := make([]bool, quantity)
	for i := range out {
		byteIndex := i / 8
		if byteIndex >= len(data) {
			break
		}
		out[i] = data[byteIndex]&(1<<uint(i%8)) != 0
	}
	return out
}

// unpackRegisters decodes a run of big-endian uint16 registers.
func unpackRegisters(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}

// packRegisters encodes a run of uint16 registers big-endian.
func packRegisters(values []uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[2*i:], v)
	}
	return out
}
