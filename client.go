// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Client is the high-level client mixin: typed request builders and
// response decoding for every standard function code, layered on top of a
// TransactionManager instead of talking to a transport directly. It
// implements ModbusApi so it drops straight into RegisterScheduler,
// RegisterManager, and the rest of the polling layer.
type Client struct {
	tm              *TransactionManager
	mode            string
	lastModbusError *ModbusError
	defaultDeviceID uint8
	zeroMode        bool
}

// NewClient builds a Client executing every request through tm. mode is a
// caller-chosen label ("TCP", "RTU", "RTU_OVER_TCP", ...) surfaced via
// GetMode and used by the polling layer to decide whether group reads may
// run concurrently.
func NewClient(tm *TransactionManager, mode string) *Client {
	return &Client{tm: tm, mode: mode}
}

// DefaultDeviceID returns the device id a handler constructor was built
// with (ClientConfig.DeviceID), for callers that address a single fixed
// slave and don't want to repeat it on every call.
func (c *Client) DefaultDeviceID() uint8 {
	return c.defaultDeviceID
}

// ZeroMode reports whether this Client's server is configured for
// zero-based addressing (ClientConfig.ZeroMode): register addresses
// on the wire start at 0 rather than the documentation convention of 1.
// Address translation itself happens on the server/datastore side; this is
// exposed so a caller building requests knows which convention is in
// effect.
func (c *Client) ZeroMode() bool {
	return c.zeroMode
}

// GetLastModbusError returns the most recent protocol exception this
// client observed, or nil if none has occurred yet.
func (c *Client) GetLastModbusError() *ModbusError {
	return c.lastModbusError
}

// GetMode returns the label this Client was constructed with.
func (c *Client) GetMode() string {
	return c.mode
}

// SetLogger redirects the underlying TransactionManager's structured log
// output to w. A nil w silences logging entirely.
func (c *Client) SetLogger(w io.Writer) {
	if w == nil {
		c.tm.Logger = zap.NewNop().Sugar()
		return
	}
	c.tm.Logger = NewStructuredLogger(LevelDebug, zapcore.AddSync(w))
}

// execute runs a request through the transaction manager and caches any
// ModbusError it returns, so a caller can inspect it later via
// GetLastModbusError without re-threading the error through every method.
func (c *Client) execute(slaveID uint8, functionCode byte, data []byte) (*ProtocolDataUnit, error) {
	response, err := c.tm.Execute(slaveID, &ProtocolDataUnit{FunctionCode: functionCode, Data: data})
	if err != nil {
		if mbErr, ok := err.(*ModbusError); ok {
			c.lastModbusError = mbErr
		}
		return nil, err
	}
	return response, nil
}

// Request:
//
//	Function code         : 1 byte (0x01)
//	Starting address      : 2 bytes
//	Quantity of coils     : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x01)
//	Byte count            : 1 byte
//	Coil status           : N* bytes (=N or N+1)
func (c *Client) ReadCoils(slaveID uint16, startAddress, quantity uint16) ([]bool, error) {
	if quantity < 1 || quantity > 2000 {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 2000)
	}
	response, err := c.execute(uint8(slaveID), FuncCodeReadCoils, dataBlock(startAddress, quantity))
	if err != nil {
		return nil, err
	}
	payload, err := byteCountPayload(response.Data)
	if err != nil {
		return nil, err
	}
	return unpackBits(payload, int(quantity)), nil
}

// Request:
//
//	Function code         : 1 byte (0x02)
//	Starting address      : 2 bytes
//	Quantity of inputs    : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x02)
//	Byte count            : 1 byte
//	Input status          : N* bytes (=N or N+1)
func (c *Client) ReadDiscreteInputs(slaveID uint16, startAddress, quantity uint16) ([]bool, error) {
	if quantity < 1 || quantity > 2000 {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 2000)
	}
	response, err := c.execute(uint8(slaveID), FuncCodeReadDiscreteInputs, dataBlock(startAddress, quantity))
	if err != nil {
		return nil, err
	}
	payload, err := byteCountPayload(response.Data)
	if err != nil {
		return nil, err
	}
	return unpackBits(payload, int(quantity)), nil
}

// Request:
//
//	Function code         : 1 byte (0x03)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x03)
//	Byte count            : 1 byte
//	Register value        : Nx2 bytes
func (c *Client) ReadHoldingRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > 125 {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 125)
	}
	response, err := c.execute(uint8(slaveID), FuncCodeReadHoldingRegisters, dataBlock(startAddress, quantity))
	if err != nil {
		return nil, err
	}
	payload, err := byteCountPayload(response.Data)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(payload), nil
}

// Request:
//
//	Function code         : 1 byte (0x04)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
//
// Response:
//
//	Function code         : 1 byte (0x04)
//	Byte count            : 1 byte
//	Input registers       : N bytes
func (c *Client) ReadInputRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > 125 {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 125)
	}
	response, err := c.execute(uint8(slaveID), FuncCodeReadInputRegisters, dataBlock(startAddress, quantity))
	if err != nil {
		return nil, err
	}
	payload, err := byteCountPayload(response.Data)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(payload), nil
}

// Request:
//
//	Function code         : 1 byte (0x05)
//	Output address        : 2 bytes
//	Output value          : 2 bytes
//
// Response echoes the request unchanged.
func (c *Client) WriteSingleCoil(slaveID uint16, address uint16, value bool) error {
	wireValue := uint16(0x0000)
	if value {
		wireValue = 0xFF00
	}
	response, err := c.execute(uint8(slaveID), FuncCodeWriteSingleCoil, dataBlock(address, wireValue))
	if err != nil {
		return err
	}
	return verifyEchoedAddressValue(response.Data, address, wireValue)
}

// Request:
//
//	Function code         : 1 byte (0x06)
//	Register address      : 2 bytes
//	Register value        : 2 bytes
//
// Response echoes the request unchanged.
func (c *Client) WriteSingleRegister(slaveID uint16, address, value uint16) error {
	response, err := c.execute(uint8(slaveID), FuncCodeWriteSingleRegister, dataBlock(address, value))
	if err != nil {
		return err
	}
	return verifyEchoedAddressValue(response.Data, address, value)
}

// Request:
//
//	Function code         : 1 byte (0x0F)
//	Starting address      : 2 bytes
//	Quantity of outputs   : 2 bytes
//	Byte count            : 1 byte
//	Outputs value         : N* bytes
//
// Response:
//
//	Function code         : 1 byte (0x0F)
//	Starting address      : 2 bytes
//	Quantity of outputs   : 2 bytes
func (c *Client) WriteMultipleCoils(slaveID uint16, startAddress uint16, values []bool) error {
	quantity := uint16(len(values))
	if quantity < 1 || quantity > 1968 {
		return fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 1968)
	}
	response, err := c.execute(uint8(slaveID), FuncCodeWriteMultipleCoils, dataBlockSuffix(packBits(values), startAddress, quantity))
	if err != nil {
		return err
	}
	return verifyEchoedAddressValue(response.Data, startAddress, quantity)
}

// Request:
//
//	Function code         : 1 byte (0x10)
//	Starting address      : 2 bytes
//	Quantity of outputs   : 2 bytes
//	Byte count            : 1 byte
//	Registers value       : N* bytes
//
// Response:
//
//	Function code         : 1 byte (0x10)
//	Starting address      : 2 bytes
//	Quantity of registers : 2 bytes
func (c *Client) WriteMultipleRegisters(slaveID uint16, startAddress uint16, values []uint16) error {
	quantity := uint16(len(values))
	if quantity < 1 || quantity > 123 {
		return fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 123)
	}
	response, err := c.execute(uint8(slaveID), FuncCodeWriteMultipleRegisters, dataBlockSuffix(packRegisters(values), startAddress, quantity))
	if err != nil {
		return err
	}
	return verifyEchoedAddressValue(response.Data, startAddress, quantity)
}

// Request:
//
//	Function code         : 1 byte (0x07)
//
// Response:
//
//	Function code         : 1 byte (0x07)
//	Exception status       : 1 byte
func (c *Client) ReadExceptionStatus(slaveID uint16) (byte, error) {
	response, err := c.execute(uint8(slaveID), FuncCodeReadExceptionStatus, nil)
	if err != nil {
		return 0, err
	}
	if len(response.Data) != 1 {
		return 0, fmt.Errorf("modbus: exception status response size '%v' does not match expected '%v'", len(response.Data), 1)
	}
	return response.Data[0], nil
}

// Diagnostics sends FC8 with subFunction and payload data, returning the
// sub-function code and data echoed (or computed) by the server.
func (c *Client) Diagnostics(slaveID uint16, subFunction uint16, data []byte) (uint16, []byte, error) {
	request := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(request, subFunction)
	copy(request[2:], data)
	response, err := c.execute(uint8(slaveID), FuncCodeDiagnostics, request)
	if err != nil {
		return 0, nil, err
	}
	if len(response.Data) < 2 {
		return 0, nil, fmt.Errorf("modbus: diagnostics response too short: %d bytes", len(response.Data))
	}
	return binary.BigEndian.Uint16(response.Data[0:2]), response.Data[2:], nil
}

// Request:
//
//	Function code         : 1 byte (0x0B)
//
// Response:
//
//	Function code         : 1 byte (0x0B)
//	Status                 : 2 bytes
//	Event count            : 2 bytes
func (c *Client) GetCommEventCounter(slaveID uint16) (status, eventCount uint16, err error) {
	response, err := c.execute(uint8(slaveID), FuncCodeGetCommEventCounter, nil)
	if err != nil {
		return 0, 0, err
	}
	if len(response.Data) != 4 {
		return 0, 0, fmt.Errorf("modbus: comm event counter response size '%v' does not match expected '%v'", len(response.Data), 4)
	}
	return binary.BigEndian.Uint16(response.Data[0:2]), binary.BigEndian.Uint16(response.Data[2:4]), nil
}

// Request:
//
//	Function code         : 1 byte (0x0C)
//
// Response:
//
//	Function code         : 1 byte (0x0C)
//	Byte count, status, event count, message count, events : variable
func (c *Client) GetCommEventLog(slaveID uint16) (status, eventCount, messageCount uint16, events []byte, err error) {
	response, err := c.execute(uint8(slaveID), FuncCodeGetCommEventLog, nil)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	payload, err := byteCountPayload(response.Data)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	if len(payload) < 6 {
		return 0, 0, 0, nil, fmt.Errorf("modbus: comm event log response too short: %d bytes", len(payload))
	}
	status = binary.BigEndian.Uint16(payload[0:2])
	eventCount = binary.BigEndian.Uint16(payload[2:4])
	messageCount = binary.BigEndian.Uint16(payload[4:6])
	events = payload[6:]
	return status, eventCount, messageCount, events, nil
}

// Request:
//
//	Function code         : 1 byte (0x11)
//
// Response:
//
//	Function code         : 1 byte (0x11)
//	Byte count, identifier, run indicator status : variable
func (c *Client) ReportSlaveID(slaveID uint16) (identifier []byte, running bool, err error) {
	response, err := c.execute(uint8(slaveID), FuncCodeReportSlaveID, nil)
	if err != nil {
		return nil, false, err
	}
	payload, err := byteCountPayload(response.Data)
	if err != nil {
		return nil, false, err
	}
	if len(payload) < 1 {
		return nil, false, fmt.Errorf("modbus: report slave id response is empty")
	}
	return payload[1:], payload[0] == 0xFF, nil
}

// FileRecordRequest describes one (file, record, length) tuple read or
// written by FC20/FC21.
type FileRecordRequest struct {
	FileNumber   uint16
	RecordNumber uint16
	RecordLength uint16
	Data         []uint16 // write only
}

// ReadFileRecord sends FC20 for the given sub-requests and returns the
// register values read for each, in request order.
func (c *Client) ReadFileRecord(slaveID uint16, requests []FileRecordRequest) ([][]uint16, error) {
	body := make([]byte, 0, 1+7*len(requests))
	for _, r := range requests {
		body = append(body, fileRecordRefType)
		body = binary.BigEndian.AppendUint16(body, r.FileNumber)
		body = binary.BigEndian.AppendUint16(body, r.RecordNumber)
		body = binary.BigEndian.AppendUint16(body, r.RecordLength)
	}
	payload := append([]byte{byte(len(body))}, body...)
	response, err := c.execute(uint8(slaveID), FuncCodeReadFileRecord, payload)
	if err != nil {
		return nil, err
	}
	return decodeReadFileRecordResponse(response.Data)
}

// WriteFileRecord sends FC21; the server echoes the request once applied.
func (c *Client) WriteFileRecord(slaveID uint16, requests []FileRecordRequest) error {
	body := make([]byte, 0)
	for _, r := range requests {
		body = append(body, fileRecordRefType)
		body = binary.BigEndian.AppendUint16(body, r.FileNumber)
		body = binary.BigEndian.AppendUint16(body, r.RecordNumber)
		body = binary.BigEndian.AppendUint16(body, r.RecordLength)
		body = append(body, packRegisters(r.Data)...)
	}
	payload := append([]byte{byte(len(body))}, body...)
	_, err := c.execute(uint8(slaveID), FuncCodeWriteFileRecord, payload)
	return err
}

// Request:
//
//	Function code         : 1 byte (0x16)
//	Reference address      : 2 bytes
//	And mask                : 2 bytes
//	Or mask                 : 2 bytes
//
// Response echoes the request unchanged.
func (c *Client) MaskWriteRegister(slaveID uint16, address, andMask, orMask uint16) error {
	response, err := c.execute(uint8(slaveID), FuncCodeMaskWriteRegister, dataBlock(address, andMask, orMask))
	if err != nil {
		return err
	}
	if len(response.Data) != 6 {
		return fmt.Errorf("modbus: mask write response size '%v' does not match expected '%v'", len(response.Data), 6)
	}
	return nil
}

// ReadWriteMultipleRegisters sends FC23: writeValues are applied to
// writeAddress before readQuantity registers are read back from readAddress
// on the same call.
func (c *Client) ReadWriteMultipleRegisters(slaveID uint16, readAddress, readQuantity, writeAddress uint16, writeValues []uint16) ([]uint16, error) {
	if readQuantity < 1 || readQuantity > 125 {
		return nil, fmt.Errorf("modbus: read quantity '%v' must be between '%v' and '%v'", readQuantity, 1, 125)
	}
	writeQuantity := uint16(len(writeValues))
	if writeQuantity < 1 || writeQuantity > 121 {
		return nil, fmt.Errorf("modbus: write quantity '%v' must be between '%v' and '%v'", writeQuantity, 1, 121)
	}
	payload := dataBlockSuffix(packRegisters(writeValues), readAddress, readQuantity, writeAddress, writeQuantity)
	response, err := c.execute(uint8(slaveID), FuncCodeReadWriteMultipleRegisters, payload)
	if err != nil {
		return nil, err
	}
	payloadOut, err := byteCountPayload(response.Data)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(payloadOut), nil
}

// ReadFIFOQueue sends FC24, returning the queued register values (at most
// 31 values per response).
func (c *Client) ReadFIFOQueue(slaveID uint16, address uint16) ([]uint16, error) {
	response, err := c.execute(uint8(slaveID), FuncCodeReadFIFOQueue, dataBlock(address))
	if err != nil {
		return nil, err
	}
	if len(response.Data) < 4 {
		return nil, fmt.Errorf("modbus: read fifo queue response too short: %d bytes", len(response.Data))
	}
	count := binary.BigEndian.Uint16(response.Data[2:4])
	values := unpackRegisters(response.Data[4:])
	if int(count) != len(values) {
		return nil, fmt.Errorf("modbus: read fifo queue count '%v' does not match payload '%v'", count, len(values))
	}
	return values, nil
}

// ReadCustomData sends a request built like a standard read (address +
// quantity) under a non-standard function code and returns the raw data
// payload, for function codes this package does not model itself.
func (c *Client) ReadCustomData(funcCode uint16, slaveID uint16, startAddress, quantity uint16) ([]byte, error) {
	response, err := c.execute(uint8(slaveID), byte(funcCode), dataBlock(startAddress, quantity))
	if err != nil {
		return nil, err
	}
	return byteCountPayload(response.Data)
}

// WriteCustomData sends a write request built like a standard multi-write
// (address + length-prefixed payload) under a non-standard function code.
func (c *Client) WriteCustomData(funcCode uint16, slaveID uint16, startAddress uint16, data []byte) error {
	_, err := c.execute(uint8(slaveID), byte(funcCode), dataBlockSuffix(data, startAddress, uint16(len(data))))
	return err
}

// ReadRawData bypasses the framer and transaction manager's retry/matching
// logic entirely, writing reqPDU to the wire unchanged and returning
// whatever single chunk comes back.
func (c *Client) ReadRawData(reqPDU []byte) ([]byte, error) {
	return c.tm.Raw(reqPDU)
}

// ReadDeviceIdentification walks FC43/14's basic, regular, and extended
// object categories, following MoreFollows/NextObjectID paging within each,
// and merges every disclosed object into the returned map keyed by object
// id. The basic
// category is mandatory; a device that rejects regular or extended access
// with a protocol exception simply ends the walk with what was gathered so
// far.
func (c *Client) ReadDeviceIdentification(slaveID uint16) (map[byte]string, error) {
	results := make(map[byte]string)

	for _, readCode := range []byte{ReadDeviceIDBasic, ReadDeviceIDRegular, ReadDeviceIDExtended} {
		objectID := byte(0x00)
		for {
			_, nextObjID, objects, err := c.readDeviceIDPage(slaveID, readCode, objectID)
			if err != nil {
				if _, ok := err.(*ModbusError); ok && readCode != ReadDeviceIDBasic {
					return results, nil
				}
				return results, err
			}
			for id, value := range objects {
				results[id] = value
			}
			if nextObjID == 0x00 {
				break
			}
			objectID = nextObjID
		}

		if readCode == ReadDeviceIDBasic {
			for id := byte(ObjectVendorName); id <= ObjectMajorMinorRevision; id++ {
				if _, ok := results[id]; !ok {
					return results, fmt.Errorf("modbus: mandatory device identification object 0x%02X is not available", id)
				}
			}
		}
	}

	return results, nil
}

// readDeviceIDPage sends one FC43/14 request and decodes a single page of
// the response.
func (c *Client) readDeviceIDPage(slaveID uint16, readDeviceIDCode, objectID byte) (conformityLevel byte, nextObjID byte, objects map[byte]string, err error) {
	objects = make(map[byte]string)

	response, err := c.execute(uint8(slaveID), FuncCodeMEI, []byte{MEITypeReadDeviceIdentification, readDeviceIDCode, objectID})
	if err != nil {
		return 0, 0, nil, err
	}
	data := response.Data
	if len(data) < 6 {
		return 0, 0, nil, fmt.Errorf("modbus: device identification response too short: %d bytes", len(data))
	}

	conformityLevel = data[2]
	moreFollows := data[3]
	if moreFollows == 0xFF {
		nextObjID = data[4]
	}

	count := data[5]
	index := 6
	for i := byte(0); i < count; i++ {
		if index+2 > len(data) {
			return 0, 0, nil, fmt.Errorf("modbus: device identification object %d truncated", i)
		}
		id := data[index]
		length := int(data[index+1])
		if index+2+length > len(data) {
			return 0, 0, nil, fmt.Errorf("modbus: device identification object %d value truncated", id)
		}
		objects[id] = string(data[index+2 : index+2+length])
		index += 2 + length
	}
	return conformityLevel, nextObjID, objects, nil
}

// byteCountPayload validates the standard [byte count][payload] response
// shape shared by FC1-4 and custom read-like function codes, returning the
// payload bytes after the count.
func byteCountPayload(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("modbus: response data is empty")
	}
	count := int(data[0])
	payload := data[1:]
	if count != len(payload) {
		return nil, fmt.Errorf("modbus: response data size '%v' does not match count '%v'", len(payload), count)
	}
	return payload, nil
}

// verifyEchoedAddressValue checks the [address][value] echo shared by the
// single-write and multi-write response PDUs.
func verifyEchoedAddressValue(data []byte, wantAddress, wantValue uint16) error {
	if len(data) != 4 {
		return fmt.Errorf("modbus: response data size '%v' does not match expected '%v'", len(data), 4)
	}
	gotAddress := binary.BigEndian.Uint16(data)
	if gotAddress != wantAddress {
		return fmt.Errorf("modbus: response address '%v' does not match request '%v'", gotAddress, wantAddress)
	}
	gotValue := binary.BigEndian.Uint16(data[2:])
	if gotValue != wantValue {
		return fmt.Errorf("modbus: response value '%v' does not match request '%v'", gotValue, wantValue)
	}
	return nil
}
