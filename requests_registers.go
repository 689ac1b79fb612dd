package modbus

import "encoding/binary"

func init() {
	register(FuncCodeReadHoldingRegisters, decodeReadRegistersRequest(FuncCodeReadHoldingRegisters))
	register(FuncCodeReadInputRegisters, decodeReadRegistersRequest(FuncCodeReadInputRegisters))
	register(FuncCodeWriteSingleRegister, decodeWriteSingleRegisterRequest)
	register(FuncCodeWriteMultipleRegisters, decodeWriteMultipleRegistersRequest)
	register(FuncCodeMaskWriteRegister, decodeMaskWriteRegisterRequest)
	register(FuncCodeReadWriteMultipleRegisters, decodeReadWriteMultipleRegistersRequest)
}

// readRegistersRequest serves FC3 (ReadHoldingRegisters) and FC4
// (ReadInputRegisters).
type readRegistersRequest struct {
	fc       byte
	address  int
	quantity int
}

func decodeReadRegistersRequest(fc byte) decodeFunc {
	return func(pdu *ProtocolDataUnit) (Request, error) {
		if len(pdu.Data) != 4 {
			return nil, NewModbusError(fc, ExceptionIllegalDataValue)
		}
		return &readRegistersRequest{
			fc:       fc,
			address:  int(binary.BigEndian.Uint16(pdu.Data[0:2])),
			quantity: int(binary.BigEndian.Uint16(pdu.Data[2:4])),
		}, nil
	}
}

func (r *readRegistersRequest) FunctionCode() byte { return r.fc }

func (r *readRegistersRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	if r.quantity < 1 || r.quantity > 125 {
		return nil, NewModbusError(r.fc, ExceptionIllegalDataValue)
	}
	values, err := ctx.blockFor(r.fc).GetRegisters(ctx.translateAddress(r.address), r.quantity)
	if err != nil {
		return nil, err
	}
	packed := packRegisters(values)
	data := make([]byte, 1+len(packed))
	data[0] = byte(len(packed))
	copy(data[1:], packed)
	return &ProtocolDataUnit{FunctionCode: r.fc, Data: data}, nil
}

// writeSingleRegisterRequest serves FC6.
type writeSingleRegisterRequest struct {
	address int
	value   uint16
}

func decodeWriteSingleRegisterRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) != 4 {
		return nil, NewModbusError(FuncCodeWriteSingleRegister, ExceptionIllegalDataValue)
	}
	return &writeSingleRegisterRequest{
		address: int(binary.BigEndian.Uint16(pdu.Data[0:2])),
		value:   binary.BigEndian.Uint16(pdu.Data[2:4]),
	}, nil
}

func (r *writeSingleRegisterRequest) FunctionCode() byte { return FuncCodeWriteSingleRegister }

func (r *writeSingleRegisterRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	if err := ctx.HoldingRegisters.SetRegisters(ctx.translateAddress(r.address), []uint16{r.value}); err != nil {
		return nil, err
	}
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeWriteSingleRegister,
		Data:         dataBlock(uint16(r.address), r.value),
	}, nil
}

// writeMultipleRegistersRequest serves FC16.
type writeMultipleRegistersRequest struct {
	address int
	values  []uint16
}

func decodeWriteMultipleRegistersRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) < 5 {
		return nil, NewModbusError(FuncCodeWriteMultipleRegisters, ExceptionIllegalDataValue)
	}
	address := int(binary.BigEndian.Uint16(pdu.Data[0:2]))
	quantity := int(binary.BigEndian.Uint16(pdu.Data[2:4]))
	byteCount := int(pdu.Data[4])
	if len(pdu.Data) != 5+byteCount || byteCount != quantity*2 {
		return nil, NewModbusError(FuncCodeWriteMultipleRegisters, ExceptionIllegalDataValue)
	}
	return &writeMultipleRegistersRequest{
		address: address,
		values:  unpackRegisters(pdu.Data[5:]),
	}, nil
}

func (r *writeMultipleRegistersRequest) FunctionCode() byte { return FuncCodeWriteMultipleRegisters }

func (r *writeMultipleRegistersRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	if len(r.values) < 1 || len(r.values) > 123 {
		return nil, NewModbusError(FuncCodeWriteMultipleRegisters, ExceptionIllegalDataValue)
	}
	if err := ctx.HoldingRegisters.SetRegisters(ctx.translateAddress(r.address), r.values); err != nil {
		return nil, err
	}
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeWriteMultipleRegisters,
		Data:         dataBlock(uint16(r.address), uint16(len(r.values))),
	}, nil
}

// maskWriteRegisterRequest serves FC22: result = (current & andMask) |
// (orMask & ^andMask).
type maskWriteRegisterRequest struct {
	address int
	andMask uint16
	orMask  uint16
}

func decodeMaskWriteRegisterRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) != 6 {
		return nil, NewModbusError(FuncCodeMaskWriteRegister, ExceptionIllegalDataValue)
	}
	return &maskWriteRegisterRequest{
		address: int(binary.BigEndian.Uint16(pdu.Data[0:2])),
		andMask: binary.BigEndian.Uint16(pdu.Data[2:4]),
		orMask:  binary.BigEndian.Uint16(pdu.Data[4:6]),
	}, nil
}

func (r *maskWriteRegisterRequest) FunctionCode() byte { return FuncCodeMaskWriteRegister }

func (r *maskWriteRegisterRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	address := ctx.translateAddress(r.address)
	current, err := ctx.HoldingRegisters.GetRegisters(address, 1)
	if err != nil {
		return nil, err
	}
	result := (current[0] & r.andMask) | (r.orMask &^ r.andMask)
	if err := ctx.HoldingRegisters.SetRegisters(address, []uint16{result}); err != nil {
		return nil, err
	}
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeMaskWriteRegister,
		Data:         dataBlock(uint16(r.address), r.andMask, r.orMask),
	}, nil
}

// readWriteMultipleRegistersRequest serves FC23: the write is applied before
// the read, so a read range overlapping the write range observes the new
// values.
type readWriteMultipleRegistersRequest struct {
	readAddress  int
	readQuantity int
	writeAddress int
	writeValues  []uint16
}

func decodeReadWriteMultipleRegistersRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) < 9 {
		return nil, NewModbusError(FuncCodeReadWriteMultipleRegisters, ExceptionIllegalDataValue)
	}
	readAddress := int(binary.BigEndian.Uint16(pdu.Data[0:2]))
	readQuantity := int(binary.BigEndian.Uint16(pdu.Data[2:4]))
	writeAddress := int(binary.BigEndian.Uint16(pdu.Data[4:6]))
	writeQuantity := int(binary.BigEndian.Uint16(pdu.Data[6:8]))
	byteCount := int(pdu.Data[8])
	if len(pdu.Data) != 9+byteCount || byteCount != writeQuantity*2 {
		return nil, NewModbusError(FuncCodeReadWriteMultipleRegisters, ExceptionIllegalDataValue)
	}
	return &readWriteMultipleRegistersRequest{
		readAddress:  readAddress,
		readQuantity: readQuantity,
		writeAddress: writeAddress,
		writeValues:  unpackRegisters(pdu.Data[9:]),
	}, nil
}

func (r *readWriteMultipleRegistersRequest) FunctionCode() byte {
	return FuncCodeReadWriteMultipleRegisters
}

func (r *readWriteMultipleRegistersRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	if r.readQuantity < 1 || r.readQuantity > 125 || len(r.writeValues) < 1 || len(r.writeValues) > 121 {
		return nil, NewModbusError(FuncCodeReadWriteMultipleRegisters, ExceptionIllegalDataValue)
	}
	if err := ctx.HoldingRegisters.SetRegisters(ctx.translateAddress(r.writeAddress), r.writeValues); err != nil {
		return nil, err
	}
	values, err := ctx.HoldingRegisters.GetRegisters(ctx.translateAddress(r.readAddress), r.readQuantity)
	if err != nil {
		return nil, err
	}
	packed := packRegisters(values)
	data := make([]byte, 1+len(packed))
	data[0] = byte(len(packed))
	copy(data[1:], packed)
	return &ProtocolDataUnit{FunctionCode: FuncCodeReadWriteMultipleRegisters, Data: data}, nil
}
