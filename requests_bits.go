package modbus

import "encoding/binary"

func init() {
	register(FuncCodeReadCoils, decodeReadBitsRequest(FuncCodeReadCoils))
	register(FuncCodeReadDiscreteInputs, decodeReadBitsRequest(FuncCodeReadDiscreteInputs))
	register(FuncCodeWriteSingleCoil, decodeWriteSingleCoilRequest)
	register(FuncCodeWriteMultipleCoils, decodeWriteMultipleCoilsRequest)
}

// readBitsRequest serves FC1 (ReadCoils) and FC2 (ReadDiscreteInputs):
// identical wire shape, different datastore.
type readBitsRequest struct {
	fc       byte
	address  int
	quantity int
}

func decodeReadBitsRequest(fc byte) decodeFunc {
	return func(pdu *ProtocolDataUnit) (Request, error) {
		if len(pdu.Data) != 4 {
			return nil, NewModbusError(fc, ExceptionIllegalDataValue)
		}
		return &readBitsRequest{
			fc:       fc,
			address:  int(binary.BigEndian.Uint16(pdu.Data[0:2])),
			quantity: int(binary.BigEndian.Uint16(pdu.Data[2:4])),
		}, nil
	}
}

func (r *readBitsRequest) FunctionCode() byte { return r.fc }

func (r *readBitsRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	if r.quantity < 1 || r.quantity > 2000 {
		return nil, NewModbusError(r.fc, ExceptionIllegalDataValue)
	}
	block := ctx.blockFor(r.fc)
	values, err := block.GetBits(ctx.translateAddress(r.address), r.quantity)
	if err != nil {
		return nil, err
	}
	packed := packBits(values)
	data := make([]byte, 1+len(packed))
	data[0] = byte(len(packed))
	copy(data[1:], packed)
	return &ProtocolDataUnit{FunctionCode: r.fc, Data: data}, nil
}

// writeSingleCoilRequest serves FC5.
type writeSingleCoilRequest struct {
	address int
	value   uint16
}

func decodeWriteSingleCoilRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) != 4 {
		return nil, NewModbusError(FuncCodeWriteSingleCoil, ExceptionIllegalDataValue)
	}
	return &writeSingleCoilRequest{
		address: int(binary.BigEndian.Uint16(pdu.Data[0:2])),
		value:   binary.BigEndian.Uint16(pdu.Data[2:4]),
	}, nil
}

func (r *writeSingleCoilRequest) FunctionCode() byte { return FuncCodeWriteSingleCoil }

func (r *writeSingleCoilRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	if r.value != 0x0000 && r.value != 0xFF00 {
		return nil, NewModbusError(FuncCodeWriteSingleCoil, ExceptionIllegalDataValue)
	}
	if err := ctx.Coils.SetBits(ctx.translateAddress(r.address), []bool{r.value == 0xFF00}); err != nil {
		return nil, err
	}
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeWriteSingleCoil,
		Data:         dataBlock(uint16(r.address), r.value),
	}, nil
}

// writeMultipleCoilsRequest serves FC15.
type writeMultipleCoilsRequest struct {
	address  int
	quantity int
	values   []bool
}

func decodeWriteMultipleCoilsRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) < 5 {
		return nil, NewModbusError(FuncCodeWriteMultipleCoils, ExceptionIllegalDataValue)
	}
	address := int(binary.BigEndian.Uint16(pdu.Data[0:2]))
	quantity := int(binary.BigEndian.Uint16(pdu.Data[2:4]))
	byteCount := int(pdu.Data[4])
	if len(pdu.Data) != 5+byteCount || byteCount != (quantity+7)/8 {
		return nil, NewModbusError(FuncCodeWriteMultipleCoils, ExceptionIllegalDataValue)
	}
	return &writeMultipleCoilsRequest{
		address:  address,
		quantity: quantity,
		values:   unpackBits(pdu.Data[5:], quantity),
	}, nil
}

func (r *writeMultipleCoilsRequest) FunctionCode() byte { return FuncCodeWriteMultipleCoils }

func (r *writeMultipleCoilsRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	if r.quantity < 1 || r.quantity > 1968 {
		return nil, NewModbusError(FuncCodeWriteMultipleCoils, ExceptionIllegalDataValue)
	}
	if err := ctx.Coils.SetBits(ctx.translateAddress(r.address), r.values); err != nil {
		return nil, err
	}
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeWriteMultipleCoils,
		Data:         dataBlock(uint16(r.address), uint16(r.quantity)),
	}, nil
}
