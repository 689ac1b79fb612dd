package modbus

import "encoding/binary"

func init() {
	register(FuncCodeReadFileRecord, decodeReadFileRecordRequest)
	register(FuncCodeWriteFileRecord, decodeWriteFileRecordRequest)
}

const fileRecordRefType = 0x06

type fileSubRequest struct {
	fileNumber   uint16
	recordNumber uint16
	recordLength uint16
	data         []uint16
}

// readFileRecordRequest serves FC20. A request batches several
// (file, record, length) lookups; one bad sub-request fails the whole PDU,
// matching how a real device validates the full request before responding.
type readFileRecordRequest struct {
	subs []fileSubRequest
}

func decodeFileSubRequests(data []byte, withPayload bool) ([]fileSubRequest, error) {
	if len(data) < 1 {
		return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataValue)
	}
	byteCount := int(data[0])
	body := data[1:]
	if len(body) != byteCount {
		return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataValue)
	}

	var subs []fileSubRequest
	for len(body) > 0 {
		if len(body) < 7 || body[0] != fileRecordRefType {
			return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataValue)
		}
		sub := fileSubRequest{
			fileNumber:   binary.BigEndian.Uint16(body[1:3]),
			recordNumber: binary.BigEndian.Uint16(body[3:5]),
			recordLength: binary.BigEndian.Uint16(body[5:7]),
		}
		body = body[7:]
		if withPayload {
			need := int(sub.recordLength) * 2
			if len(body) < need {
				return nil, NewModbusError(FuncCodeWriteFileRecord, ExceptionIllegalDataValue)
			}
			sub.data = unpackRegisters(body[:need])
			body = body[need:]
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func decodeReadFileRecordRequest(pdu *ProtocolDataUnit) (Request, error) {
	subs, err := decodeFileSubRequests(pdu.Data, false)
	if err != nil {
		return nil, err
	}
	return &readFileRecordRequest{subs: subs}, nil
}

func (r *readFileRecordRequest) FunctionCode() byte { return FuncCodeReadFileRecord }

func (r *readFileRecordRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	var body []byte
	for _, sub := range r.subs {
		values, err := ctx.ReadFileRecord(sub.fileNumber, sub.recordNumber)
		if err != nil {
			return nil, err
		}
		packed := packRegisters(values)
		body = append(body, byte(1+len(packed)), fileRecordRefType)
		body = append(body, packed...)
	}
	data := make([]byte, 1+len(body))
	data[0] = byte(len(body))
	copy(data[1:], body)
	return &ProtocolDataUnit{FunctionCode: FuncCodeReadFileRecord, Data: data}, nil
}

// decodeReadFileRecordResponse parses FC20's response shape: a byte
// count followed by one [respLength][refType][register data] entry per
// sub-request, in the same order the client sent them. Unlike the request
// encoding, response entries carry no file/record number, so the caller
// matches entries to requests positionally.
func decodeReadFileRecordResponse(data []byte) ([][]uint16, error) {
	if len(data) < 1 {
		return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataValue)
	}
	byteCount := int(data[0])
	body := data[1:]
	if len(body) != byteCount {
		return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataValue)
	}

	var out [][]uint16
	for len(body) > 0 {
		if len(body) < 2 || body[1] != fileRecordRefType {
			return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataValue)
		}
		respLength := int(body[0])
		if len(body) < 1+respLength {
			return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataValue)
		}
		registerData := body[2 : 1+respLength]
		out = append(out, unpackRegisters(registerData))
		body = body[1+respLength:]
	}
	return out, nil
}

// writeFileRecordRequest serves FC21; the response echoes the request
// verbatim once every sub-request has been applied.
type writeFileRecordRequest struct {
	subs []fileSubRequest
	raw  []byte
}

func decodeWriteFileRecordRequest(pdu *ProtocolDataUnit) (Request, error) {
	subs, err := decodeFileSubRequests(pdu.Data, true)
	if err != nil {
		return nil, err
	}
	return &writeFileRecordRequest{subs: subs, raw: pdu.Data}, nil
}

func (r *writeFileRecordRequest) FunctionCode() byte { return FuncCodeWriteFileRecord }

func (r *writeFileRecordRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	for _, sub := range r.subs {
		ctx.WriteFileRecord(sub.fileNumber, sub.recordNumber, sub.data)
	}
	return &ProtocolDataUnit{FunctionCode: FuncCodeWriteFileRecord, Data: append([]byte(nil), r.raw...)}, nil
}
