package modbus

import "encoding/binary"

func init() {
	register(FuncCodeReportSlaveID, decodeReportSlaveIDRequest)
	register(FuncCodeReadFIFOQueue, decodeReadFIFOQueueRequest)
	register(FuncCodeMEI, decodeMEIRequest)
}

// reportSlaveIDRequest serves FC17: no request body. The identification
// string and run-indicator are fixed per server, configured on
// ServerIdentity rather than per-request.
type reportSlaveIDRequest struct{}

func decodeReportSlaveIDRequest(pdu *ProtocolDataUnit) (Request, error) {
	return &reportSlaveIDRequest{}, nil
}

func (r *reportSlaveIDRequest) FunctionCode() byte { return FuncCodeReportSlaveID }

func (r *reportSlaveIDRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	id := ctx.Identity
	if id == nil {
		id = DefaultServerIdentity()
	}
	runIndicator := byte(0x00)
	if id.Running {
		runIndicator = 0xFF
	}
	payload := append([]byte{runIndicator}, []byte(id.VendorName)...)
	data := make([]byte, 1+len(payload))
	data[0] = byte(len(payload))
	copy(data[1:], payload)
	return &ProtocolDataUnit{FunctionCode: FuncCodeReportSlaveID, Data: data}, nil
}

// readFIFOQueueRequest serves FC24: the queue is a custom block keyed by
// the FIFO pointer address, returning up to 31 queued register values in
// oldest-dequeued order.
type readFIFOQueueRequest struct {
	address int
}

func decodeReadFIFOQueueRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) != 2 {
		return nil, NewModbusError(FuncCodeReadFIFOQueue, ExceptionIllegalDataValue)
	}
	return &readFIFOQueueRequest{address: int(binary.BigEndian.Uint16(pdu.Data[0:2]))}, nil
}

func (r *readFIFOQueueRequest) FunctionCode() byte { return FuncCodeReadFIFOQueue }

func (r *readFIFOQueueRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	block, ok := ctx.CustomBlock(FuncCodeReadFIFOQueue)
	if !ok {
		return nil, NewModbusError(FuncCodeReadFIFOQueue, ExceptionIllegalDataAddress)
	}
	// The FIFO's current depth is stored as the single register at address;
	// the queued values follow it in one contiguous register range.
	depthReg, err := block.GetRegisters(r.address, 1)
	if err != nil {
		return nil, err
	}
	count := int(depthReg[0])
	if count > 31 {
		count = 31
	}
	values, err := block.GetRegisters(r.address+1, count)
	if err != nil {
		return nil, err
	}
	packed := packRegisters(values)
	data := make([]byte, 4+len(packed))
	binary.BigEndian.PutUint16(data[0:2], uint16(2+len(packed)))
	binary.BigEndian.PutUint16(data[2:4], uint16(count))
	copy(data[4:], packed)
	return &ProtocolDataUnit{FunctionCode: FuncCodeReadFIFOQueue, Data: data}, nil
}

// meiRequest serves FC43/14 (ReadDeviceIdentification). Other MEI
// sub-types are not implemented by this server and fall back to
// IllegalFunction, matching how a real device rejects MEI types it does
// not support.
type meiRequest struct {
	meiType  byte
	readCode byte
	objectID byte
}

func decodeMEIRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) != 3 {
		return nil, NewModbusError(FuncCodeMEI, ExceptionIllegalDataValue)
	}
	if pdu.Data[0] != MEITypeReadDeviceIdentification {
		return nil, NewModbusError(FuncCodeMEI, ExceptionIllegalFunction)
	}
	return &meiRequest{meiType: pdu.Data[0], readCode: pdu.Data[1], objectID: pdu.Data[2]}, nil
}

func (r *meiRequest) FunctionCode() byte { return FuncCodeMEI }

func (r *meiRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	id := ctx.Identity
	if id == nil {
		id = DefaultServerIdentity()
	}
	objects := id.Objects(r.readCode)
	if len(objects) == 0 {
		return nil, NewModbusError(FuncCodeMEI, ExceptionIllegalDataAddress)
	}

	start := 0
	for i, obj := range objects {
		if obj.ID == r.objectID {
			start = i
			break
		}
	}

	data := []byte{r.meiType, r.readCode, id.ConformityLevel, 0x00, 0x00, 0x00}
	count := byte(0)
	nextObjectID := byte(0)
	moreFollows := byte(0x00)
	for i := start; i < len(objects); i++ {
		obj := objects[i]
		entry := append([]byte{obj.ID, byte(len(obj.Value))}, obj.Value...)
		// Cap the response near a single-PDU's worth of payload; pagination
		// via MoreFollows/NextObjectID picks up the remainder. NextObjectID
		// stays 0 whenever the walk is not continuing.
		if len(data)+len(entry) > 250 && count > 0 {
			moreFollows = 0xFF
			nextObjectID = obj.ID
			break
		}
		data = append(data, entry...)
		count++
	}
	data[3] = moreFollows
	data[4] = nextObjectID
	data[5] = count

	return &ProtocolDataUnit{FunctionCode: FuncCodeMEI, Data: data}, nil
}
