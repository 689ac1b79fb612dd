package modbus

import "encoding/binary"

func init() {
	register(FuncCodeReadExceptionStatus, decodeReadExceptionStatusRequest)
	register(FuncCodeDiagnostics, decodeDiagnosticsRequest)
	register(FuncCodeGetCommEventCounter, decodeGetCommEventCounterRequest)
	register(FuncCodeGetCommEventLog, decodeGetCommEventLogRequest)
}

// readExceptionStatusRequest serves FC7: no request body.
type readExceptionStatusRequest struct{}

func decodeReadExceptionStatusRequest(pdu *ProtocolDataUnit) (Request, error) {
	return &readExceptionStatusRequest{}, nil
}

func (r *readExceptionStatusRequest) FunctionCode() byte { return FuncCodeReadExceptionStatus }

func (r *readExceptionStatusRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeReadExceptionStatus,
		Data:         []byte{ctx.Diagnostics.ExceptionStatus},
	}, nil
}

// diagnosticsRequest serves FC8. Only the sub-functions with observable
// effect on SlaveContext are implemented; the rest echo the request data
// unchanged, which is the correct behavior for a query/response
// sub-function that a real device answers without side effects.
type diagnosticsRequest struct {
	subFunction uint16
	data        []byte
}

func decodeDiagnosticsRequest(pdu *ProtocolDataUnit) (Request, error) {
	if len(pdu.Data) < 2 {
		return nil, NewModbusError(FuncCodeDiagnostics, ExceptionIllegalDataValue)
	}
	return &diagnosticsRequest{
		subFunction: binary.BigEndian.Uint16(pdu.Data[0:2]),
		data:        pdu.Data[2:],
	}, nil
}

func (r *diagnosticsRequest) FunctionCode() byte { return FuncCodeDiagnostics }

func (r *diagnosticsRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	d := ctx.Diagnostics
	d.mu.Lock()
	defer d.mu.Unlock()
	switch r.subFunction {
	case SubDiagRestartCommunicationsOption:
		d.ListenOnly = len(r.data) >= 2 && r.data[0] == 0xFF
	case SubDiagReturnDiagnosticRegister:
		return r.echo(binary.BigEndian.AppendUint16(nil, d.DiagnosticRegister))
	case SubDiagClearCountersAndDiagnosticRegister:
		d.clearLocked()
	case SubDiagReturnBusMessageCount:
		return r.echo(binary.BigEndian.AppendUint16(nil, d.BusMessageCount))
	case SubDiagReturnBusCommunicationErrorCount:
		return r.echo(binary.BigEndian.AppendUint16(nil, d.BusCommErrorCount))
	case SubDiagReturnBusExceptionErrorCount:
		return r.echo(binary.BigEndian.AppendUint16(nil, d.BusExceptionErrorCount))
	case SubDiagReturnSlaveMessageCount:
		return r.echo(binary.BigEndian.AppendUint16(nil, d.SlaveMessageCount))
	case SubDiagReturnSlaveNoResponseCount:
		return r.echo(binary.BigEndian.AppendUint16(nil, d.SlaveNoResponseCount))
	}
	return r.echo(r.data)
}

func (r *diagnosticsRequest) echo(payload []byte) (*ProtocolDataUnit, error) {
	data := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(data[0:2], r.subFunction)
	copy(data[2:], payload)
	return &ProtocolDataUnit{FunctionCode: FuncCodeDiagnostics, Data: data}, nil
}

// getCommEventCounterRequest serves FC11.
type getCommEventCounterRequest struct{}

func decodeGetCommEventCounterRequest(pdu *ProtocolDataUnit) (Request, error) {
	return &getCommEventCounterRequest{}, nil
}

func (r *getCommEventCounterRequest) FunctionCode() byte { return FuncCodeGetCommEventCounter }

func (r *getCommEventCounterRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	d := ctx.Diagnostics
	d.mu.Lock()
	listenOnly := d.ListenOnly
	eventCount := d.EventCount
	d.mu.Unlock()
	status := uint16(0x0000)
	if listenOnly {
		status = 0xFFFF
	}
	return &ProtocolDataUnit{
		FunctionCode: FuncCodeGetCommEventCounter,
		Data:         dataBlock(status, eventCount),
	}, nil
}

// getCommEventLogRequest serves FC12.
type getCommEventLogRequest struct{}

func decodeGetCommEventLogRequest(pdu *ProtocolDataUnit) (Request, error) {
	return &getCommEventLogRequest{}, nil
}

func (r *getCommEventLogRequest) FunctionCode() byte { return FuncCodeGetCommEventLog }

func (r *getCommEventLogRequest) Execute(ctx *SlaveContext) (*ProtocolDataUnit, error) {
	d := ctx.Diagnostics
	d.mu.Lock()
	eventLog := append([]byte(nil), d.EventLog...)
	listenOnly := d.ListenOnly
	eventCount := d.EventCount
	messageCount := d.MessageCount
	d.mu.Unlock()
	status := uint16(0x0000)
	if listenOnly {
		status = 0xFFFF
	}
	header := dataBlock(status, eventCount, messageCount)
	data := make([]byte, 1+len(header)+len(eventLog))
	data[0] = byte(len(header) + len(eventLog))
	copy(data[1:], header)
	copy(data[1+len(header):], eventLog)
	return &ProtocolDataUnit{FunctionCode: FuncCodeGetCommEventLog, Data: data}, nil
}
