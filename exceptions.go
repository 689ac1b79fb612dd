package modbus

// NewExceptionResponse builds the exception PDU for a failed request:
// function code with the high bit set, single data byte holding the
// exception code.
func NewExceptionResponse(functionCode byte, code ExceptionCode) *ProtocolDataUnit {
	return &ProtocolDataUnit{
		FunctionCode: functionCode | exceptionBit,
		Data:         []byte{byte(code)},
	}
}

// responseError converts a response PDU whose function code does not match
// the request (or that carries the exception bit) into a *ModbusError.
func responseError(response *ProtocolDataUnit) error {
	mbError := &ModbusError{FunctionCode: response.FunctionCode &^ exceptionBit}
	if len(response.Data) > 0 {
		mbError.ExceptionCode = ExceptionCode(response.Data[0])
	}
	return mbError
}
