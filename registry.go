package modbus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Request is a decoded server-side request PDU that knows how to apply
// itself to a slave's datastore and produce the response PDU.
type Request interface {
	// FunctionCode returns the function code this request was decoded for.
	FunctionCode() byte
	// Execute applies the request against ctx and returns the response PDU,
	// or a *ModbusError describing the exception to send instead.
	Execute(ctx *SlaveContext) (*ProtocolDataUnit, error)
}

// decodeFunc parses a request PDU's Data (the function code has already been
// consumed) into a typed Request.
type decodeFunc func(pdu *ProtocolDataUnit) (Request, error)

// registry is the function-code to decoder lookup table. It is append-only
// at runtime via Register: a duplicate registration replaces the prior
// entry rather than failing.
var (
	registryMu sync.RWMutex
	registry   = map[byte]decodeFunc{}
)

// register installs the decoder for functionCode from package init in the
// per-function-code source files. It panics on a duplicate since two
// built-in files claiming the same function code is always a programmer
// error, never a legitimate runtime override.
func register(functionCode byte, fn decodeFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[functionCode]; exists {
		panic(fmt.Sprintf("modbus: function code %d already registered", functionCode))
	}
	registry[functionCode] = fn
}

// Register installs a user-supplied decoder for functionCode, for custom
// function codes the standard registry doesn't cover. Unlike the internal
// register, a duplicate call replaces the prior entry and is logged rather
// than panicking, since overriding a custom PDU at runtime is a supported
// use case, not a programmer error.
func Register(functionCode byte, fn func(pdu *ProtocolDataUnit) (Request, error), logger *zap.SugaredLogger) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[functionCode]; exists && logger != nil {
		logger.Warnw("replacing existing modbus function code decoder", "function_code", functionCode)
	}
	registry[functionCode] = fn
}

// DecodeRequest looks up and invokes the decoder for pdu's function code.
// An unknown function code yields ExceptionIllegalFunction, matching how a
// real slave must respond to requests it does not implement.
func DecodeRequest(pdu *ProtocolDataUnit) (Request, error) {
	registryMu.RLock()
	fn, ok := registry[pdu.FunctionCode]
	registryMu.RUnlock()
	if !ok {
		return nil, NewModbusError(pdu.FunctionCode, ExceptionIllegalFunction)
	}
	return fn(pdu)
}
