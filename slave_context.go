package modbus

import "sync"

// SlaveContext bundles the four standard datastores addressed by a single
// device ID, plus any custom blocks registered for non-standard function
// codes. ZeroMode controls whether register addresses on the wire
// are treated as already zero-based (true) or are shifted up by one by
// translateAddress before reaching the datastore (false); the datastore
// itself is always addressed from zero internally.
type SlaveContext struct {
	Coils            DataBlock
	DiscreteInputs   DataBlock
	HoldingRegisters DataBlock
	InputRegisters   DataBlock
	ZeroMode         bool

	custom map[byte]DataBlock

	Diagnostics *DiagnosticCounters
	Identity    *ServerIdentity

	filesMu sync.RWMutex
	files   map[uint16]map[uint16][]uint16
}

// ReadFileRecord returns the register values stored at (fileNumber,
// recordNumber), or ExceptionIllegalDataAddress if the record has never
// been written.
func (s *SlaveContext) ReadFileRecord(fileNumber, recordNumber uint16) ([]uint16, error) {
	s.filesMu.RLock()
	defer s.filesMu.RUnlock()
	file, ok := s.files[fileNumber]
	if !ok {
		return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataAddress)
	}
	record, ok := file[recordNumber]
	if !ok {
		return nil, NewModbusError(FuncCodeReadFileRecord, ExceptionIllegalDataAddress)
	}
	return record, nil
}

// WriteFileRecord stores values at (fileNumber, recordNumber), creating the
// file if necessary.
func (s *SlaveContext) WriteFileRecord(fileNumber, recordNumber uint16, values []uint16) {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()
	if s.files == nil {
		s.files = make(map[uint16]map[uint16][]uint16)
	}
	if s.files[fileNumber] == nil {
		s.files[fileNumber] = make(map[uint16][]uint16)
	}
	s.files[fileNumber][recordNumber] = values
}

// DiagnosticCounters backs FC7 (ReadExceptionStatus), FC8 (Diagnostics), and
// FC11/FC12 (comm event counter/log) — the "serial line" housekeeping
// function codes. ListenOnly suppresses normal responses once set by
// diagnostics sub-function 0x01.
type DiagnosticCounters struct {
	mu                     sync.Mutex
	ExceptionStatus        byte
	DiagnosticRegister     uint16
	BusMessageCount        uint16
	BusCommErrorCount      uint16
	BusExceptionErrorCount uint16
	SlaveMessageCount      uint16
	SlaveNoResponseCount   uint16
	EventCount             uint16
	MessageCount           uint16
	EventLog               []byte
	ListenOnly             bool
}

// clearLocked zeroes every counter, the diagnostic register, and the event
// log (diagnostics sub-function 0x0A). ListenOnly survives the clear; only
// restart-communications (sub-function 0x01) leaves listen-only mode. The
// caller must hold d.mu.
func (d *DiagnosticCounters) clearLocked() {
	d.ExceptionStatus = 0
	d.DiagnosticRegister = 0
	d.BusMessageCount = 0
	d.BusCommErrorCount = 0
	d.BusExceptionErrorCount = 0
	d.SlaveMessageCount = 0
	d.SlaveNoResponseCount = 0
	d.EventCount = 0
	d.MessageCount = 0
	d.EventLog = nil
}

// RecordEvent appends b to the comm event log, trimmed to the last 64
// entries like a real slave's bounded ring buffer.
func (d *DiagnosticCounters) RecordEvent(b byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.EventLog = append(d.EventLog, b)
	if len(d.EventLog) > 64 {
		d.EventLog = d.EventLog[len(d.EventLog)-64:]
	}
	d.EventCount++
}

// NewSlaveContext builds a SlaveContext over four fixed-size sequential
// blocks of size registers/bits each, all based at address 0 — a
// reasonable default for simulating a single device.
func NewSlaveContext(size int) *SlaveContext {
	return &SlaveContext{
		Coils:            NewSequentialBitBlock(0, size),
		DiscreteInputs:   NewSequentialBitBlock(0, size),
		HoldingRegisters: NewSequentialRegisterBlock(0, size),
		InputRegisters:   NewSequentialRegisterBlock(0, size),
		Diagnostics:      &DiagnosticCounters{},
	}
}

// translateAddress maps a wire address onto the datastore's zero-based
// offset, honoring ZeroMode: when false (the default), conventional
// Modbus addressing numbers registers/coils from 1 on the wire, so the
// address is incremented by one before reaching the block; when true, wire
// address 0 already means block offset 0.
func (s *SlaveContext) translateAddress(address int) int {
	if s.ZeroMode {
		return address
	}
	return address + 1
}

// blockFor returns the datastore backing functionCode's address space, or
// nil if functionCode does not read/write one of the four standard blocks.
func (s *SlaveContext) blockFor(functionCode byte) DataBlock {
	switch functionCode {
	case FuncCodeReadCoils, FuncCodeWriteSingleCoil, FuncCodeWriteMultipleCoils:
		return s.Coils
	case FuncCodeReadDiscreteInputs:
		return s.DiscreteInputs
	case FuncCodeReadHoldingRegisters, FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleRegisters, FuncCodeMaskWriteRegister,
		FuncCodeReadWriteMultipleRegisters:
		return s.HoldingRegisters
	case FuncCodeReadInputRegisters:
		return s.InputRegisters
	default:
		return nil
	}
}

// RegisterCustomBlock binds a DataBlock to a non-standard function code
// (e.g. a user-defined file-record or FIFO queue store), so Request
// implementations for that function code can reach it via CustomBlock.
func (s *SlaveContext) RegisterCustomBlock(functionCode byte, block DataBlock) {
	if s.custom == nil {
		s.custom = make(map[byte]DataBlock)
	}
	s.custom[functionCode] = block
}

// CustomBlock returns the block registered for functionCode, if any.
func (s *SlaveContext) CustomBlock(functionCode byte) (DataBlock, bool) {
	b, ok := s.custom[functionCode]
	return b, ok
}
