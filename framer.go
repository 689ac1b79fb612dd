package modbus

// FramerRole distinguishes decoding a request (server side) from decoding a
// response (client side): the two directions use different length rules for
// the same function code, so a Framer must be told which one it is parsing.
type FramerRole int

const (
	RoleServer FramerRole = iota // decodes requests
	RoleClient                   // decodes responses
)

// Framer turns a PDU into wire bytes and back, independent of the
// underlying transport. Decode is stream-oriented: it is handed
// whatever bytes have arrived so far and reports how many it consumed.
// Returning consumed == 0 and a nil PDU means "not enough data yet";
// returning a *FrameError means "drop Consumed bytes and resync" when noise
// or a partial frame corrupts the stream: RTU drops a single byte
// (Consumed == 1), while ASCII scans forward to the next ':' start marker.
type Framer interface {
	// Encode wraps pdu for the wire.
	Encode(pdu *ProtocolDataUnit) ([]byte, error)
	// Decode scans buffer for one complete frame. role says whether the
	// caller is decoding a request (server) or a response (client), since
	// the two use different length rules for the same function code.
	Decode(buffer []byte, role FramerRole) (consumed int, pdu *ProtocolDataUnit, err error)
	// HasTransactionID reports whether this framing carries a usable
	// transaction id on the wire (TCP's MBAP header) as opposed to tagging
	// it only as an internal correlator (RTU/ASCII). The TransactionManager
	// uses this to decide how to match a response to the request that's
	// awaiting it: by transaction id when true, or positionally when false
	// — the next decoded frame is the answer, since a manager only ever
	// has one request in flight at a time.
	HasTransactionID() bool
}

// predictPDULength inspects a PDU's function code and whatever data bytes
// have arrived so far (data[0] is the function code) and reports the total
// PDU length once it is knowable. ok is false when more bytes must arrive
// before the length can be determined. Keeping the per-function-code
// length rules in one lookup spares each framer from carrying its own
// copy.
func predictPDULength(data []byte, role FramerRole) (length int, ok bool) {
	if len(data) == 0 {
		return 0, false
	}
	fc := data[0]
	if fc&exceptionBit != 0 {
		return 2, true // function code + exception code
	}

	byteCountAt := func(offset, headerLen int) (int, bool) {
		if len(data) <= offset {
			return 0, false
		}
		return headerLen + int(data[offset]), true
	}

	switch fc {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		if role == RoleServer {
			return 5, true
		}
		return byteCountAt(1, 2)
	case FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister:
		return 5, true
	case FuncCodeReadExceptionStatus:
		if role == RoleServer {
			return 1, true
		}
		return 2, true
	case FuncCodeGetCommEventCounter:
		if role == RoleServer {
			return 1, true
		}
		return 5, true
	case FuncCodeGetCommEventLog:
		if role == RoleServer {
			return 1, true
		}
		return byteCountAt(1, 2)
	case FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
		if role == RoleServer {
			return byteCountAt(5, 6)
		}
		return 5, true
	case FuncCodeReportSlaveID:
		if role == RoleServer {
			return 1, true
		}
		return byteCountAt(1, 2)
	case FuncCodeReadFileRecord:
		return byteCountAt(1, 2)
	case FuncCodeWriteFileRecord:
		return byteCountAt(1, 2)
	case FuncCodeMaskWriteRegister:
		return 7, true
	case FuncCodeReadWriteMultipleRegisters:
		if role == RoleServer {
			return byteCountAt(9, 10)
		}
		return byteCountAt(1, 2)
	case FuncCodeReadFIFOQueue:
		if role == RoleServer {
			return 3, true
		}
		if len(data) < 3 {
			return 0, false
		}
		total := int(data[1])<<8 | int(data[2])
		return 3 + total, true
	case FuncCodeDiagnostics:
		return 5, true
	case FuncCodeMEI:
		if role == RoleServer {
			return 4, true
		}
		return predictMEIResponseLength(data)
	default:
		return 0, false
	}
}

// predictMEIResponseLength walks the variable-length device-identification
// object list of an FC43/14 response.
func predictMEIResponseLength(data []byte) (int, bool) {
	const headerLen = 7 // fc, meitype, readcode, conformity, morefollows, nextid, count
	if len(data) < headerLen {
		return 0, false
	}
	count := int(data[6])
	pos := headerLen
	for i := 0; i < count; i++ {
		if len(data) < pos+2 {
			return 0, false
		}
		objLen := int(data[pos+1])
		pos += 2 + objLen
	}
	if len(data) < pos {
		return 0, false
	}
	return pos, true
}
