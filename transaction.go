package modbus

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TransactionManager drives one Framer/Transport pair on the client side:
// it assigns transaction ids, writes the encoded request, accumulates
// inbound bytes until a full response frame decodes, retries on timeout,
// and fires broadcast requests without waiting for an answer.
//
// A single TransactionManager serializes all requests through its mutex:
// Modbus RTU/ASCII lines cannot be shared across concurrent in-flight
// requests, and even Modbus/TCP servers commonly process one PDU at a
// time per connection.
type TransactionManager struct {
	mu        sync.Mutex
	transport Transport
	framer    Framer
	buffer    []byte
	nextTID   uint32

	Timeout    time.Duration
	MaxRetries int

	// BroadcastEnable gates device_id=0 fire-and-forget requests.
	// Defaults to true via NewTransactionManager so constructing
	// a manager directly (as the RTU/TCP/ASCII handlers and this package's
	// own tests do) preserves broadcast without extra configuration; a
	// ClientConfig built from its bare zero value instead starts with
	// broadcast disabled until DefaultClientConfig() or an explicit
	// opt-in enables it.
	BroadcastEnable bool

	// HandleLocalEcho, when true, expects the first len(sentFrame) bytes
	// read back after a send to be an exact echo of the request (common on
	// half-duplex RTU/ASCII lines where the transmitted bytes loop back on
	// the receive line) and discards them before looking for the real
	// response. A mismatch fails the attempt with IOErrorWrongLocalEcho
	// without re-reading; the normal retry loop resends.
	HandleLocalEcho bool

	// ReconnectDelayMin/Max bound the exponential backoff applied before
	// each reconnect attempt following a disconnection, doubling from Min
	// up to Max. A zero ReconnectDelayMin disables the delay (but
	// reconnection itself still happens immediately) rather than
	// disabling reconnection.
	ReconnectDelayMin time.Duration
	ReconnectDelayMax time.Duration

	// PointToPoint marks a framing that addresses exactly one peer.
	// Modbus/TLS pins device_id to 0, so on a point-to-point link
	// id 0 is the peer itself and Execute treats it as a normal unicast
	// request instead of a broadcast. Set by NewModbusTLSHandler.
	PointToPoint bool

	Logger *zap.SugaredLogger
}

// NewTransactionManager builds a manager over transport/framer with the
// given per-attempt timeout and retry budget. Broadcast is enabled by
// default; see BroadcastEnable.
func NewTransactionManager(transport Transport, framer Framer, timeout time.Duration, maxRetries int) *TransactionManager {
	return &TransactionManager{
		transport:       transport,
		framer:          framer,
		Timeout:         timeout,
		MaxRetries:      maxRetries,
		BroadcastEnable: true,
		Logger:          zap.NewNop().Sugar(),
	}
}

// allocateTransactionID returns the next transaction id, skipping 0: some
// TCP server implementations treat transaction id 0 as "unset", so
// client-originated ids stay in 1..0xFFFF.
func (tm *TransactionManager) allocateTransactionID() uint16 {
	id := uint16(atomic.AddUint32(&tm.nextTID, 1))
	if id == 0 {
		id = uint16(atomic.AddUint32(&tm.nextTID, 1))
	}
	return id
}

// Execute sends request to deviceID and returns the matching response.
// Device id 0 is a broadcast: when BroadcastEnable is set, the request is
// sent once, fire-and-forget, and Execute returns immediately with a nil
// response (no retries apply to a broadcast since no reply is ever
// expected); otherwise device id 0 is refused outright, since no real
// slave answers it individually and waiting for one would just time out.
func (tm *TransactionManager) Execute(deviceID uint8, request *ProtocolDataUnit) (*ProtocolDataUnit, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	broadcast := deviceID == 0 && !tm.PointToPoint
	if broadcast && !tm.BroadcastEnable {
		return nil, &ConfigError{Message: "device id 0 is reserved for broadcast; enable BroadcastEnable to use it"}
	}

	request.DeviceId = deviceID
	// The allocated id is an internal correlator on every framing; it only
	// reaches the wire when the framing has a usable transaction id field
	// (RTU/ASCII never emit it, and Modbus/TLS pins the field to 0).
	if tid := tm.allocateTransactionID(); tm.framer.HasTransactionID() {
		request.TransactionId = tid
	} else {
		request.TransactionId = 0
	}

	frame, err := tm.framer.Encode(request)
	if err != nil {
		return nil, err
	}

	if broadcast {
		if err := tm.transport.Send(frame); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= tm.MaxRetries; attempt++ {
		if attempt > 0 {
			tm.Logger.Debugw("retrying modbus request", "attempt", attempt, "function_code", request.FunctionCode)
			if isDisconnectError(lastErr) {
				if err := tm.reconnect(attempt); err != nil {
					lastErr = err
					continue
				}
			}
		}
		if err := tm.transport.Send(frame); err != nil {
			lastErr = err
			continue
		}
		response, err := tm.awaitResponse(request, frame)
		if err == nil {
			return response, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// reconnect backs off and then asks the
// transport to redial, if it supports Reconnecter; a transport without it
// is left as it is. A TCP or serial transporter built from an already-open
// connection or port has no dial configuration: its Reconnect closes it and
// fails with a *ConfigError, which becomes the attempt's error.
func (tm *TransactionManager) reconnect(attempt int) error {
	rc, ok := tm.transport.(Reconnecter)
	if !ok {
		return nil
	}
	if delay := reconnectBackoff(tm.ReconnectDelayMin, tm.ReconnectDelayMax, attempt); delay > 0 {
		time.Sleep(delay)
	}
	if err := rc.Reconnect(); err != nil {
		tm.Logger.Debugw("reconnect attempt failed", "attempt", attempt, "error", err)
		return err
	}
	return nil
}

// reconnectBackoff computes the delay before the attempt'th reconnect,
// doubling from min and capping at max. attempt is 1 for the first
// retry.
func reconnectBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		return 0
	}
	delay := min
	for i := 1; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// isDisconnectError reports whether err is an *IOError representing a lost
// or failed connection, as opposed to a timeout or protocol exception —
// the cases reconnect should fire for.
func isDisconnectError(err error) bool {
	ioErr, ok := err.(*IOError)
	if !ok {
		return false
	}
	return ioErr.Kind == IOErrorDisconnected || ioErr.Kind == IOErrorConnectFailed
}

// awaitResponse reads from the transport, feeding bytes through the framer
// until a frame decodes, is discarded as an echo, or the deadline passes.
// sentFrame is the exact bytes just written, used by the local-echo
// discard path (HandleLocalEcho).
func (tm *TransactionManager) awaitResponse(request *ProtocolDataUnit, sentFrame []byte) (*ProtocolDataUnit, error) {
	deadline := time.Now().Add(tm.Timeout)
	hasTID := tm.framer.HasTransactionID()
	echoPending := tm.HandleLocalEcho

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &IOError{Kind: IOErrorTimeout}
		}

		if echoPending && len(tm.buffer) >= len(sentFrame) {
			if bytes.Equal(tm.buffer[:len(sentFrame)], sentFrame) {
				tm.advance(len(sentFrame))
				echoPending = false
			} else {
				return nil, &IOError{Kind: IOErrorWrongLocalEcho}
			}
		}

		if !echoPending {
			for {
				consumed, pdu, err := tm.framer.Decode(tm.buffer, RoleClient)
				if err != nil {
					tm.advance(consumed)
					if ferr, ok := err.(*FrameError); ok {
						tm.Logger.Debugw("discarding malformed frame", "kind", ferr.Kind, "message", ferr.Message)
						continue
					}
					return nil, err
				}
				if pdu == nil {
					break
				}
				tm.advance(consumed)

				// TCP carries a real wire transaction id and may have
				// other traffic interleaved, so only a matching id
				// resolves this call. RTU/ASCII have no wire id: the manager
				// serializes all requests through its mutex, so the next
				// decoded frame is positionally this call's response.
				if hasTID && pdu.TransactionId != request.TransactionId {
					continue // stale or mismatched response; keep reading
				}
				if pdu.FunctionCode != request.FunctionCode&^exceptionBit && !pdu.IsException() {
					return nil, responseError(pdu)
				}
				if pdu.IsException() {
					return nil, responseError(pdu)
				}
				return pdu, nil
			}
		}

		chunk, err := tm.transport.Recv(remaining)
		if err != nil {
			return nil, err
		}
		tm.buffer = append(tm.buffer, chunk...)
	}
}

// Raw sends data exactly as given and returns whatever single chunk comes
// back, bypassing the framer entirely, for callers that want to hand-roll
// a non-standard frame.
func (tm *TransactionManager) Raw(data []byte) ([]byte, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if err := tm.transport.Send(data); err != nil {
		return nil, err
	}
	return tm.transport.Recv(tm.Timeout)
}

// advance drops n consumed bytes from the front of the accumulation buffer.
func (tm *TransactionManager) advance(n int) {
	if n <= 0 {
		return
	}
	if n >= len(tm.buffer) {
		tm.buffer = tm.buffer[:0]
		return
	}
	tm.buffer = append(tm.buffer[:0], tm.buffer[n:]...)
}
