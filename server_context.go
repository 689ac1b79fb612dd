package modbus

import "sync"

// ServerContext maps device IDs to SlaveContexts, modeling either a
// single-device slave or a multidrop gateway fronting several slaves.
// A single-device context answers every device ID (useful
// for a TCP server where the unit identifier is typically ignored);
// otherwise unknown device IDs produce NoSuchSlave.
type ServerContext struct {
	mu       sync.RWMutex
	slaves   map[uint8]*SlaveContext
	single   *SlaveContext
	isSingle bool
}

// NewSingleServerContext builds a ServerContext that answers every device ID
// with the same SlaveContext.
func NewSingleServerContext(ctx *SlaveContext) *ServerContext {
	return &ServerContext{single: ctx, isSingle: true}
}

// NewMultiServerContext builds a ServerContext that only answers the device
// IDs explicitly registered with AddSlave.
func NewMultiServerContext() *ServerContext {
	return &ServerContext{slaves: make(map[uint8]*SlaveContext)}
}

// AddSlave registers ctx under deviceID. Only valid on a multi-device
// context; no-op on a single-device one.
func (s *ServerContext) AddSlave(deviceID uint8, ctx *SlaveContext) {
	if s.isSingle {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slaves[deviceID] = ctx
}

// RemoveSlave unregisters deviceID.
func (s *ServerContext) RemoveSlave(deviceID uint8) {
	if s.isSingle {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slaves, deviceID)
}

// Slave looks up the SlaveContext for deviceID, returning *NoSuchSlave if
// this is a multi-device context with no slave registered under that ID.
func (s *ServerContext) Slave(deviceID uint8) (*SlaveContext, error) {
	if s.isSingle {
		return s.single, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.slaves[deviceID]
	if !ok {
		return nil, &NoSuchSlave{DeviceID: deviceID}
	}
	return ctx, nil
}

// AllSlaves returns every SlaveContext a broadcast request must be applied
// to: the single context in single-device mode, or every
// registered slave in multi-device mode.
func (s *ServerContext) AllSlaves() []*SlaveContext {
	if s.isSingle {
		if s.single == nil {
			return nil
		}
		return []*SlaveContext{s.single}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*SlaveContext, 0, len(s.slaves))
	for _, ctx := range s.slaves {
		out = append(out, ctx)
	}
	return out
}
