package modbus

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// idleRecvTimeout bounds each blocking Recv call in the server read loop so
// a connection with no traffic still lets ServeConn notice a closed
// transport promptly instead of blocking forever.
const idleRecvTimeout = 30 * time.Second

// ServerConfig configures dispatch behavior shared by every connection a
// Server serves.
type ServerConfig struct {
	// BroadcastEnable, when true, executes a device_id=0 request against
	// every slave in Context and never sends a reply.
	BroadcastEnable bool
	// IgnoreMissingSlaves, when true, silently drops requests addressed to
	// an unregistered device id instead of answering with
	// GatewayTargetFailed.
	IgnoreMissingSlaves bool
	Logger              *zap.SugaredLogger
}

// DefaultServerConfig returns a single-drop TCP-style configuration:
// broadcast disabled, missing slaves answered with an exception rather than
// dropped, logging at info level to stdout.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Logger: NewStructuredLogger(LevelInfo, nil)}
}

// Server dispatches decoded requests against a ServerContext. It is
// transport- and framer-agnostic: ServeConn drives one connection, and
// ListenAndServeTCP is a thin convenience loop over net.Listener for the
// common MBAP-over-TCP case.
type Server struct {
	Context *ServerContext
	Config  ServerConfig

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
}

// NewServer builds a Server dispatching against ctx.
func NewServer(ctx *ServerContext, cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Server{Context: ctx, Config: cfg}
}

// ServeConn reads frame bytes from transport, dispatches each decoded
// request via framer's server-side decoding, and writes back whatever
// response (if any) dispatch produces. It runs until transport.Recv or
// transport.Send reports an I/O error (connection closed or otherwise
// unusable), or Decode fails with an error other than a *FrameError, and
// returns that error to the caller.
func (s *Server) ServeConn(transport Transport, framer Framer) error {
	var buffer []byte
	for {
		for {
			consumed, pdu, err := framer.Decode(buffer, RoleServer)
			if err != nil {
				buffer = advanceBuffer(buffer, consumed)
				if ferr, ok := err.(*FrameError); ok {
					s.Config.Logger.Debugw("discarding malformed frame", "kind", ferr.Kind, "message", ferr.Message)
					continue
				}
				return err
			}
			if pdu == nil {
				break
			}
			buffer = advanceBuffer(buffer, consumed)

			response := s.dispatch(pdu)
			if response == nil {
				continue
			}
			frame, err := framer.Encode(response)
			if err != nil {
				s.Config.Logger.Warnw("failed to encode response", "error", err)
				continue
			}
			if err := transport.Send(frame); err != nil {
				return err
			}
		}

		chunk, err := transport.Recv(idleRecvTimeout)
		if err != nil {
			return err
		}
		buffer = append(buffer, chunk...)
	}
}

// advanceBuffer drops the first n bytes of buffer, matching the
// TransactionManager's client-side accumulation discipline.
func advanceBuffer(buffer []byte, n int) []byte {
	if n <= 0 {
		return buffer
	}
	if n >= len(buffer) {
		return buffer[:0]
	}
	return append(buffer[:0], buffer[n:]...)
}

// dispatch performs broadcast fan-out, missing-slave
// handling, request execution, and response tagging/suppression. It never
// returns an error — every failure mode short of "no reply expected"
// becomes either a nil response or an exception PDU.
func (s *Server) dispatch(pdu *ProtocolDataUnit) *ProtocolDataUnit {
	if pdu.DeviceId == 0 && s.Config.BroadcastEnable {
		for _, slave := range s.Context.AllSlaves() {
			s.executeOne(slave, pdu)
		}
		return nil
	}

	slave, err := s.Context.Slave(pdu.DeviceId)
	if err != nil {
		if s.Config.IgnoreMissingSlaves {
			s.Config.Logger.Debugw("dropping request for unregistered slave", "device_id", pdu.DeviceId)
			return nil
		}
		resp := NewExceptionResponse(pdu.FunctionCode, ExceptionGatewayTargetFailed)
		resp.TransactionId = pdu.TransactionId
		resp.DeviceId = pdu.DeviceId
		return resp
	}

	response := s.executeOne(slave, pdu)
	response.TransactionId = pdu.TransactionId
	response.DeviceId = pdu.DeviceId

	if slave.Diagnostics != nil {
		slave.Diagnostics.mu.Lock()
		listenOnly := slave.Diagnostics.ListenOnly
		slave.Diagnostics.mu.Unlock()
		if listenOnly {
			return nil
		}
	}
	return response
}

// executeOne decodes pdu's function-specific body via the request registry
// and applies it to slave, converting any error (unknown function code,
// range violation, unbacked address) into an exception PDU rather than
// propagating it: protocol exceptions never tear down the connection.
func (s *Server) executeOne(slave *SlaveContext, pdu *ProtocolDataUnit) *ProtocolDataUnit {
	request, err := DecodeRequest(pdu)
	if err != nil {
		return exceptionFor(pdu.FunctionCode, err)
	}

	response, err := request.Execute(slave)
	if err != nil {
		return exceptionFor(pdu.FunctionCode, err)
	}
	return response
}

// exceptionFor converts err into an exception PDU tagged with
// functionCode's unmasked value, defaulting to SlaveDeviceFailure for any
// error that isn't already a *ModbusError.
func exceptionFor(functionCode byte, err error) *ProtocolDataUnit {
	if mbErr, ok := err.(*ModbusError); ok {
		return NewExceptionResponse(functionCode, mbErr.ExceptionCode)
	}
	return NewExceptionResponse(functionCode, ExceptionSlaveDeviceFailure)
}

// ListenAndServeTCP accepts connections on listener, serving each with a
// fresh TCPTransporter/TCPFramer pair on its own goroutine until Close is
// called. It blocks until listener.Accept fails (normally because Close
// closed it).
func (s *Server) ListenAndServeTCP(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.listener == nil
			s.mu.Unlock()
			if closing {
				return nil
			}
			return err
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		go s.serveTCPConn(conn)
	}
}

func (s *Server) serveTCPConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	transport := NewTCPTransporterFromConn(conn)
	if err := s.ServeConn(transport, NewTCPFramer()); err != nil {
		s.Config.Logger.Debugw("connection closed", "remote_addr", conn.RemoteAddr(), "error", err)
	}
}

// Close stops accepting new connections and closes every connection being
// served. Any request still being handled on those connections is
// abandoned without a response.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
		s.listener = nil
	}
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
	return err
}
