package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-transport/engine"
)

// Printer is the part of the engine the server needs
type Printer interface {
	Open(req engine.OpenRequest) (engine.OpenResult, error)
	Write(id string, data []byte) error
	Close(id string) error
}

// Server represents a TCP server that forwards raw bytes to one printer
// session
type Server struct {
	printer   Printer
	target    engine.OpenRequest
	sessionID string
	listener  net.Listener
	address   string
	mu        sync.Mutex
	running   bool
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// New creates a new server instance. The session to target is opened when
// the server starts.
func New(printer Printer, target engine.OpenRequest, address string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		printer: printer,
		target:  target,
		address: address,
		logger:  logger.Named("server"),
	}
}

// Start starts the TCP server and blocks until Stop is called
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("address", s.address), zap.String("mode", "blocking"))
	if err := s.listen(); err != nil {
		return err
	}

	s.logger.Info("ready to accept connections")
	s.acceptConnections()
	return nil
}

// StartAsync starts the TCP server in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	s.logger.Info("starting server", zap.String("address", s.address), zap.String("mode", "async"))
	if err := s.listen(); err != nil {
		return err
	}

	go s.acceptConnections()
	s.logger.Info("server started in background, ready to accept connections")
	return nil
}

// listen binds the listener and opens the printer session
func (s *Server) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Error("server already running")
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error("failed to start server", zap.Error(err))
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.logger.Info("opening printer session", zap.String("transport", s.target.Transport))
	res, err := s.printer.Open(s.target)
	if err != nil {
		listener.Close()
		s.logger.Error("failed to open printer session", zap.Error(err))
		return fmt.Errorf("failed to open printer session: %w", err)
	}

	s.listener = listener
	s.sessionID = res.SessionID
	s.running = true
	s.wg.Add(1)
	s.logger.Info("server listening",
		zap.Stringer("address", listener.Addr()),
		zap.String("sessionId", res.SessionID))
	return nil
}

// acceptConnections handles incoming client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()

			if !running || errors.Is(err, net.ErrClosed) {
				s.logger.Info("server shutting down, stopping accept loop")
				return
			}
			s.logger.Warn("error accepting connection", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		if s.conns == nil {
			s.conns = make(map[net.Conn]struct{})
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		s.logger.Info("client connected", zap.Stringer("remote", conn.RemoteAddr()))
		go s.handleConnection(conn)
	}
}

// handleConnection forwards every chunk read from conn to the session
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	clientAddr := conn.RemoteAddr().String()
	defer func() {
		s.logger.Info("client disconnected", zap.String("remote", clientAddr))
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	s.mu.Lock()
	id := s.sessionID
	s.mu.Unlock()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.logger.Debug("received bytes", zap.Int("bytes", n), zap.String("remote", clientAddr))
			if writeErr := s.printer.Write(id, buf[:n]); writeErr != nil {
				s.logger.Error("error writing to printer", zap.String("sessionId", id), zap.Error(writeErr))
				return
			}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("error reading from client", zap.String("remote", clientAddr), zap.Error(err))
			}
			return
		}
	}
}

// Stop closes the listener and every client connection, waits for client
// handlers and closes the printer session
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Debug("stop called but server is not running")
		return nil
	}

	s.logger.Info("stopping server")
	s.running = false
	listener := s.listener
	id := s.sessionID
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	s.logger.Debug("waiting for active connections to close")
	s.wg.Wait()

	if err := s.printer.Close(id); err != nil {
		s.logger.Error("error closing printer session", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.sessionID = ""
	s.mu.Unlock()

	s.logger.Info("server stopped", zap.String("sessionId", id))
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured listen address
func (s *Server) Address() string {
	return s.address
}

// Addr returns the bound listener address, or nil before start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionID returns the printer session opened by the running server
func (s *Server) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}
