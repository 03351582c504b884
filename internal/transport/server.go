package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// ErrNotListening is returned by Serve before Listen.
var ErrNotListening = errors.New("server is not listening")

// Server accepts any number of concurrent TCP sessions for one handler.
type Server struct {
	addr    string
	handler Handler
	framing Framing
	logger  *slog.Logger

	mu        sync.Mutex
	listener  net.Listener
	accepting bool
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
}

// NewServer creates a server that will listen on addr once started.
func NewServer(addr string, h Handler, f Framing, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		handler: h,
		framing: f,
		logger:  logger.With("transport", "tcp"),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.listenLocked(); err != nil {
		return err
	}
	s.serveLocked()
	return nil
}

// Listen binds the listener without accepting yet. Clients connecting in
// between wait in the backlog until Serve.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenLocked()
}

// Serve begins accepting on the listener bound by Listen.
func (s *Server) Serve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ErrNotListening
	}
	s.serveLocked()
	return nil
}

func (s *Server) listenLocked() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

func (s *Server) serveLocked() {
	if s.accepting {
		return
	}
	s.accepting = true
	s.wg.Add(1)
	go s.acceptLoop(s.listener)
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open session, then waits for them.
func (s *Server) Stop() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.accepting = false
	var err error
	if ln != nil {
		err = ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log := s.logger.With("remote", remote)
	log.Info("client connected")

	if err := NewSession(s.handler, s.framing, log).Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warn("session ended", "error", err)
		return
	}
	log.Info("client disconnected")
}
