package localserver

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// IdleTimeout closes connections that send no command for this long.
const IdleTimeout = 5 * time.Minute

// Server represents the local management server.
type Server struct {
	listener net.Listener
	path     string
	handler  *Handler
	logger   *slog.Logger
	running  atomic.Bool
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New creates a new local server.
func New(socketPath string, handler *Handler) *Server {
	return &Server{
		path:    socketPath,
		handler: handler,
		logger:  handler.logger,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds the socket. A stale socket file left by a previous run is
// removed first. The socket is only accessible by its owner.
func (s *Server) Listen() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		ln.Close()
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.path
}

// ListenAndServe binds the socket if needed and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.running.Store(true)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConnection(conn)
		}()
	}
}

// Shutdown stops accepting connections, closes idle ones and waits for
// in-flight commands to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}

	s.mu.Lock()
	s.running.Store(false)
	for c := range s.conns {
		c.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for {
		if !s.armDeadline(conn) {
			return
		}
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if err := s.handler.Execute(w, fields[0], fields[1:]); err != nil {
			s.logger.Debug("local reply failed", "command", fields[0], "error", err)
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// armDeadline sets the idle deadline unless Shutdown already began.
func (s *Server) armDeadline(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	conn.SetReadDeadline(time.Now().Add(IdleTimeout))
	return true
}
