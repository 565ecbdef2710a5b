package binaryegress

import (
	"net"
	"sync"
	"time"

	"github.com/sweetshark/capture-sidecar/internal/logging"
)

var log = logging.L("binaryegress")

const (
	acceptPollInterval = 25 * time.Millisecond
	writeTimeout       = 15 * time.Millisecond
)

// Server is a process-scoped listener on 127.0.0.1 that accepts at most
// one binary consumer at a time. The capture engine writes frames
// through it; the accept loop silently displaces whatever consumer was
// previously connected, per the single-slot design.
type Server struct {
	listener *net.TCPListener
	port     int

	mu   sync.Mutex
	conn net.Conn

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Listen binds an ephemeral (or, if requestedPort is nonzero, a fixed)
// loopback port and returns a Server ready to accept. A bind failure
// means the binary path is disabled for this process's lifetime; the
// caller should fall back to text-only delivery.
func Listen(requestedPort int) (*Server, error) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: requestedPort}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener: l,
		port:     l.Addr().(*net.TCPAddr).Port,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	return s, nil
}

// Port returns the bound loopback port, fixed for the server's lifetime.
func (s *Server) Port() int {
	return s.port
}

// Run accepts connections until Stop is called. Intended to run in its
// own goroutine for the lifetime of the process.
func (s *Server) Run() {
	defer close(s.done)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(acceptPollInterval))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.stopCh:
				return
			default:
				log.Warn("binary egress accept failed", "error", err)
				continue
			}
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}

		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()
		log.Info("binary egress consumer connected", "remote", conn.RemoteAddr())
	}
}

// Stop closes the listener and any connected consumer, and waits for
// Run to return. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.listener.Close()
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
	})
	<-s.done
}

// WriteFrame attempts to write f to the currently connected consumer.
// A missing connection, an encode failure, or a write failure (including
// exceeding the write timeout) all clear the slot and return false,
// leaving the caller to fall back to the text path.
func (s *Server) WriteFrame(f Frame) bool {
	encoded, err := f.Encode()
	if err != nil {
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
		log.Warn("binary frame rejected", "error", err)
		return false
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return false
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(encoded); err != nil {
		s.mu.Lock()
		if s.conn == conn {
			conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
		log.Warn("binary egress write failed, falling back to text", "error", err)
		return false
	}
	return true
}

// Connected reports whether a consumer is currently attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}
