// Package session tracks live connections, routes broadcasts by
// viewport, and throttles per-identity request rates.
package session

import (
	"errors"
	"sync"
)

// Viewport is the last requested range window; broadcasts are filtered
// against it. A session with no viewport yet receives everything.
type Viewport struct {
	X, Y, Radius int
}

// Session is one live connection. The out channel is drained by the
// connection's writer goroutine; Done is closed on eviction or
// shutdown and unblocks the reader loop.
type Session struct {
	UserID string
	Name   string
	Color  string

	out  chan []byte
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	viewport *Viewport
	ping     func() error
}

var ErrSendFull = errors.New("session send buffer full")

func NewSession(userID, name, color string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	return &Session{
		UserID: userID,
		Name:   name,
		Color:  color,
		out:    make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (s *Session) Out() <-chan []byte    { return s.out }
func (s *Session) Done() <-chan struct{} { return s.done }

// Close is idempotent and only signals; the transport owns the socket.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// Send queues an encoded envelope without blocking. A closed session
// or a full buffer is a delivery failure for this recipient only.
func (s *Session) Send(b []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}
	select {
	case s.out <- b:
		return nil
	default:
		return ErrSendFull
	}
}

func (s *Session) SetViewport(v Viewport) {
	s.mu.Lock()
	s.viewport = &v
	s.mu.Unlock()
}

// CurrentViewport returns a point-in-time copy; ok is false while no
// range request has been made yet.
func (s *Session) CurrentViewport() (Viewport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewport == nil {
		return Viewport{}, false
	}
	return *s.viewport, true
}

// SetPing installs the transport's liveness probe for the sweep.
func (s *Session) SetPing(fn func() error) {
	s.mu.Lock()
	s.ping = fn
	s.mu.Unlock()
}

func (s *Session) Ping() error {
	s.mu.Lock()
	fn := s.ping
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}
