package collab

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gosuda/boardsync/internal/domain"
)

// Session is one authenticated connection. The transport drains Outbound and
// stops when Done is closed.
type Session struct {
	ID   uuid.UUID
	User domain.Identity

	send chan []byte
	done chan struct{}

	events  *rate.Limiter
	cursors *rate.Limiter

	table *dispatchTable

	closeOnce sync.Once
	reasonMu  sync.Mutex
	reason    string
}

func newSession(user domain.Identity, opts Options) *Session {
	return &Session{
		ID:      uuid.New(),
		User:    user,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		events:  rate.NewLimiter(rate.Limit(opts.EventRate), opts.EventBurst),
		cursors: rate.NewLimiter(rate.Limit(opts.CursorRate), max(1, int(opts.CursorRate))),
	}
}

// Outbound yields encoded frames in broadcast order.
func (s *Session) Outbound() <-chan []byte { return s.send }

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Reason reports why the session ended, or "" while it is open.
func (s *Session) Reason() string {
	s.reasonMu.Lock()
	defer s.reasonMu.Unlock()
	return s.reason
}

// Closed reports whether teardown has run.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// enqueue queues a frame without blocking. It returns false when the
// session is closed or its queue is full.
func (s *Session) enqueue(frame []byte) bool {
	if s.Closed() {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// finish marks the session closed. It reports true only for the first call.
func (s *Session) finish(reason string) bool {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.reasonMu.Lock()
		s.reason = reason
		s.reasonMu.Unlock()
		close(s.done)
	})
	return first
}
