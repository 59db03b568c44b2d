package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTypingTimeout is how long a typing signal lasts without a refresh.
const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	board uuid.UUID
	user  uuid.UUID
}

type typingTimer struct {
	gen   uint64
	timer *time.Timer
}

// Typing holds one expiry timer per (board, user). A timer that fires after
// being re-armed or stopped is ignored by generation check.
type Typing struct {
	mu      sync.Mutex
	timeout time.Duration
	timers  map[typingKey]*typingTimer
	gen     uint64
}

// NewTyping creates a timer set. A non-positive timeout uses the default.
func NewTyping(timeout time.Duration) *Typing {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &Typing{
		timeout: timeout,
		timers:  make(map[typingKey]*typingTimer),
	}
}

// Start arms or re-arms the timer. expire runs once, on its own goroutine,
// if the timer is neither re-armed nor stopped before the timeout.
func (t *Typing) Start(boardID, userID uuid.UUID, expire func()) {
	key := typingKey{board: boardID, user: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.timers[key]; ok {
		cur.timer.Stop()
	}
	t.gen++
	gen := t.gen
	tt := &typingTimer{gen: gen}
	tt.timer = time.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		cur, ok := t.timers[key]
		if !ok || cur.gen != gen {
			t.mu.Unlock()
			return
		}
		delete(t.timers, key)
		t.mu.Unlock()
		expire()
	})
	t.timers[key] = tt
}

// Stop clears the timer and reports whether one was active.
func (t *Typing) Stop(boardID, userID uuid.UUID) bool {
	key := typingKey{board: boardID, user: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.timers[key]
	if !ok {
		return false
	}
	cur.timer.Stop()
	delete(t.timers, key)
	return true
}

// Active reports whether a typing timer is pending.
func (t *Typing) Active(boardID, userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[typingKey{board: boardID, user: userID}]
	return ok
}

// StopAll clears every pending timer without firing them.
func (t *Typing) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, cur := range t.timers {
		cur.timer.Stop()
		delete(t.timers, key)
	}
}
