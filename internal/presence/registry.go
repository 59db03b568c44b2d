// Package presence tracks who is connected and which board each connection is
// viewing. The Registry and Rooms are mutated together through a Directory so
// that a connection is a room member exactly when its record names that board.
package presence

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

var (
	ErrAlreadyRegistered = errors.New("presence: connection already registered")
	ErrUnknownConnection = errors.New("presence: unknown connection")
)

// Record is the live state of one connection. BoardID is uuid.Nil while the
// connection is not viewing a board.
type Record struct {
	ConnID   uuid.UUID
	User     domain.Identity
	BoardID  uuid.UUID
	LastSeen time.Time
}

// Viewing reports whether the connection is currently in a board room.
func (r Record) Viewing() bool { return r.BoardID != uuid.Nil }

// Registry maps connection ids to presence records.
type Registry struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
	now     func() time.Time
}

// NewRegistry creates an empty registry. A nil clock defaults to time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		records: make(map[uuid.UUID]*Record),
		now:     now,
	}
}

// Register creates a record with no board assignment.
func (r *Registry) Register(connID uuid.UUID, user domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[connID]; ok {
		return ErrAlreadyRegistered
	}
	r.records[connID] = &Record{
		ConnID:   connID,
		User:     user,
		LastSeen: r.now(),
	}
	return nil
}

// SetBoard updates the current board. Pass uuid.Nil to clear it.
func (r *Registry) SetBoard(connID, boardID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[connID]
	if !ok {
		return ErrUnknownConnection
	}
	rec.BoardID = boardID
	return nil
}

// Touch refreshes last-seen. It reports false for unknown connections.
func (r *Registry) Touch(connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[connID]
	if !ok {
		return false
	}
	rec.LastSeen = r.now()
	return true
}

// Unregister removes the record and returns it. Unregistering twice is fine.
func (r *Registry) Unregister(connID uuid.UUID) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[connID]
	if !ok {
		return Record{}, false
	}
	delete(r.records, connID)
	return *rec, true
}

// Get returns a copy of the record.
func (r *Registry) Get(connID uuid.UUID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[connID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Idle returns connections whose last activity is before cutoff.
func (r *Registry) Idle(cutoff time.Time) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, rec := range r.records {
		if rec.LastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Snapshot returns copies of all records ordered by connection id.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnID.String() < out[j].ConnID.String()
	})
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
