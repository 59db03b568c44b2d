package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// Transition describes how one room change affected the rooms involved.
type Transition struct {
	// Left is the board the connection left, or uuid.Nil.
	Left uuid.UUID
	// LastOut is true when the user has no other connection left in Left.
	LastOut bool
	// Joined is the board the connection entered, or uuid.Nil.
	Joined uuid.UUID
	// FirstIn is true when the user had no other connection in Joined.
	FirstIn bool
}

// Directory is the only mutation path that touches both the Registry and the
// Rooms. Holding its lock across both updates keeps them consistent.
type Directory struct {
	mu       sync.Mutex
	registry *Registry
	rooms    *Rooms
}

// NewDirectory creates a registry and room index sharing one clock.
func NewDirectory(now func() time.Time) *Directory {
	reg := NewRegistry(now)
	return &Directory{
		registry: reg,
		rooms:    NewRooms(reg),
	}
}

func (d *Directory) Registry() *Registry { return d.registry }
func (d *Directory) Rooms() *Rooms       { return d.rooms }

// Connect registers a new connection with no board.
func (d *Directory) Connect(connID uuid.UUID, user domain.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Register(connID, user)
}

// Enter moves the connection into boardID's room, leaving its previous room
// first. Entering the room it is already in changes nothing.
func (d *Directory) Enter(connID, boardID uuid.UUID) (Transition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.registry.Get(connID)
	if !ok {
		return Transition{}, ErrUnknownConnection
	}
	if rec.BoardID == boardID {
		return Transition{Joined: boardID}, nil
	}

	var t Transition
	if rec.Viewing() {
		t.Left = rec.BoardID
		d.rooms.Leave(rec.BoardID, connID)
		t.LastOut = !d.rooms.hasUser(rec.BoardID, rec.User.ID, connID)
	}
	t.Joined = boardID
	t.FirstIn = !d.rooms.hasUser(boardID, rec.User.ID, connID)
	d.rooms.Join(boardID, connID)
	if err := d.registry.SetBoard(connID, boardID); err != nil {
		return Transition{}, err
	}
	return t, nil
}

// Exit removes the connection from boardID's room. It reports false when the
// connection was not viewing that board.
func (d *Directory) Exit(connID, boardID uuid.UUID) (Transition, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.registry.Get(connID)
	if !ok || !rec.Viewing() || rec.BoardID != boardID {
		return Transition{}, false
	}
	return d.leaveLocked(rec), true
}

// Disconnect leaves the current room, if any, and unregisters the connection.
// It reports false when the connection was already gone.
func (d *Directory) Disconnect(connID uuid.UUID) (Record, Transition, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.registry.Get(connID)
	if !ok {
		return Record{}, Transition{}, false
	}
	var t Transition
	if rec.Viewing() {
		t = d.leaveLocked(rec)
	}
	d.registry.Unregister(connID)
	return rec, t, true
}

func (d *Directory) leaveLocked(rec Record) Transition {
	d.rooms.Leave(rec.BoardID, rec.ConnID)
	_ = d.registry.SetBoard(rec.ConnID, uuid.Nil)
	return Transition{
		Left:    rec.BoardID,
		LastOut: !d.rooms.hasUser(rec.BoardID, rec.User.ID, rec.ConnID),
	}
}
