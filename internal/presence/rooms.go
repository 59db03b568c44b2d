package presence

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Cursor is a pointer position on the board canvas.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Presence is the public view of a user in a room.
type Presence struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	BoardID  uuid.UUID `json:"boardId"`
	Cursor   *Cursor   `json:"cursor,omitempty"`
}

// PresenceOf builds the public view of a record.
func PresenceOf(rec Record) Presence {
	return Presence{
		UserID:   rec.User.ID,
		Username: rec.User.Username,
		Avatar:   rec.User.Avatar,
		BoardID:  rec.BoardID,
	}
}

// Rooms maps board ids to the connections viewing them. Sets are created on
// first join and dropped when they become empty.
type Rooms struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]map[uuid.UUID]struct{}
	registry *Registry
}

// NewRooms creates an empty index that resolves users through registry.
func NewRooms(registry *Registry) *Rooms {
	return &Rooms{
		rooms:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		registry: registry,
	}
}

// Join adds connID to the board's room.
func (r *Rooms) Join(boardID, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[boardID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.rooms[boardID] = set
	}
	set[connID] = struct{}{}
}

// Leave removes connID and reports whether it was a member.
func (r *Rooms) Leave(boardID, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[boardID]
	if !ok {
		return false
	}
	if _, member := set[connID]; !member {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.rooms, boardID)
	}
	return true
}

// MembersOf returns a snapshot of the connections in the room.
func (r *Rooms) MembersOf(boardID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[boardID]
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Boards returns the ids of all non-empty rooms.
func (r *Rooms) Boards() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	return out
}

// OnlineUsers returns one presence entry per distinct user in the room. A user
// with several connections is represented by the most recently active one.
func (r *Rooms) OnlineUsers(boardID uuid.UUID) []Presence {
	latest := make(map[uuid.UUID]Record)
	for _, connID := range r.MembersOf(boardID) {
		rec, ok := r.registry.Get(connID)
		if !ok || rec.BoardID != boardID {
			continue
		}
		if cur, seen := latest[rec.User.ID]; seen && !rec.LastSeen.After(cur.LastSeen) {
			continue
		}
		latest[rec.User.ID] = rec
	}

	out := make([]Presence, 0, len(latest))
	for _, rec := range latest {
		out = append(out, PresenceOf(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out
}

// hasUser reports whether any connection of userID other than except is in
// the room.
func (r *Rooms) hasUser(boardID, userID, except uuid.UUID) bool {
	for _, connID := range r.MembersOf(boardID) {
		if connID == except {
			continue
		}
		if rec, ok := r.registry.Get(connID); ok && rec.User.ID == userID {
			return true
		}
	}
	return false
}
