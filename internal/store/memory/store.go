// Package memory is an in-process implementation of the domain repositories.
// A single mutex serializes every operation, which gives each positional
// update the per-parent linearization the Postgres store gets from row locks.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/reorder"
)

type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	users   map[uuid.UUID]domain.User
	boards  map[uuid.UUID]domain.Board
	columns map[uuid.UUID]domain.Column
	tasks   map[uuid.UUID]domain.Task
	chat    map[uuid.UUID][]domain.ChatMessage
}

func New() *Store {
	return &Store{
		now:     time.Now,
		users:   make(map[uuid.UUID]domain.User),
		boards:  make(map[uuid.UUID]domain.Board),
		columns: make(map[uuid.UUID]domain.Column),
		tasks:   make(map[uuid.UUID]domain.Task),
		chat:    make(map[uuid.UUID][]domain.ChatMessage),
	}
}

func (s *Store) Users() domain.UserRepository     { return &UserRepo{s: s} }
func (s *Store) Boards() domain.BoardRepository   { return &BoardRepo{s: s} }
func (s *Store) Columns() domain.ColumnRepository { return &ColumnRepo{s: s} }
func (s *Store) Tasks() domain.TaskRepository     { return &TaskRepo{s: s} }
func (s *Store) Chat() domain.ChatRepository      { return &ChatRepo{s: s} }

// Close is a no-op; it lets the memory store stand in wherever the Postgres
// store is closed on shutdown.
func (s *Store) Close() {}

// positionError converts reorder failures into domain errors.
func positionError(err error) error {
	switch {
	case errors.Is(err, reorder.ErrOutOfRange):
		return domain.InvalidPosition("position is out of range")
	case errors.Is(err, reorder.ErrMismatch):
		return domain.InvalidPosition("ordering must list every column exactly once")
	case errors.Is(err, reorder.ErrUnknownItem):
		return domain.ErrNotFound
	default:
		return err
	}
}

func (s *Store) columnItems(boardID uuid.UUID) []reorder.Item {
	var items []reorder.Item
	for _, c := range s.columns {
		if c.BoardID == boardID {
			items = append(items, reorder.Item{ID: c.ID, Position: c.Position})
		}
	}
	reorder.Sort(items)
	return items
}

func (s *Store) taskItems(columnID uuid.UUID) []reorder.Item {
	var items []reorder.Item
	for _, t := range s.tasks {
		if t.ColumnID == columnID {
			items = append(items, reorder.Item{ID: t.ID, Position: t.Position})
		}
	}
	reorder.Sort(items)
	return items
}

// shiftColumns applies updates and returns the touched columns.
func (s *Store) shiftColumns(updates []reorder.Update, now time.Time) []*domain.Column {
	out := make([]*domain.Column, 0, len(updates))
	for _, u := range updates {
		c := s.columns[u.ID]
		c.Position = u.Position
		c.UpdatedAt = now
		s.columns[u.ID] = c
		out = append(out, cloneColumn(c))
	}
	return out
}

func (s *Store) shiftTasks(updates []reorder.Update, now time.Time) {
	for _, u := range updates {
		t := s.tasks[u.ID]
		t.Position = u.Position
		t.UpdatedAt = now
		s.tasks[u.ID] = t
	}
}

func cloneBoard(b domain.Board) *domain.Board {
	b.Members = append([]uuid.UUID(nil), b.Members...)
	return &b
}

func cloneColumn(c domain.Column) *domain.Column {
	return &c
}

func cloneTask(t domain.Task) *domain.Task {
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		t.AssigneeID = &id
	}
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return &t
}
