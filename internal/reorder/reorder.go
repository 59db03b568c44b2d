// Package reorder computes position updates for ordered siblings (tasks in a
// column, columns in a board). It keeps positions dense, unique and
// zero-based while touching only the siblings that actually shift.
//
// All functions are pure: they read a snapshot of siblings and return a Plan.
// Applying a plan atomically, and serializing plans per parent, is the
// caller's job.
package reorder

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

var (
	ErrOutOfRange  = errors.New("reorder: position out of range")
	ErrUnknownItem = errors.New("reorder: item not among siblings")
	ErrMismatch    = errors.New("reorder: ordering does not match siblings")
)

// Item is one sibling as currently persisted.
type Item struct {
	ID       uuid.UUID
	Position int
}

// Update assigns a new position to a sibling.
type Update struct {
	ID       uuid.UUID
	Position int
}

// Plan is the set of sibling shifts produced by one operation. Position is
// the final position of the inserted or moved item; Updates never include
// that item itself.
type Plan struct {
	Updates  []Update
	Position int
	Changed  bool
}

// Insert opens a slot for a new item. A nil position appends after the
// current maximum.
func Insert(siblings []Item, position *int) (Plan, error) {
	if position == nil {
		return Plan{Position: Append(siblings), Changed: true}, nil
	}
	p := *position
	if p < 0 || p > len(siblings) {
		return Plan{}, ErrOutOfRange
	}
	plan := Plan{Position: p, Changed: true}
	for _, s := range siblings {
		if s.Position >= p {
			plan.Updates = append(plan.Updates, Update{ID: s.ID, Position: s.Position + 1})
		}
	}
	return plan, nil
}

// Append returns max position + 1, or 0 for an empty parent.
func Append(siblings []Item) int {
	next := 0
	for _, s := range siblings {
		if s.Position >= next {
			next = s.Position + 1
		}
	}
	return next
}

// Remove closes the gap left by deleting id. siblings must still contain id.
func Remove(siblings []Item, id uuid.UUID) (Plan, error) {
	old, ok := positionOf(siblings, id)
	if !ok {
		return Plan{}, ErrUnknownItem
	}
	plan := Plan{Position: old, Changed: true}
	for _, s := range siblings {
		if s.ID != id && s.Position > old {
			plan.Updates = append(plan.Updates, Update{ID: s.ID, Position: s.Position - 1})
		}
	}
	return plan, nil
}

// Move reorders id within its own parent to position p.
func Move(siblings []Item, id uuid.UUID, p int) (Plan, error) {
	old, ok := positionOf(siblings, id)
	if !ok {
		return Plan{}, ErrUnknownItem
	}
	if p < 0 || p >= len(siblings) {
		return Plan{}, ErrOutOfRange
	}
	if p == old {
		return Plan{Position: p}, nil
	}

	plan := Plan{Position: p, Changed: true}
	for _, s := range siblings {
		if s.ID == id {
			continue
		}
		switch {
		case p < old && s.Position >= p && s.Position < old:
			plan.Updates = append(plan.Updates, Update{ID: s.ID, Position: s.Position + 1})
		case p > old && s.Position > old && s.Position <= p:
			plan.Updates = append(plan.Updates, Update{ID: s.ID, Position: s.Position - 1})
		}
	}
	return plan, nil
}

// Transfer moves id from source to dest at position p. The gap in source is
// closed and a slot is opened in dest.
func Transfer(source, dest []Item, id uuid.UUID, p int) (Plan, error) {
	old, ok := positionOf(source, id)
	if !ok {
		return Plan{}, ErrUnknownItem
	}
	if p < 0 || p > len(dest) {
		return Plan{}, ErrOutOfRange
	}

	plan := Plan{Position: p, Changed: true}
	for _, s := range source {
		if s.ID != id && s.Position > old {
			plan.Updates = append(plan.Updates, Update{ID: s.ID, Position: s.Position - 1})
		}
	}
	for _, s := range dest {
		if s.Position >= p {
			plan.Updates = append(plan.Updates, Update{ID: s.ID, Position: s.Position + 1})
		}
	}
	return plan, nil
}

// Permute applies a complete ordering. ordered must name every sibling
// exactly once; only siblings whose position changes are returned.
func Permute(siblings []Item, ordered []uuid.UUID) (Plan, error) {
	if len(ordered) != len(siblings) {
		return Plan{}, ErrMismatch
	}
	current := make(map[uuid.UUID]int, len(siblings))
	for _, s := range siblings {
		current[s.ID] = s.Position
	}

	plan := Plan{Position: -1}
	seen := make(map[uuid.UUID]struct{}, len(ordered))
	for i, id := range ordered {
		pos, ok := current[id]
		if !ok {
			return Plan{}, ErrMismatch
		}
		if _, dup := seen[id]; dup {
			return Plan{}, ErrMismatch
		}
		seen[id] = struct{}{}
		if pos != i {
			plan.Updates = append(plan.Updates, Update{ID: id, Position: i})
		}
	}
	plan.Changed = len(plan.Updates) > 0
	return plan, nil
}

// Apply returns a copy of items with updates applied, sorted by position.
func Apply(items []Item, updates []Update) []Item {
	next := make(map[uuid.UUID]int, len(updates))
	for _, u := range updates {
		next[u.ID] = u.Position
	}
	out := make([]Item, len(items))
	for i, it := range items {
		if p, ok := next[it.ID]; ok {
			it.Position = p
		}
		out[i] = it
	}
	Sort(out)
	return out
}

// Sort orders items by position, breaking ties by id for determinism.
func Sort(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}

// Dense reports whether positions are exactly {0, 1, ..., n-1}.
func Dense(items []Item) bool {
	seen := make([]bool, len(items))
	for _, it := range items {
		if it.Position < 0 || it.Position >= len(items) || seen[it.Position] {
			return false
		}
		seen[it.Position] = true
	}
	return true
}

func positionOf(items []Item, id uuid.UUID) (int, bool) {
	for _, it := range items {
		if it.ID == id {
			return it.Position, true
		}
	}
	return 0, false
}
