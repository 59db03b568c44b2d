package collab

import (
	"sync"

	"github.com/google/uuid"
)

// sequencer serializes mutations per board so that each mutation and its
// broadcast reach the room in commit order.
type sequencer struct {
	mu     sync.Mutex
	boards map[uuid.UUID]*seqSlot
}

type seqSlot struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{boards: make(map[uuid.UUID]*seqSlot)}
}

// do runs fn while holding boardID's slot. Slots are dropped once unused.
func (q *sequencer) do(boardID uuid.UUID, fn func() error) error {
	q.mu.Lock()
	slot, ok := q.boards[boardID]
	if !ok {
		slot = &seqSlot{}
		q.boards[boardID] = slot
	}
	slot.refs++
	q.mu.Unlock()

	slot.mu.Lock()
	defer func() {
		slot.mu.Unlock()
		q.mu.Lock()
		slot.refs--
		if slot.refs == 0 {
			delete(q.boards, boardID)
		}
		q.mu.Unlock()
	}()
	return fn()
}

func (q *sequencer) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.boards)
}
