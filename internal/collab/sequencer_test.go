package collab

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSequencer_SerializesPerBoard(t *testing.T) {
	t.Parallel()

	q := newSequencer()
	boardID := uuid.New()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.do(boardID, func() error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, q.len(), "idle slots are dropped")
}

func TestSequencer_IndependentBoards(t *testing.T) {
	t.Parallel()

	q := newSequencer()
	a, b := uuid.New(), uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.do(a, func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	// b must not wait for a.
	ran := false
	_ = q.do(b, func() error { ran = true; return nil })
	assert.True(t, ran)
	assert.Equal(t, 1, q.len())
	close(release)
}
