package memory_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/reorder"
	"github.com/gosuda/boardsync/internal/store/memory"
)

func seedBoard(t *testing.T, s *memory.Store) *domain.Board {
	t.Helper()

	owner := &domain.User{ID: uuid.New(), Username: "owner", Email: uuid.NewString() + "@example.com"}
	require.NoError(t, s.Users().Create(context.Background(), owner))
	b, err := domain.NewBoard(owner.ID, "Roadmap", "")
	require.NoError(t, err)
	require.NoError(t, s.Boards().Create(context.Background(), b))
	return b
}

func seedColumn(t *testing.T, s *memory.Store, boardID uuid.UUID, title string) *domain.Column {
	t.Helper()

	c, err := domain.NewColumn(boardID, title)
	require.NoError(t, err)
	require.NoError(t, s.Columns().Create(context.Background(), c, nil))
	return c
}

func seedTask(t *testing.T, s *memory.Store, columnID, creator uuid.UUID, title string) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(domain.TaskDraft{Title: title, ColumnID: columnID}, creator, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Tasks().Create(context.Background(), task, nil))
	return task
}

func taskOrder(t *testing.T, s *memory.Store, columnID uuid.UUID) []string {
	t.Helper()

	tasks, err := s.Tasks().ListByColumn(context.Background(), columnID)
	require.NoError(t, err)
	out := make([]string, len(tasks))
	for i, task := range tasks {
		assert.Equal(t, i, task.Position, "task %s", task.Title)
		out[i] = task.Title
	}
	return out
}

func TestTaskRepo_CreateAppendsAndInserts(t *testing.T) {
	t.Parallel()

	s := memory.New()
	b := seedBoard(t, s)
	col := seedColumn(t, s, b.ID, "Todo")

	a := seedTask(t, s, col.ID, b.OwnerID, "A")
	assert.Equal(t, 0, a.Position)
	seedTask(t, s, col.ID, b.OwnerID, "B")

	front, err := domain.NewTask(domain.TaskDraft{Title: "F", ColumnID: col.ID}, b.OwnerID, time.Now())
	require.NoError(t, err)
	zero := 0
	require.NoError(t, s.Tasks().Create(context.Background(), front, &zero))

	assert.Equal(t, []string{"F", "A", "B"}, taskOrder(t, s, col.ID))

	bad := 9
	late, _ := domain.NewTask(domain.TaskDraft{Title: "L", ColumnID: col.ID}, b.OwnerID, time.Now())
	err = s.Tasks().Create(context.Background(), late, &bad)
	require.ErrorIs(t, err, domain.ErrValidation)

	missing, _ := domain.NewTask(domain.TaskDraft{Title: "M", ColumnID: uuid.New()}, b.OwnerID, time.Now())
	err = s.Tasks().Create(context.Background(), missing, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskRepo_MoveSameColumn(t *testing.T) {
	t.Parallel()

	s := memory.New()
	b := seedBoard(t, s)
	col := seedColumn(t, s, b.ID, "Todo")
	for _, title := range []string{"A", "B", "C"} {
		seedTask(t, s, col.ID, b.OwnerID, title)
	}
	d := seedTask(t, s, col.ID, b.OwnerID, "D")

	move, err := s.Tasks().Move(context.Background(), d.ID, col.ID, 1)
	require.NoError(t, err)
	assert.True(t, move.Moved)
	assert.Equal(t, col.ID, move.FromColumnID)
	assert.Equal(t, 3, move.FromPosition)
	assert.Equal(t, 1, move.Task.Position)

	assert.Equal(t, []string{"A", "D", "B", "C"}, taskOrder(t, s, col.ID))

	move, err = s.Tasks().Move(context.Background(), d.ID, col.ID, 1)
	require.NoError(t, err)
	assert.False(t, move.Moved)
}

func TestTaskRepo_MoveAcrossColumns(t *testing.T) {
	t.Parallel()

	s := memory.New()
	b := seedBoard(t, s)
	x := seedColumn(t, s, b.ID, "X")
	y := seedColumn(t, s, b.ID, "Y")
	a := seedTask(t, s, x.ID, b.OwnerID, "A")
	seedTask(t, s, x.ID, b.OwnerID, "B")
	seedTask(t, s, y.ID, b.OwnerID, "C")

	move, err := s.Tasks().Move(context.Background(), a.ID, y.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, x.ID, move.FromColumnID)
	assert.Equal(t, y.ID, move.Task.ColumnID)

	assert.Equal(t, []string{"B"}, taskOrder(t, s, x.ID))
	assert.Equal(t, []string{"A", "C"}, taskOrder(t, s, y.ID))

	_, err = s.Tasks().Move(context.Background(), a.ID, x.ID, 5)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.Tasks().Move(context.Background(), a.ID, uuid.New(), 0)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskRepo_DeleteClosesGap(t *testing.T) {
	t.Parallel()

	s := memory.New()
	b := seedBoard(t, s)
	col := seedColumn(t, s, b.ID, "Todo")
	seedTask(t, s, col.ID, b.OwnerID, "A")
	bTask := seedTask(t, s, col.ID, b.OwnerID, "B")
	seedTask(t, s, col.ID, b.OwnerID, "C")

	deleted, err := s.Tasks().Delete(context.Background(), bTask.ID)
	require.NoError(t, err)
	assert.Equal(t, bTask.ID, deleted.ID)
	assert.Equal(t, []string{"A", "C"}, taskOrder(t, s, col.ID))

	_, err = s.Tasks().Delete(context.Background(), bTask.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskRepo_UpdateKeepsPlacement(t *testing.T) {
	t.Parallel()

	s := memory.New()
	b := seedBoard(t, s)
	col := seedColumn(t, s, b.ID, "Todo")
	seedTask(t, s, col.ID, b.OwnerID, "A")
	task := seedTask(t, s, col.ID, b.OwnerID, "B")

	task.Title = "B2"
	task.Position = 0
	task.ColumnID = uuid.New()
	require.NoError(t, s.Tasks().Update(context.Background(), task))

	got, err := s.Tasks().GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "B2", got.Title)
	assert.Equal(t, 1, got.Position)
	assert.Equal(t, col.ID, got.ColumnID)
}

func TestColumnRepo_MoveReorderDelete(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	b := seedBoard(t, s)
	todo := seedColumn(t, s, b.ID, "Todo")
	doing := seedColumn(t, s, b.ID, "Doing")
	done := seedColumn(t, s, b.ID, "Done")
	seedTask(t, s, doing.ID, b.OwnerID, "T")

	changed, err := s.Columns().Move(ctx, done.ID, 0)
	require.NoError(t, err)
	assert.Len(t, changed, 3)

	changed, err = s.Columns().Move(ctx, done.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, changed)

	changed, err = s.Columns().Reorder(ctx, b.ID, []uuid.UUID{todo.ID, doing.ID, done.ID})
	require.NoError(t, err)
	assert.Len(t, changed, 3)

	_, err = s.Columns().Reorder(ctx, b.ID, []uuid.UUID{todo.ID, doing.ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	deleted, err := s.Columns().Delete(ctx, doing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Doing", deleted.Title)

	cols, err := s.Columns().ListByBoard(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "Todo", cols[0].Title)
	assert.Equal(t, 0, cols[0].Position)
	assert.Equal(t, "Done", cols[1].Title)
	assert.Equal(t, 1, cols[1].Position)

	tasks, err := s.Tasks().ListByColumn(ctx, doing.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks, "tasks are deleted with their column")
}

func TestBoardRepo_UpdateKeepsOwner(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	b := seedBoard(t, s)
	other := uuid.New()

	b.Members = []uuid.UUID{other}
	require.NoError(t, s.Boards().Update(ctx, b))

	got, err := s.Boards().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.OwnerID, other}, got.Members)

	boards, err := s.Boards().ListByMember(ctx, other)
	require.NoError(t, err)
	require.Len(t, boards, 1)

	boards, err = s.Boards().ListByMember(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, boards)
}

func TestChatRepo_ListRecentNewestFirst(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	b := seedBoard(t, s)
	sender := domain.Identity{ID: b.OwnerID, Username: "owner"}
	base := time.Now()

	for i, content := range []string{"one", "two", "three"} {
		m, err := domain.NewChatMessage(b.ID, sender, content, "", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Chat().Append(ctx, m))
	}

	msgs, err := s.Chat().ListRecent(ctx, b.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)

	m, _ := domain.NewChatMessage(uuid.New(), sender, "lost", "", base)
	require.ErrorIs(t, s.Chat().Append(ctx, m), domain.ErrNotFound)
}

func TestTaskRepo_ConcurrentMovesStayDense(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	b := seedBoard(t, s)
	cols := []*domain.Column{
		seedColumn(t, s, b.ID, "A"),
		seedColumn(t, s, b.ID, "B"),
		seedColumn(t, s, b.ID, "C"),
	}
	var ids []uuid.UUID
	for i := 0; i < 12; i++ {
		ids = append(ids, seedTask(t, s, cols[i%3].ID, b.OwnerID, uuid.NewString()).ID)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
			for i := 0; i < 200; i++ {
				id := ids[rng.Intn(len(ids))]
				dest := cols[rng.Intn(len(cols))]
				// Out-of-range positions are rejected; the rest must keep order dense.
				_, _ = s.Tasks().Move(ctx, id, dest.ID, rng.Intn(6))
			}
		}(int64(w))
	}
	wg.Wait()

	total := 0
	for _, c := range cols {
		tasks, err := s.Tasks().ListByColumn(ctx, c.ID)
		require.NoError(t, err)
		items := make([]reorder.Item, len(tasks))
		for i, task := range tasks {
			items[i] = reorder.Item{ID: task.ID, Position: task.Position}
		}
		assert.True(t, reorder.Dense(items), "column %s", c.Title)
		total += len(tasks)
	}
	assert.Equal(t, len(ids), total)
}
