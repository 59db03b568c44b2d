package collab_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/collab"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/store/memory"
)

const typingTimeout = 40 * time.Millisecond

type fixture struct {
	t      *testing.T
	store  *memory.Store
	engine *collab.Engine
}

func newFixture(t *testing.T, opts collab.Options) *fixture {
	t.Helper()
	if opts.TypingTimeout == 0 {
		opts.TypingTimeout = typingTimeout
	}
	if opts.EventRate == 0 {
		opts.EventRate = 10000
		opts.EventBurst = 10000
	}
	if opts.CursorRate == 0 {
		opts.CursorRate = 10000
	}
	store := memory.New()
	e := collab.NewEngine(store, opts)
	t.Cleanup(e.Shutdown)
	return &fixture{t: t, store: store, engine: e}
}

func identity(name string) domain.Identity {
	return domain.Identity{ID: uuid.New(), Username: name, Email: name + "@example.com"}
}

func (f *fixture) board(owner domain.Identity, title string, members ...domain.Identity) *domain.Board {
	f.t.Helper()
	b, err := domain.NewBoard(owner.ID, title, "")
	require.NoError(f.t, err)
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	b.Members = domain.NormalizeMembers(owner.ID, ids)
	require.NoError(f.t, f.store.Boards().Create(context.Background(), b))
	return b
}

func (f *fixture) column(boardID uuid.UUID, title string) *domain.Column {
	f.t.Helper()
	c, err := domain.NewColumn(boardID, title)
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.Columns().Create(context.Background(), c, nil))
	return c
}

func (f *fixture) task(columnID uuid.UUID, creator domain.Identity, title string) *domain.Task {
	f.t.Helper()
	task, err := domain.NewTask(domain.TaskDraft{Title: title, ColumnID: columnID}, creator.ID, time.Now())
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.Tasks().Create(context.Background(), task, nil))
	return task
}

func (f *fixture) connect(user domain.Identity) *collab.Session {
	f.t.Helper()
	s, err := f.engine.Connect(user)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) send(s *collab.Session, event string, args ...any) {
	f.t.Helper()
	sendTo(f.t, f.engine, s, event, args...)
}

// sendTo hands a frame to an engine other than the fixture's own.
func sendTo(t *testing.T, e *collab.Engine, s *collab.Session, event string, args ...any) {
	t.Helper()
	frame, err := collab.Encode(event, args...)
	require.NoError(t, err)
	e.Handle(context.Background(), s, frame)
}

// join joins the board and discards everything the session received so far.
func (f *fixture) join(s *collab.Session, boardID uuid.UUID) {
	f.t.Helper()
	f.send(s, collab.EventBoardJoin, boardID.String())
	for _, env := range drain(s) {
		require.NotEqual(f.t, collab.EventErr, env.Event, "join failed: %s", env.Args)
	}
}

func (f *fixture) taskOrder(columnID uuid.UUID) []string {
	f.t.Helper()
	tasks, err := f.store.Tasks().ListByColumn(context.Background(), columnID)
	require.NoError(f.t, err)
	out := make([]string, 0, len(tasks))
	for i, task := range tasks {
		require.Equal(f.t, i, task.Position)
		out = append(out, task.Title)
	}
	return out
}

// drain returns every queued frame without blocking.
func drain(s *collab.Session) []collab.Envelope {
	var out []collab.Envelope
	for {
		select {
		case frame := <-s.Outbound():
			env, err := collab.Decode(frame)
			if err != nil {
				panic(err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func only(envs []collab.Envelope, event string) []collab.Envelope {
	var out []collab.Envelope
	for _, env := range envs {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func decodeArg(t *testing.T, env collab.Envelope, i int, v any) {
	t.Helper()
	require.Greater(t, len(env.Args), i, "event %s has no arg %d", env.Event, i)
	require.NoError(t, json.Unmarshal(env.Args[i], v))
}

func errorOf(t *testing.T, envs []collab.Envelope) collab.EventError {
	t.Helper()
	errs := only(envs, collab.EventErr)
	require.Len(t, errs, 1, "expected exactly one error, got %v", envs)
	var ee collab.EventError
	decodeArg(t, errs[0], 0, &ee)
	return ee
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
