package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/collab"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/store/memory"
)

const testSecret = "test-jwt-secret-for-websocket-hub!!"

type hubFixture struct {
	store  *memory.Store
	engine *collab.Engine
	server *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	store := memory.New()
	engine := collab.NewEngine(store, collab.Options{EventRate: 1000, EventBurst: 1000, CursorRate: 1000})
	hub := ws.NewHub(engine, auth.NewResolver(testSecret, store.Users()), time.Hour, nil)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		engine.Shutdown()
		srv.Close()
	})
	return &hubFixture{store: store, engine: engine, server: srv}
}

func (f *hubFixture) user(t *testing.T, name string) (*domain.User, string) {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Username: name, Email: name + "@example.com"}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	token, err := auth.IssueToken(testSecret, u.Identity(), time.Hour)
	require.NoError(t, err)
	return u, token
}

func (f *hubFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, f.server.URL+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, args ...any) {
	t.Helper()
	frame, err := collab.Encode(event, args...)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, frame))
}

// readUntil reads frames until one carries event.
func readUntil(t *testing.T, conn *websocket.Conn, event string) collab.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		env, err := collab.Decode(data)
		require.NoError(t, err)
		if env.Event == event {
			return env
		}
	}
}

func TestServeWS_RejectsUnauthenticated(t *testing.T) {
	t.Parallel()
	f := newHubFixture(t)

	for _, url := range []string{f.server.URL, f.server.URL + "?token=garbage"} {
		resp, err := http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	assert.Zero(t, f.engine.Sessions())
}

func TestServeWS_PingPong(t *testing.T) {
	t.Parallel()
	f := newHubFixture(t)
	_, token := f.user(t, "alice")
	conn := f.dial(t, token)

	send(t, conn, collab.EventPing)
	readUntil(t, conn, collab.EventPong)
	assert.Equal(t, 1, f.engine.Sessions())
}

func TestServeWS_BoardRoundTrip(t *testing.T) {
	t.Parallel()
	f := newHubFixture(t)
	alice, aliceToken := f.user(t, "alice")
	bob, bobToken := f.user(t, "bob")

	board, err := domain.NewBoard(alice.ID, "Sprint", "")
	require.NoError(t, err)
	board.Members = domain.NormalizeMembers(alice.ID, []uuid.UUID{bob.ID})
	require.NoError(t, f.store.Boards().Create(context.Background(), board))
	col, err := domain.NewColumn(board.ID, "Todo")
	require.NoError(t, err)
	require.NoError(t, f.store.Columns().Create(context.Background(), col, nil))

	a := f.dial(t, aliceToken)
	send(t, a, collab.EventBoardJoin, board.ID)
	readUntil(t, a, collab.EventUsersOnline)

	b := f.dial(t, bobToken)
	send(t, b, collab.EventBoardJoin, board.ID)
	readUntil(t, b, collab.EventUsersOnline)

	joined := readUntil(t, a, collab.EventUserJoined)
	var who struct {
		UserID uuid.UUID `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(joined.Args[0], &who))
	assert.Equal(t, bob.ID, who.UserID)

	send(t, b, collab.EventTaskCreate, map[string]any{"title": "Write docs", "columnId": col.ID})
	created := readUntil(t, a, collab.EventTaskCreated)
	var task domain.Task
	require.NoError(t, json.Unmarshal(created.Args[0], &task))
	assert.Equal(t, "Write docs", task.Title)
	assert.Equal(t, bob.ID, task.CreatedBy)

	require.NoError(t, b.Close(websocket.StatusNormalClosure, "bye"))
	left := readUntil(t, a, collab.EventUserLeft)
	var leftID uuid.UUID
	require.NoError(t, json.Unmarshal(left.Args[0], &leftID))
	assert.Equal(t, bob.ID, leftID)
}

func TestServeWS_ShutdownClosesGoingAway(t *testing.T) {
	t.Parallel()
	f := newHubFixture(t)
	_, token := f.user(t, "alice")
	conn := f.dial(t, token)

	send(t, conn, collab.EventPing)
	readUntil(t, conn, collab.EventPong)

	f.engine.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Zero(t, f.engine.Sessions())
}

func TestServeWS_ClientCloseDisconnects(t *testing.T) {
	t.Parallel()
	f := newHubFixture(t)
	_, token := f.user(t, "alice")
	conn := f.dial(t, token)

	send(t, conn, collab.EventPing)
	readUntil(t, conn, collab.EventPong)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))

	assert.Eventually(t, func() bool { return f.engine.Sessions() == 0 }, 5*time.Second, 10*time.Millisecond)
}
