// Package collab is the realtime collaboration engine: it owns connection
// lifecycle, routes inbound board events to handlers and fans the resulting
// canonical entities out to every connection viewing the board.
package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/presence"
)

// Disconnect reasons.
const (
	ReasonClientClosed = "client closed"
	ReasonIdle         = "idle timeout"
	ReasonSlowConsumer = "slow consumer"
	ReasonShutdown     = "server shutdown"
)

const (
	relayTimeout   = 2 * time.Second
	handlerTimeout = 15 * time.Second
)

// Store is the persistence the engine mutates through.
type Store interface {
	Boards() domain.BoardRepository
	Columns() domain.ColumnRepository
	Tasks() domain.TaskRepository
	Chat() domain.ChatRepository
}

// Relay forwards room broadcasts to other server instances.
type Relay interface {
	Publish(ctx context.Context, boardID, except uuid.UUID, payload []byte) error
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	TypingTimeout time.Duration
	IdleTimeout   time.Duration
	SendBuffer    int
	EventRate     float64
	EventBurst    int
	CursorRate    float64
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = presence.DefaultTypingTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 90 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.EventRate <= 0 {
		o.EventRate = 20
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 40
	}
	if o.CursorRate <= 0 {
		o.CursorRate = 30
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Notification is a user-facing status message.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TypingIndicator announces that a user is composing a chat message.
type TypingIndicator struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	BoardID  uuid.UUID `json:"boardId"`
}

// Engine owns the presence directory, typing timers and the live sessions of
// one process.
type Engine struct {
	store  Store
	opts   Options
	dir    *presence.Directory
	typing *presence.Typing
	seq    *sequencer
	relay  Relay

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		store:    store,
		opts:     opts,
		dir:      presence.NewDirectory(opts.Now),
		typing:   presence.NewTyping(opts.TypingTimeout),
		seq:      newSequencer(),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// SetRelay enables cross-instance fan-out. Call it before serving.
func (e *Engine) SetRelay(r Relay) { e.relay = r }

// Directory exposes the presence state for read-only consumers.
func (e *Engine) Directory() *presence.Directory { return e.dir }

// OnlineUsers returns the deduplicated presence list of a board.
func (e *Engine) OnlineUsers(boardID uuid.UUID) []presence.Presence {
	return e.dir.Rooms().OnlineUsers(boardID)
}

// Connect registers an authenticated user and returns its session.
func (e *Engine) Connect(user domain.Identity) (*Session, error) {
	if user.ID == uuid.Nil {
		return nil, fmt.Errorf("collab.Connect: %w", domain.ErrUnauthorized)
	}
	s := newSession(user, e.opts)
	s.table = e.newDispatchTable()
	if err := e.dir.Connect(s.ID, user); err != nil {
		return nil, fmt.Errorf("collab.Connect: %w", err)
	}

	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()

	log.Debug().Str("conn_id", s.ID.String()).Str("user_id", user.ID.String()).Msg("collab: connected")
	return s, nil
}

// Touch records liveness outside of inbound events, e.g. a heartbeat pong.
func (e *Engine) Touch(s *Session) {
	e.dir.Registry().Touch(s.ID)
}

// Disconnect tears the session down. Only the first call has any effect.
func (e *Engine) Disconnect(s *Session, reason string) {
	if !s.finish(reason) {
		return
	}
	e.mu.Lock()
	delete(e.sessions, s.ID)
	e.mu.Unlock()
	s.table.release()

	rec, t, ok := e.dir.Disconnect(s.ID)
	if !ok {
		return
	}
	if t.Left != uuid.Nil {
		e.afterLeave(rec.User, s.ID, t)
	}
	log.Debug().Str("conn_id", s.ID.String()).Str("user_id", s.User.ID.String()).
		Str("reason", reason).Msg("collab: disconnected")
}

// Sweep disconnects sessions idle for longer than the idle timeout and
// returns how many it closed.
func (e *Engine) Sweep() int {
	cutoff := e.opts.Now().Add(-e.opts.IdleTimeout)
	closed := 0
	for _, id := range e.dir.Registry().Idle(cutoff) {
		if s := e.session(id); s != nil {
			e.Disconnect(s, ReasonIdle)
			closed++
		}
	}
	return closed
}

// RunSweeper calls Sweep every interval until ctx ends.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.Sweep(); n > 0 {
				log.Info().Int("closed", n).Msg("collab: idle sessions closed")
			}
		}
	}
}

// Shutdown disconnects every session and drops pending typing timers.
func (e *Engine) Shutdown() {
	e.mu.RLock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.RUnlock()

	for _, s := range sessions {
		e.Disconnect(s, ReasonShutdown)
	}
	e.typing.StopAll()
}

// DeliverRemote hands a broadcast relayed from another instance to the local
// room members.
func (e *Engine) DeliverRemote(boardID, except uuid.UUID, payload []byte) {
	e.deliver(boardID, except, payload)
}

// Sessions returns the number of live sessions.
func (e *Engine) Sessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

func (e *Engine) session(id uuid.UUID) *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[id]
}

// afterLeave notifies a room that connID left it.
func (e *Engine) afterLeave(user domain.Identity, connID uuid.UUID, t presence.Transition) {
	boardID := t.Left
	_ = e.seq.do(boardID, func() error {
		// Typing is tracked per user, so another tab still in the room keeps it.
		if t.LastOut {
			if e.typing.Stop(boardID, user.ID) {
				e.broadcast(boardID, connID, EventChatStopped, user.ID)
			}
			e.broadcast(boardID, uuid.Nil, EventUserLeft, user.ID)
		}
		e.announceOnline(boardID)
		return nil
	})
}

// broadcast sends an event to every connection in the board's room except
// the one given, and relays it to other instances.
func (e *Engine) broadcast(boardID, except uuid.UUID, event string, args ...any) {
	frame, err := Encode(event, args...)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("collab: encode broadcast")
		return
	}
	e.deliver(boardID, except, frame)

	if e.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()
		if err := e.relay.Publish(ctx, boardID, except, frame); err != nil {
			log.Warn().Err(err).Str("board_id", boardID.String()).Str("event", event).Msg("collab: relay publish")
		}
	}
}

// announceOnline sends the room's online list to local members only. The
// list reflects this process's rooms and must not replace the view another
// instance holds.
func (e *Engine) announceOnline(boardID uuid.UUID) {
	frame, err := Encode(EventUsersOnline, e.dir.Rooms().OnlineUsers(boardID))
	if err != nil {
		log.Error().Err(err).Str("board_id", boardID.String()).Msg("collab: encode online users")
		return
	}
	e.deliver(boardID, uuid.Nil, frame)
}

func (e *Engine) deliver(boardID, except uuid.UUID, frame []byte) {
	for _, connID := range e.dir.Rooms().MembersOf(boardID) {
		if connID == except {
			continue
		}
		if s := e.session(connID); s != nil {
			e.push(s, frame)
		}
	}
}

func (e *Engine) reply(s *Session, event string, args ...any) {
	frame, err := Encode(event, args...)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("collab: encode reply")
		return
	}
	e.push(s, frame)
}

func (e *Engine) replyError(s *Session, ee *EventError) {
	e.reply(s, EventErr, ee)
}

// push queues a frame; a session that cannot keep up is disconnected.
func (e *Engine) push(s *Session, frame []byte) {
	if s.enqueue(frame) || s.Closed() {
		return
	}
	log.Warn().Str("conn_id", s.ID.String()).Msg("collab: outbound queue full")
	go e.Disconnect(s, ReasonSlowConsumer)
}

// viewing returns the presence record of a session that is viewing a board.
func (e *Engine) viewing(s *Session) (presence.Record, error) {
	rec, ok := e.dir.Registry().Get(s.ID)
	if !ok || !rec.Viewing() {
		return presence.Record{}, errNotViewing
	}
	return rec, nil
}

// memberBoard loads a board and checks that userID may act on it.
func (e *Engine) memberBoard(ctx context.Context, boardID, userID uuid.UUID) (*domain.Board, error) {
	b, err := e.store.Boards().GetByID(ctx, boardID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, notFound("Board not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	if !b.HasMember(userID) {
		return nil, forbidden("Access denied to this board")
	}
	return b, nil
}

// columnInView resolves the column's board from storage and checks that it
// is the board the session is viewing.
func (e *Engine) columnInView(ctx context.Context, s *Session, rec presence.Record, columnID uuid.UUID) (*domain.Column, *domain.Board, error) {
	col, err := e.loadColumn(ctx, columnID)
	if err != nil {
		return nil, nil, err
	}
	if col.BoardID != rec.BoardID {
		return nil, nil, forbidden("Column does not belong to the current board")
	}
	board, err := e.memberBoard(ctx, col.BoardID, s.User.ID)
	if err != nil {
		return nil, nil, err
	}
	return col, board, nil
}

// taskInView resolves task to column to board the same way.
func (e *Engine) taskInView(ctx context.Context, s *Session, rec presence.Record, taskID uuid.UUID) (*domain.Task, *domain.Board, error) {
	task, err := e.store.Tasks().GetByID(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, notFound("Task not found")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load task: %w", err)
	}
	col, err := e.loadColumn(ctx, task.ColumnID)
	if err != nil {
		return nil, nil, err
	}
	if col.BoardID != rec.BoardID {
		return nil, nil, forbidden("Task does not belong to the current board")
	}
	board, err := e.memberBoard(ctx, col.BoardID, s.User.ID)
	if err != nil {
		return nil, nil, err
	}
	return task, board, nil
}

func (e *Engine) loadColumn(ctx context.Context, columnID uuid.UUID) (*domain.Column, error) {
	col, err := e.store.Columns().GetByID(ctx, columnID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, notFound("Column not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load column: %w", err)
	}
	return col, nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, validationf("Invalid %s", field)
	}
	return id, nil
}
