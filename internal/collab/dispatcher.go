package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type handlerFunc func(ctx context.Context, s *Session, args []json.RawMessage) error

type route struct {
	handle handlerFunc
	// failure is the message sent when the handler fails for a reason the
	// client cannot act on.
	failure string
}

// dispatchTable maps event names to handlers for one connection. It is built
// once at connect and released once at teardown.
type dispatchTable struct {
	mu     sync.RWMutex
	routes map[string]route
}

func (e *Engine) newDispatchTable() *dispatchTable {
	routes := map[string]route{
		EventBoardJoin:   {e.boardJoin, "Failed to join board"},
		EventBoardLeave:  {e.boardLeave, "Failed to leave board"},
		EventBoardUpdate: {e.boardUpdate, "Failed to update board"},

		EventTaskCreate: {e.taskCreate, "Failed to create task"},
		EventTaskUpdate: {e.taskUpdate, "Failed to update task"},
		EventTaskDelete: {e.taskDelete, "Failed to delete task"},
		EventTaskMove:   {e.taskMove, "Failed to move task"},

		EventColumnCreate:  {e.columnCreate, "Failed to create column"},
		EventColumnUpdate:  {e.columnUpdate, "Failed to update column"},
		EventColumnDelete:  {e.columnDelete, "Failed to delete column"},
		EventColumnReorder: {e.columnReorder, "Failed to reorder columns"},

		EventChatSend:       {e.chatSend, "Failed to send message"},
		EventChatTyping:     {e.chatTyping, "Failed to update typing status"},
		EventChatStopTyping: {e.chatStopTyping, "Failed to update typing status"},
		EventChatStopped:    {e.chatStopTyping, "Failed to update typing status"},

		EventUserCursor: {e.userCursor, "Failed to update cursor"},
		EventPing:       {e.ping, "Failed to answer ping"},
	}
	return &dispatchTable{routes: routes}
}

func (t *dispatchTable) lookup(event string) (route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[event]
	return r, ok
}

func (t *dispatchTable) release() {
	t.mu.Lock()
	t.routes = nil
	t.mu.Unlock()
}

// Handle processes one inbound frame. Callers deliver a connection's frames
// sequentially; failures are reported to s alone.
func (e *Engine) Handle(ctx context.Context, s *Session, frame []byte) {
	if s.Closed() {
		return
	}
	env, err := Decode(frame)
	if err != nil {
		e.replyError(s, validationf("Malformed event"))
		return
	}
	e.dir.Registry().Touch(s.ID)

	if env.Event == EventUserCursor {
		if !s.cursors.Allow() {
			return
		}
	} else if !s.events.Allow() {
		e.replyError(s, newEventError(CodeRateLimited, "Too many events, slow down"))
		return
	}

	r, ok := s.table.lookup(env.Event)
	if !ok {
		if s.Closed() {
			return
		}
		e.replyError(s, validationf("Unknown event: %s", env.Event))
		return
	}

	// Storage work outlives the connection: a client that goes away mid-event
	// must not roll back a mutation its peers are about to receive.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handlerTimeout)
	defer cancel()

	rec, _ := e.dir.Registry().Get(s.ID)
	if err := e.run(ctx, s, env, r); err != nil {
		ee, internal := classify(err, r.failure)
		if internal {
			log.Error().Err(err).
				Str("conn_id", s.ID.String()).
				Str("user_id", s.User.ID.String()).
				Str("board_id", rec.BoardID.String()).
				Str("event", env.Event).
				Msg("collab: event failed")
		}
		e.replyError(s, ee)
	}
}

func (e *Engine) run(ctx context.Context, s *Session, env Envelope, r route) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("collab: panic in %s: %v", env.Event, p)
		}
	}()
	return r.handle(ctx, s, env.Args)
}
