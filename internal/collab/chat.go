package collab

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type chatSendPayload struct {
	Content string             `json:"content"`
	Type    domain.MessageType `json:"type"`
}

func (e *Engine) chatSend(ctx context.Context, s *Session, args []json.RawMessage) error {
	var payload chatSendPayload
	if err := arg(args, 0, "message", &payload); err != nil {
		return err
	}
	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	if _, err := e.memberBoard(ctx, rec.BoardID, s.User.ID); err != nil {
		return err
	}
	msg, err := domain.NewChatMessage(rec.BoardID, s.User, payload.Content, payload.Type, e.opts.Now())
	if err != nil {
		return err
	}

	return e.seq.do(rec.BoardID, func() error {
		if err := e.store.Chat().Append(ctx, msg); err != nil {
			return err
		}
		if e.typing.Stop(rec.BoardID, s.User.ID) {
			e.broadcast(rec.BoardID, s.ID, EventChatStopped, s.User.ID)
		}
		e.broadcast(rec.BoardID, uuid.Nil, EventChatMessage, msg)
		return nil
	})
}

// chatTyping re-arms the user's typing timer. When it expires the room gets a
// single chat:stop-typing.
func (e *Engine) chatTyping(_ context.Context, s *Session, _ []json.RawMessage) error {
	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	boardID, user, connID := rec.BoardID, s.User, s.ID
	e.typing.Start(boardID, user.ID, func() {
		e.broadcast(boardID, connID, EventChatStopped, user.ID)
	})
	e.broadcast(boardID, connID, EventChatTyping, TypingIndicator{
		UserID:   user.ID,
		Username: user.Username,
		BoardID:  boardID,
	})
	return nil
}

func (e *Engine) chatStopTyping(_ context.Context, s *Session, _ []json.RawMessage) error {
	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	e.typing.Stop(rec.BoardID, s.User.ID)
	e.broadcast(rec.BoardID, s.ID, EventChatStopped, s.User.ID)
	return nil
}
