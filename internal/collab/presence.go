package collab

import (
	"context"
	"encoding/json"

	"github.com/gosuda/boardsync/internal/presence"
)

func (e *Engine) userCursor(_ context.Context, s *Session, args []json.RawMessage) error {
	var cursor presence.Cursor
	if err := arg(args, 0, "cursor", &cursor); err != nil {
		return err
	}
	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	p := presence.PresenceOf(rec)
	p.Cursor = &cursor
	e.broadcast(rec.BoardID, s.ID, EventUserCursor, p)
	return nil
}

func (e *Engine) ping(_ context.Context, s *Session, _ []json.RawMessage) error {
	e.reply(s, EventPong)
	return nil
}
