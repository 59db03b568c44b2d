package collab

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/presence"
)

type boardUpdatePayload struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Members     *[]uuid.UUID `json:"members"`
}

func (e *Engine) boardJoin(ctx context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "boardId", &raw); err != nil {
		return err
	}
	boardID, err := parseID(raw, "board ID")
	if err != nil {
		return err
	}
	board, err := e.memberBoard(ctx, boardID, s.User.ID)
	if err != nil {
		return err
	}

	prev, _ := e.dir.Registry().Get(s.ID)
	if prev.BoardID == boardID {
		e.reply(s, EventUsersOnline, e.dir.Rooms().OnlineUsers(boardID))
		return nil
	}

	t, err := e.dir.Enter(s.ID, boardID)
	if err != nil {
		return err
	}
	if t.Left != uuid.Nil {
		e.afterLeave(s.User, s.ID, t)
	}

	rec, _ := e.dir.Registry().Get(s.ID)
	_ = e.seq.do(boardID, func() error {
		if t.FirstIn {
			e.broadcast(boardID, s.ID, EventUserJoined, presence.PresenceOf(rec))
		}
		e.announceOnline(boardID)
		return nil
	})
	e.reply(s, EventNotification, Notification{Type: "success", Message: "Joined board: " + board.Title})
	return nil
}

// boardLeave is idempotent: leaving a room the session is not in is a no-op.
func (e *Engine) boardLeave(_ context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "boardId", &raw); err != nil {
		return err
	}
	boardID, err := parseID(raw, "board ID")
	if err != nil {
		return err
	}
	if t, ok := e.dir.Exit(s.ID, boardID); ok {
		e.afterLeave(s.User, s.ID, t)
	}
	return nil
}

func (e *Engine) boardUpdate(ctx context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "boardId", &raw); err != nil {
		return err
	}
	boardID, err := parseID(raw, "board ID")
	if err != nil {
		return err
	}
	var payload boardUpdatePayload
	if err := arg(args, 1, "updates", &payload); err != nil {
		return err
	}
	patch := domain.BoardPatch{
		Title:       payload.Title,
		Description: payload.Description,
		Members:     payload.Members,
	}

	err = e.seq.do(boardID, func() error {
		board, err := e.memberBoard(ctx, boardID, s.User.ID)
		if err != nil {
			return err
		}
		if patch.TouchesMembers() && !board.IsOwner(s.User.ID) {
			return forbidden("Only the board owner can change members")
		}
		if err := board.Apply(patch); err != nil {
			return err
		}
		if err := e.store.Boards().Update(ctx, board); err != nil {
			return err
		}
		e.broadcast(boardID, uuid.Nil, EventBoardUpdated, board)
		return nil
	})
	if err != nil {
		return err
	}
	e.reply(s, EventNotification, Notification{Type: "success", Message: "Board updated successfully"})
	return nil
}
