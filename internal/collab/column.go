package collab

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type columnCreatePayload struct {
	Title    string `json:"title"`
	Position *int   `json:"position"`
}

type columnUpdatePayload struct {
	Title    *string `json:"title"`
	Position *int    `json:"position"`
}

func (e *Engine) columnCreate(ctx context.Context, s *Session, args []json.RawMessage) error {
	var payload columnCreatePayload
	if err := arg(args, 0, "column", &payload); err != nil {
		return err
	}
	if payload.Position != nil {
		if err := domain.ValidatePosition(*payload.Position); err != nil {
			return err
		}
	}
	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	if _, err := e.memberBoard(ctx, rec.BoardID, s.User.ID); err != nil {
		return err
	}
	col, err := domain.NewColumn(rec.BoardID, payload.Title)
	if err != nil {
		return err
	}

	return e.seq.do(rec.BoardID, func() error {
		if err := e.store.Columns().Create(ctx, col, payload.Position); err != nil {
			return err
		}
		e.broadcast(rec.BoardID, uuid.Nil, EventColumnCreated, col)
		return nil
	})
}

// columnUpdate renames and/or moves a column. Every column whose position
// shifted is broadcast as column:updated.
func (e *Engine) columnUpdate(ctx context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "columnId", &raw); err != nil {
		return err
	}
	columnID, err := parseID(raw, "column ID")
	if err != nil {
		return err
	}
	var payload columnUpdatePayload
	if err := arg(args, 1, "updates", &payload); err != nil {
		return err
	}
	var title string
	if payload.Title != nil {
		if title, err = domain.ValidateColumnTitle(*payload.Title); err != nil {
			return err
		}
	}
	if payload.Position != nil {
		if err := domain.ValidatePosition(*payload.Position); err != nil {
			return err
		}
	}

	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	if _, _, err := e.columnInView(ctx, s, rec, columnID); err != nil {
		return err
	}

	return e.seq.do(rec.BoardID, func() error {
		var changed []*domain.Column
		if payload.Title != nil {
			col, err := e.store.Columns().Rename(ctx, columnID, title)
			if err != nil {
				return err
			}
			changed = []*domain.Column{col}
		}
		if payload.Position != nil {
			moved, err := e.store.Columns().Move(ctx, columnID, *payload.Position)
			if err != nil {
				return err
			}
			if len(moved) > 0 {
				changed = moved
			}
		}
		for _, col := range changed {
			e.broadcast(rec.BoardID, uuid.Nil, EventColumnUpdated, col)
		}
		return nil
	})
}

func (e *Engine) columnDelete(ctx context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "columnId", &raw); err != nil {
		return err
	}
	columnID, err := parseID(raw, "column ID")
	if err != nil {
		return err
	}
	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	if _, _, err := e.columnInView(ctx, s, rec, columnID); err != nil {
		return err
	}

	return e.seq.do(rec.BoardID, func() error {
		if _, err := e.store.Columns().Delete(ctx, columnID); err != nil {
			return err
		}
		e.broadcast(rec.BoardID, uuid.Nil, EventColumnDeleted, columnID)
		return nil
	})
}

// columnReorder applies a full ordering. The board named by the client must
// be the board the session is viewing.
func (e *Engine) columnReorder(ctx context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "boardId", &raw); err != nil {
		return err
	}
	boardID, err := parseID(raw, "board ID")
	if err != nil {
		return err
	}
	var rawOrder []string
	if err := arg(args, 1, "columnIds", &rawOrder); err != nil {
		return err
	}
	ordered := make([]uuid.UUID, 0, len(rawOrder))
	for _, r := range rawOrder {
		id, err := parseID(r, "column ID")
		if err != nil {
			return err
		}
		ordered = append(ordered, id)
	}

	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	if rec.BoardID != boardID {
		return forbidden("Board does not match the current board")
	}
	if _, err := e.memberBoard(ctx, boardID, s.User.ID); err != nil {
		return err
	}

	return e.seq.do(boardID, func() error {
		changed, err := e.store.Columns().Reorder(ctx, boardID, ordered)
		if err != nil {
			return err
		}
		for _, col := range changed {
			e.broadcast(boardID, uuid.Nil, EventColumnUpdated, col)
		}
		return nil
	})
}
