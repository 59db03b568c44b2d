package collab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type taskCreatePayload struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ColumnID    string          `json:"columnId"`
	AssigneeID  string          `json:"assigneeId"`
	Priority    domain.Priority `json:"priority"`
	DueDate     *time.Time      `json:"dueDate"`
	Position    *int            `json:"position"`
}

type taskUpdatePayload struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Priority    *domain.Priority    `json:"priority"`
	AssigneeID  Nullable[string]    `json:"assigneeId"`
	DueDate     Nullable[time.Time] `json:"dueDate"`
	ColumnID    *string             `json:"columnId"`
	Position    *int                `json:"position"`
}

func (e *Engine) taskCreate(ctx context.Context, s *Session, args []json.RawMessage) error {
	var payload taskCreatePayload
	if err := arg(args, 0, "task", &payload); err != nil {
		return err
	}
	columnID, err := parseID(payload.ColumnID, "column ID")
	if err != nil {
		return err
	}
	var assignee *uuid.UUID
	if payload.AssigneeID != "" {
		id, err := parseID(payload.AssigneeID, "assignee ID")
		if err != nil {
			return err
		}
		assignee = &id
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
	task, err := domain.NewTask(domain.TaskDraft{
		Title:       payload.Title,
		Description: payload.Description,
		ColumnID:    columnID,
		AssigneeID:  assignee,
		Priority:    payload.Priority,
		DueDate:     payload.DueDate,
	}, s.User.ID, e.opts.Now())
	if err != nil {
		return err
	}

	return e.seq.do(rec.BoardID, func() error {
		if err := e.store.Tasks().Create(ctx, task, payload.Position); err != nil {
			return err
		}
		e.broadcast(rec.BoardID, uuid.Nil, EventTaskCreated, task)
		return nil
	})
}

// taskUpdate applies a move first when columnId or position is present, then
// the field patch. Each part is broadcast on its own.
func (e *Engine) taskUpdate(ctx context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "taskId", &raw); err != nil {
		return err
	}
	taskID, err := parseID(raw, "task ID")
	if err != nil {
		return err
	}
	var payload taskUpdatePayload
	if err := arg(args, 1, "updates", &payload); err != nil {
		return err
	}
	patch, err := payload.patch()
	if err != nil {
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
	task, _, err := e.taskInView(ctx, s, rec, taskID)
	if err != nil {
		return err
	}
	toColumn := task.ColumnID
	if payload.ColumnID != nil {
		toColumn, err = parseID(*payload.ColumnID, "column ID")
		if err != nil {
			return err
		}
		if toColumn != task.ColumnID {
			if _, _, err := e.columnInView(ctx, s, rec, toColumn); err != nil {
				return err
			}
		}
	}
	wantsMove := payload.ColumnID != nil || payload.Position != nil

	return e.seq.do(rec.BoardID, func() error {
		var current *domain.Task
		if wantsMove {
			position, err := e.targetPosition(ctx, taskID, toColumn, payload.Position)
			if err != nil {
				return err
			}
			moved, err := e.moveTask(ctx, rec.BoardID, taskID, toColumn, position)
			if err != nil {
				return err
			}
			current = moved
		}
		if patch.Empty() {
			return nil
		}
		if current == nil {
			if current, err = e.store.Tasks().GetByID(ctx, taskID); err != nil {
				return err
			}
		}
		if err := current.Apply(patch, e.opts.Now()); err != nil {
			return err
		}
		if err := e.store.Tasks().Update(ctx, current); err != nil {
			return err
		}
		e.broadcast(rec.BoardID, uuid.Nil, EventTaskUpdated, current)
		return nil
	})
}

func (e *Engine) taskDelete(ctx context.Context, s *Session, args []json.RawMessage) error {
	var raw string
	if err := arg(args, 0, "taskId", &raw); err != nil {
		return err
	}
	taskID, err := parseID(raw, "task ID")
	if err != nil {
		return err
	}
	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	task, board, err := e.taskInView(ctx, s, rec, taskID)
	if err != nil {
		return err
	}
	if task.CreatedBy != s.User.ID && !board.IsOwner(s.User.ID) {
		return forbidden("Only the task creator or board owner can delete this task")
	}

	return e.seq.do(rec.BoardID, func() error {
		if _, err := e.store.Tasks().Delete(ctx, taskID); err != nil {
			return err
		}
		e.broadcast(rec.BoardID, uuid.Nil, EventTaskDeleted, taskID)
		return nil
	})
}

func (e *Engine) taskMove(ctx context.Context, s *Session, args []json.RawMessage) error {
	var rawTask, rawColumn string
	var position int
	if err := arg(args, 0, "taskId", &rawTask); err != nil {
		return err
	}
	if err := arg(args, 1, "toColumnId", &rawColumn); err != nil {
		return err
	}
	if err := arg(args, 2, "position", &position); err != nil {
		return err
	}
	taskID, err := parseID(rawTask, "task ID")
	if err != nil {
		return err
	}
	toColumn, err := parseID(rawColumn, "column ID")
	if err != nil {
		return err
	}
	if err := domain.ValidatePosition(position); err != nil {
		return err
	}

	rec, err := e.viewing(s)
	if err != nil {
		return err
	}
	if _, _, err := e.taskInView(ctx, s, rec, taskID); err != nil {
		return err
	}
	if _, _, err := e.columnInView(ctx, s, rec, toColumn); err != nil {
		return err
	}

	return e.seq.do(rec.BoardID, func() error {
		_, err := e.moveTask(ctx, rec.BoardID, taskID, toColumn, position)
		return err
	})
}

// moveTask persists a move and broadcasts it when anything changed. Callers
// hold the board's sequencer slot.
func (e *Engine) moveTask(ctx context.Context, boardID, taskID, toColumn uuid.UUID, position int) (*domain.Task, error) {
	mv, err := e.store.Tasks().Move(ctx, taskID, toColumn, position)
	if err != nil {
		return nil, err
	}
	if mv.Moved {
		e.broadcast(boardID, uuid.Nil, EventTaskMoved, taskID, mv.FromColumnID, mv.Task.ColumnID, mv.Task.Position)
	}
	return mv.Task, nil
}

// targetPosition resolves the position of a move requested through
// task:update. A column change without a position appends.
func (e *Engine) targetPosition(ctx context.Context, taskID, toColumn uuid.UUID, position *int) (int, error) {
	if position != nil {
		return *position, nil
	}
	current, err := e.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if current.ColumnID == toColumn {
		return current.Position, nil
	}
	siblings, err := e.store.Tasks().ListByColumn(ctx, toColumn)
	if err != nil {
		return 0, err
	}
	return len(siblings), nil
}

func (p taskUpdatePayload) patch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
	}
	if p.AssigneeID.Set {
		if p.AssigneeID.Value == nil || *p.AssigneeID.Value == "" {
			patch.ClearAssignee = true
		} else {
			id, err := parseID(*p.AssigneeID.Value, "assignee ID")
			if err != nil {
				return domain.TaskPatch{}, err
			}
			patch.AssigneeID = &id
		}
	}
	if p.DueDate.Set {
		if p.DueDate.Value == nil {
			patch.ClearDueDate = true
		} else {
			patch.DueDate = p.DueDate.Value
		}
	}
	return patch, nil
}
