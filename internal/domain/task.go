package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxTaskTitle       = 200
	maxTaskDescription = 1000
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type Task struct {
	ID          uuid.UUID  `json:"id"`
	ColumnID    uuid.UUID  `json:"columnId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssigneeID  *uuid.UUID `json:"assigneeId,omitempty"`
	Position    int        `json:"position"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedBy   uuid.UUID  `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskDraft holds the client-supplied fields of a new task.
type TaskDraft struct {
	Title       string
	Description string
	ColumnID    uuid.UUID
	AssigneeID  *uuid.UUID
	Priority    Priority
	DueDate     *time.Time
}

// NewTask validates the draft and returns an unpositioned task.
func NewTask(d TaskDraft, createdBy uuid.UUID, now time.Time) (*Task, error) {
	title, err := validateTaskTitle(d.Title)
	if err != nil {
		return nil, err
	}
	desc, err := validateTaskDescription(d.Description)
	if err != nil {
		return nil, err
	}
	if d.ColumnID == uuid.Nil {
		return nil, invalid("columnId", "column ID is required")
	}
	priority := d.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalid("priority", "priority must be low, medium, or high")
	}
	if err := validateDueDate(d.DueDate, now); err != nil {
		return nil, err
	}
	return &Task{
		ID:          uuid.New(),
		ColumnID:    d.ColumnID,
		Title:       title,
		Description: desc,
		AssigneeID:  d.AssigneeID,
		Priority:    priority,
		DueDate:     d.DueDate,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TaskPatch carries non-positional task changes. Position and column changes
// go through TaskRepository.Move.
type TaskPatch struct {
	Title         *string
	Description   *string
	Priority      *Priority
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	DueDate       *time.Time
	ClearDueDate  bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.AssigneeID == nil && !p.ClearAssignee && p.DueDate == nil && !p.ClearDueDate
}

// Apply validates the patch and writes it onto t.
func (t *Task) Apply(p TaskPatch, now time.Time) error {
	if p.Title != nil {
		title, err := validateTaskTitle(*p.Title)
		if err != nil {
			return err
		}
		t.Title = title
	}
	if p.Description != nil {
		desc, err := validateTaskDescription(*p.Description)
		if err != nil {
			return err
		}
		t.Description = desc
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return invalid("priority", "priority must be low, medium, or high")
		}
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearAssignee:
		t.AssigneeID = nil
	case p.AssigneeID != nil:
		id := *p.AssigneeID
		t.AssigneeID = &id
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		if err := validateDueDate(p.DueDate, now); err != nil {
			return err
		}
		due := *p.DueDate
		t.DueDate = &due
	}
	t.UpdatedAt = now
	return nil
}

func validateTaskTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "task title is required")
	}
	if len([]rune(title)) > maxTaskTitle {
		return "", invalid("title", "task title cannot exceed 200 characters")
	}
	return title, nil
}

func validateTaskDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if len([]rune(desc)) > maxTaskDescription {
		return "", invalid("description", "task description cannot exceed 1000 characters")
	}
	return desc, nil
}

func validateDueDate(due *time.Time, now time.Time) error {
	if due != nil && !due.After(now) {
		return invalid("dueDate", "due date must be in the future")
	}
	return nil
}

// TaskMove reports the outcome of a move. Moved is false when the task was
// already at the requested place.
type TaskMove struct {
	Task         *Task
	FromColumnID uuid.UUID
	FromPosition int
	Moved        bool
}

// TaskRepository persists tasks. Every positional operation is applied
// atomically and serialized per column.
type TaskRepository interface {
	// Create inserts t at position, or appends when position is nil.
	Create(ctx context.Context, t *Task, position *int) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListByColumn(ctx context.Context, columnID uuid.UUID) ([]*Task, error)
	// Update persists non-positional fields.
	Update(ctx context.Context, t *Task) error
	Move(ctx context.Context, id, toColumnID uuid.UUID, position int) (*TaskMove, error)
	// Delete removes the task and closes the position gap in its column.
	Delete(ctx context.Context, id uuid.UUID) (*Task, error)
}
