package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxColumnTitle = 50

// Column is an ordered container of tasks. Positions are dense and zero-based
// per board.
type Column struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"boardId"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewColumn validates the title and returns an unpositioned column. The store
// assigns Position when the column is created.
func NewColumn(boardID uuid.UUID, title string) (*Column, error) {
	title, err := ValidateColumnTitle(title)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Column{
		ID:        uuid.New(),
		BoardID:   boardID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateColumnTitle trims title and checks its length.
func ValidateColumnTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "column title is required")
	}
	if len([]rune(title)) > maxColumnTitle {
		return "", invalid("title", "column title cannot exceed 50 characters")
	}
	return title, nil
}

// ValidatePosition rejects negative positions. Upper bounds depend on the
// sibling count and are checked by the store under its per-parent lock.
func ValidatePosition(p int) error {
	if p < 0 {
		return invalid("position", "position cannot be negative")
	}
	return nil
}

// ColumnRepository persists columns. Every positional operation is applied
// atomically and serialized per board.
type ColumnRepository interface {
	// Create inserts c at position, or appends when position is nil.
	Create(ctx context.Context, c *Column, position *int) error
	GetByID(ctx context.Context, id uuid.UUID) (*Column, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Column, error)
	Rename(ctx context.Context, id uuid.UUID, title string) (*Column, error)
	// Move reorders a column within its board and returns every column whose
	// position changed, the moved column included.
	Move(ctx context.Context, id uuid.UUID, position int) ([]*Column, error)
	// Reorder applies a full ordering of the board's columns and returns the
	// columns whose position changed.
	Reorder(ctx context.Context, boardID uuid.UUID, ordered []uuid.UUID) ([]*Column, error)
	// Delete removes the column with its tasks and closes the position gap.
	Delete(ctx context.Context, id uuid.UUID) (*Column, error)
}
