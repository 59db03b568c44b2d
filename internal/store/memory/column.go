package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/reorder"
)

type ColumnRepo struct {
	s *Store
}

func (r *ColumnRepo) Create(_ context.Context, c *domain.Column, position *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[c.BoardID]; !ok {
		return fmt.Errorf("columnRepo.Create: %w", domain.ErrNotFound)
	}
	plan, err := reorder.Insert(r.s.columnItems(c.BoardID), position)
	if err != nil {
		return fmt.Errorf("columnRepo.Create: %w", positionError(err))
	}

	now := r.s.now()
	r.s.shiftColumns(plan.Updates, now)
	c.Position = plan.Position
	c.UpdatedAt = now
	r.s.columns[c.ID] = *c
	return nil
}

func (r *ColumnRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.columns[id]
	if !ok {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", domain.ErrNotFound)
	}
	return cloneColumn(c), nil
}

func (r *ColumnRepo) ListByBoard(_ context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	items := r.s.columnItems(boardID)
	out := make([]*domain.Column, 0, len(items))
	for _, it := range items {
		out = append(out, cloneColumn(r.s.columns[it.ID]))
	}
	return out, nil
}

func (r *ColumnRepo) Rename(_ context.Context, id uuid.UUID, title string) (*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.columns[id]
	if !ok {
		return nil, fmt.Errorf("columnRepo.Rename: %w", domain.ErrNotFound)
	}
	c.Title = title
	c.UpdatedAt = r.s.now()
	r.s.columns[id] = c
	return cloneColumn(c), nil
}

func (r *ColumnRepo) Move(_ context.Context, id uuid.UUID, position int) ([]*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.columns[id]
	if !ok {
		return nil, fmt.Errorf("columnRepo.Move: %w", domain.ErrNotFound)
	}
	plan, err := reorder.Move(r.s.columnItems(c.BoardID), id, position)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Move: %w", positionError(err))
	}
	if !plan.Changed {
		return nil, nil
	}

	now := r.s.now()
	updates := append(plan.Updates, reorder.Update{ID: id, Position: plan.Position})
	return r.s.shiftColumns(updates, now), nil
}

func (r *ColumnRepo) Reorder(_ context.Context, boardID uuid.UUID, ordered []uuid.UUID) ([]*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[boardID]; !ok {
		return nil, fmt.Errorf("columnRepo.Reorder: %w", domain.ErrNotFound)
	}
	plan, err := reorder.Permute(r.s.columnItems(boardID), ordered)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Reorder: %w", positionError(err))
	}
	return r.s.shiftColumns(plan.Updates, r.s.now()), nil
}

func (r *ColumnRepo) Delete(_ context.Context, id uuid.UUID) (*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.columns[id]
	if !ok {
		return nil, fmt.Errorf("columnRepo.Delete: %w", domain.ErrNotFound)
	}
	plan, err := reorder.Remove(r.s.columnItems(c.BoardID), id)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Delete: %w", positionError(err))
	}

	for taskID, t := range r.s.tasks {
		if t.ColumnID == id {
			delete(r.s.tasks, taskID)
		}
	}
	delete(r.s.columns, id)
	r.s.shiftColumns(plan.Updates, r.s.now())
	return cloneColumn(c), nil
}
