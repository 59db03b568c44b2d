package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/reorder"
)

type TaskRepo struct {
	s *Store
}

func (r *TaskRepo) Create(_ context.Context, t *domain.Task, position *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.columns[t.ColumnID]; !ok {
		return fmt.Errorf("taskRepo.Create: %w", domain.ErrNotFound)
	}
	plan, err := reorder.Insert(r.s.taskItems(t.ColumnID), position)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", positionError(err))
	}

	r.s.shiftTasks(plan.Updates, r.s.now())
	t.Position = plan.Position
	r.s.tasks[t.ID] = *cloneTask(*t)
	return nil
}

func (r *TaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
	}
	return cloneTask(t), nil
}

func (r *TaskRepo) ListByColumn(_ context.Context, columnID uuid.UUID) ([]*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	items := r.s.taskItems(columnID)
	out := make([]*domain.Task, 0, len(items))
	for _, it := range items {
		out = append(out, cloneTask(r.s.tasks[it.ID]))
	}
	return out, nil
}

// Update writes the non-positional fields of t. Column and position are
// refreshed from the stored task.
func (r *TaskRepo) Update(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("taskRepo.Update: %w", domain.ErrNotFound)
	}
	next := *cloneTask(*t)
	next.ColumnID = cur.ColumnID
	next.Position = cur.Position
	next.CreatedBy = cur.CreatedBy
	next.CreatedAt = cur.CreatedAt
	r.s.tasks[t.ID] = next

	*t = *cloneTask(next)
	return nil
}

func (r *TaskRepo) Move(_ context.Context, id, toColumnID uuid.UUID, position int) (*domain.TaskMove, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("taskRepo.Move: %w", domain.ErrNotFound)
	}
	if _, ok := r.s.columns[toColumnID]; !ok {
		return nil, fmt.Errorf("taskRepo.Move: %w", domain.ErrNotFound)
	}

	var (
		plan reorder.Plan
		err  error
	)
	if cur.ColumnID == toColumnID {
		plan, err = reorder.Move(r.s.taskItems(cur.ColumnID), id, position)
	} else {
		plan, err = reorder.Transfer(r.s.taskItems(cur.ColumnID), r.s.taskItems(toColumnID), id, position)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Move: %w", positionError(err))
	}

	move := &domain.TaskMove{
		FromColumnID: cur.ColumnID,
		FromPosition: cur.Position,
		Moved:        plan.Changed,
	}
	if plan.Changed {
		now := r.s.now()
		r.s.shiftTasks(plan.Updates, now)
		cur.ColumnID = toColumnID
		cur.Position = plan.Position
		cur.UpdatedAt = now
		r.s.tasks[id] = cur
	}
	move.Task = cloneTask(cur)
	return move, nil
}

func (r *TaskRepo) Delete(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
	}
	plan, err := reorder.Remove(r.s.taskItems(t.ColumnID), id)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Delete: %w", positionError(err))
	}
	delete(r.s.tasks, id)
	r.s.shiftTasks(plan.Updates, r.s.now())
	return cloneTask(t), nil
}
