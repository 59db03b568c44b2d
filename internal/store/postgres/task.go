package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/reorder"
)

const (
	taskItemsSQL   = `SELECT id, position FROM tasks WHERE column_id = $1`
	taskColumnsSQL = `id, column_id, title, description, assignee_id, position, priority, due_date, created_by, created_at, updated_at`
	// lockColumnsSQL locks one or two columns in a fixed order so concurrent
	// cross-column moves cannot deadlock.
	lockColumnsSQL = `SELECT id FROM board_columns WHERE id = ANY($1) ORDER BY id FOR UPDATE`
)

// maxMoveAttempts bounds retries when a task changes column between reading
// its placement and locking that column.
const maxMoveAttempts = 3

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task, position *int) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockColumns(ctx, tx, t.ColumnID); err != nil {
			return err
		}
		items, err := siblingItems(ctx, tx, taskItemsSQL, t.ColumnID)
		if err != nil {
			return err
		}
		plan, err := reorder.Insert(items, position)
		if err != nil {
			return positionError(err)
		}
		if err := applyPositions(ctx, tx, "tasks", plan.Updates); err != nil {
			return err
		}

		t.Position = plan.Position
		_, err = tx.Exec(ctx,
			`INSERT INTO tasks (`+taskColumnsSQL+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, t.ColumnID, t.Title, t.Description, t.AssigneeID, t.Position,
			t.Priority, t.DueDate, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumnsSQL+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) ListByColumn(ctx context.Context, columnID uuid.UUID) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumnsSQL+` FROM tasks WHERE column_id = $1 ORDER BY position`,
		columnID,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByColumn: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListByColumn")
}

// Update persists non-positional fields and refreshes t from the stored row.
func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	updated, err := scanTask(r.pool.QueryRow(ctx,
		`UPDATE tasks SET title = $1, description = $2, assignee_id = $3, priority = $4,
		        due_date = $5, updated_at = now()
		 WHERE id = $6
		 RETURNING `+taskColumnsSQL,
		t.Title, t.Description, t.AssigneeID, t.Priority, t.DueDate, t.ID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("taskRepo.Update: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("taskRepo.Update: %w", err)
	}

	*t = *updated
	return nil
}

// Move relocates a task under locks on its source and destination columns.
// When another move wins the race and changes the source column first, the
// attempt is retried against the new placement.
func (r *TaskRepo) Move(ctx context.Context, id, toColumnID uuid.UUID, position int) (*domain.TaskMove, error) {
	for attempt := 0; attempt < maxMoveAttempts; attempt++ {
		move, err := r.moveOnce(ctx, id, toColumnID, position)
		if errors.Is(err, errPlacementChanged) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("taskRepo.Move: %w", err)
		}
		return move, nil
	}
	return nil, fmt.Errorf("taskRepo.Move: %w", domain.ErrConflict)
}

var errPlacementChanged = errors.New("task placement changed")

func (r *TaskRepo) moveOnce(ctx context.Context, id, toColumnID uuid.UUID, position int) (*domain.TaskMove, error) {
	var move *domain.TaskMove
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var fromColumnID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT column_id FROM tasks WHERE id = $1`, id).Scan(&fromColumnID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := lockColumns(ctx, tx, fromColumnID, toColumnID); err != nil {
			return err
		}

		cur, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumnsSQL+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur.ColumnID != fromColumnID {
			return errPlacementChanged
		}

		source, err := siblingItems(ctx, tx, taskItemsSQL, fromColumnID)
		if err != nil {
			return err
		}
		var plan reorder.Plan
		if fromColumnID == toColumnID {
			plan, err = reorder.Move(source, id, position)
		} else {
			var dest []reorder.Item
			dest, err = siblingItems(ctx, tx, taskItemsSQL, toColumnID)
			if err != nil {
				return err
			}
			plan, err = reorder.Transfer(source, dest, id, position)
		}
		if err != nil {
			return positionError(err)
		}

		move = &domain.TaskMove{
			Task:         cur,
			FromColumnID: fromColumnID,
			FromPosition: cur.Position,
			Moved:        plan.Changed,
		}
		if !plan.Changed {
			return nil
		}
		if err := applyPositions(ctx, tx, "tasks", plan.Updates); err != nil {
			return err
		}
		move.Task, err = scanTask(tx.QueryRow(ctx,
			`UPDATE tasks SET column_id = $1, position = $2, updated_at = now() WHERE id = $3
			 RETURNING `+taskColumnsSQL,
			toColumnID, plan.Position, id,
		))
		return err
	})
	if err != nil {
		return nil, err
	}

	return move, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var deleted *domain.Task
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var columnID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT column_id FROM tasks WHERE id = $1`, id).Scan(&columnID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := lockColumns(ctx, tx, columnID); err != nil {
			return err
		}
		items, err := siblingItems(ctx, tx, taskItemsSQL, columnID)
		if err != nil {
			return err
		}
		plan, err := reorder.Remove(items, id)
		if err != nil {
			// Moved to another column or deleted since the first read.
			return positionError(err)
		}
		deleted, err = scanTask(tx.QueryRow(ctx, `DELETE FROM tasks WHERE id = $1 RETURNING `+taskColumnsSQL, id))
		if err != nil {
			return err
		}
		return applyPositions(ctx, tx, "tasks", plan.Updates)
	})
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Delete: %w", err)
	}

	return deleted, nil
}

// lockColumns locks the given columns and fails with ErrNotFound when any of
// them is missing.
func lockColumns(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) error {
	want := make(map[uuid.UUID]struct{}, len(ids))
	uniq := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = struct{}{}
		uniq = append(uniq, id)
	}

	rows, err := tx.Query(ctx, lockColumnsSQL, uniq)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		found++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if found != len(uniq) {
		return domain.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	if err := row.Scan(
		&t.ID, &t.ColumnID, &t.Title, &t.Description, &t.AssigneeID, &t.Position,
		&t.Priority, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows, caller string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}
