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
	lockBoardSQL    = `SELECT id FROM boards WHERE id = $1 FOR UPDATE`
	columnItemsSQL  = `SELECT id, position FROM board_columns WHERE board_id = $1`
	columnSelectSQL = `SELECT id, board_id, title, position, created_at, updated_at FROM board_columns`
)

type ColumnRepo struct {
	pool *pgxpool.Pool
}

func NewColumnRepo(pool *pgxpool.Pool) *ColumnRepo {
	return &ColumnRepo{pool: pool}
}

// Create inserts c at position under a lock on its board row.
func (r *ColumnRepo) Create(ctx context.Context, c *domain.Column, position *int) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, lockBoardSQL, c.BoardID); err != nil {
			return err
		}
		items, err := siblingItems(ctx, tx, columnItemsSQL, c.BoardID)
		if err != nil {
			return err
		}
		plan, err := reorder.Insert(items, position)
		if err != nil {
			return positionError(err)
		}
		if err := applyPositions(ctx, tx, "board_columns", plan.Updates); err != nil {
			return err
		}

		c.Position = plan.Position
		_, err = tx.Exec(ctx,
			`INSERT INTO board_columns (id, board_id, title, position, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.BoardID, c.Title, c.Position, c.CreatedAt, c.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("columnRepo.Create: %w", err)
	}

	return nil
}

func (r *ColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	c, err := scanColumn(r.pool.QueryRow(ctx, columnSelectSQL+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("columnRepo.GetByID: %w", err)
	}

	return c, nil
}

func (r *ColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	cols, err := listColumns(ctx, r.pool, columnSelectSQL+` WHERE board_id = $1 ORDER BY position`, boardID)
	if err != nil {
		return nil, fmt.Errorf("columnRepo.ListByBoard: %w", err)
	}

	return cols, nil
}

func (r *ColumnRepo) Rename(ctx context.Context, id uuid.UUID, title string) (*domain.Column, error) {
	c, err := scanColumn(r.pool.QueryRow(ctx,
		`UPDATE board_columns SET title = $1, updated_at = now() WHERE id = $2
		 RETURNING id, board_id, title, position, created_at, updated_at`,
		title, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("columnRepo.Rename: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Rename: %w", err)
	}

	return c, nil
}

func (r *ColumnRepo) Move(ctx context.Context, id uuid.UUID, position int) ([]*domain.Column, error) {
	var changed []*domain.Column
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		boardID, err := r.boardOf(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lockRow(ctx, tx, lockBoardSQL, boardID); err != nil {
			return err
		}
		items, err := siblingItems(ctx, tx, columnItemsSQL, boardID)
		if err != nil {
			return err
		}
		plan, err := reorder.Move(items, id, position)
		if err != nil {
			return positionError(err)
		}
		if !plan.Changed {
			return nil
		}
		updates := append(plan.Updates, reorder.Update{ID: id, Position: plan.Position})
		if err := applyPositions(ctx, tx, "board_columns", updates); err != nil {
			return err
		}
		changed, err = columnsByID(ctx, tx, updates)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Move: %w", err)
	}

	return changed, nil
}

func (r *ColumnRepo) Reorder(ctx context.Context, boardID uuid.UUID, ordered []uuid.UUID) ([]*domain.Column, error) {
	var changed []*domain.Column
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, lockBoardSQL, boardID); err != nil {
			return err
		}
		items, err := siblingItems(ctx, tx, columnItemsSQL, boardID)
		if err != nil {
			return err
		}
		plan, err := reorder.Permute(items, ordered)
		if err != nil {
			return positionError(err)
		}
		if err := applyPositions(ctx, tx, "board_columns", plan.Updates); err != nil {
			return err
		}
		changed, err = columnsByID(ctx, tx, plan.Updates)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Reorder: %w", err)
	}

	return changed, nil
}

// Delete removes the column; its tasks go with it through ON DELETE CASCADE.
func (r *ColumnRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.Column, error) {
	var deleted *domain.Column
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		boardID, err := r.boardOf(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lockRow(ctx, tx, lockBoardSQL, boardID); err != nil {
			return err
		}
		items, err := siblingItems(ctx, tx, columnItemsSQL, boardID)
		if err != nil {
			return err
		}
		plan, err := reorder.Remove(items, id)
		if err != nil {
			return positionError(err)
		}
		deleted, err = scanColumn(tx.QueryRow(ctx,
			`DELETE FROM board_columns WHERE id = $1
			 RETURNING id, board_id, title, position, created_at, updated_at`,
			id,
		))
		if err != nil {
			return err
		}
		return applyPositions(ctx, tx, "board_columns", plan.Updates)
	})
	if err != nil {
		return nil, fmt.Errorf("columnRepo.Delete: %w", err)
	}

	return deleted, nil
}

func (r *ColumnRepo) boardOf(ctx context.Context, tx pgx.Tx, id uuid.UUID) (uuid.UUID, error) {
	var boardID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT board_id FROM board_columns WHERE id = $1`, id).Scan(&boardID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, domain.ErrNotFound
	}
	return boardID, err
}

func columnsByID(ctx context.Context, q querier, updates []reorder.Update) ([]*domain.Column, error) {
	ids := make([]uuid.UUID, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
	}
	return listColumns(ctx, q, columnSelectSQL+` WHERE id = ANY($1) ORDER BY position`, ids)
}

func listColumns(ctx context.Context, q querier, query string, arg any) ([]*domain.Column, error) {
	rows, err := q.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*domain.Column
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return cols, nil
}

func scanColumn(row pgx.Row) (*domain.Column, error) {
	var c domain.Column
	if err := row.Scan(&c.ID, &c.BoardID, &c.Title, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
