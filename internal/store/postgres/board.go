package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) Create(ctx context.Context, b *domain.Board) error {
	b.Members = domain.NormalizeMembers(b.OwnerID, b.Members)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO boards (id, title, description, owner_id, members, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Title, b.Description, b.OwnerID, b.Members, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.Create: %w", err)
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	var b domain.Board

	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, owner_id, members, created_at, updated_at
		 FROM boards WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Title, &b.Description, &b.OwnerID, &b.Members, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return &b, nil
}

// Update persists title, description and members, then refreshes b from the
// stored row.
func (r *BoardRepo) Update(ctx context.Context, b *domain.Board) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE boards
		 SET title = $1, description = $2,
		     members = array_prepend(owner_id, array_remove($3::uuid[], owner_id)),
		     updated_at = now()
		 WHERE id = $4
		 RETURNING id, title, description, owner_id, members, created_at, updated_at`,
		b.Title, b.Description, domain.NormalizeMembers(b.OwnerID, b.Members), b.ID,
	).Scan(&b.ID, &b.Title, &b.Description, &b.OwnerID, &b.Members, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("boardRepo.Update: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("boardRepo.Update: %w", err)
	}

	return nil
}

func (r *BoardRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, owner_id, members, created_at, updated_at
		 FROM boards WHERE owner_id = $1 OR $1 = ANY(members)
		 ORDER BY updated_at DESC
		 LIMIT 1000`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.ListByMember: %w", err)
	}
	defer rows.Close()

	var boards []*domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.OwnerID, &b.Members, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("boardRepo.ListByMember: scan: %w", err)
		}
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.ListByMember: rows: %w", err)
	}

	return boards, nil
}
