package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type BoardRepo struct {
	s *Store
}

func (r *BoardRepo) Create(_ context.Context, b *domain.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[b.ID]; ok {
		return fmt.Errorf("boardRepo.Create: %w", domain.ErrConflict)
	}
	stored := *cloneBoard(*b)
	stored.Members = domain.NormalizeMembers(b.OwnerID, b.Members)
	r.s.boards[b.ID] = stored
	b.Members = append([]uuid.UUID(nil), stored.Members...)
	return nil
}

func (r *BoardRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Board, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.boards[id]
	if !ok {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	return cloneBoard(b), nil
}

func (r *BoardRepo) Update(_ context.Context, b *domain.Board) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.boards[b.ID]
	if !ok {
		return fmt.Errorf("boardRepo.Update: %w", domain.ErrNotFound)
	}
	cur.Title = b.Title
	cur.Description = b.Description
	cur.Members = domain.NormalizeMembers(cur.OwnerID, b.Members)
	cur.UpdatedAt = r.s.now()
	r.s.boards[b.ID] = cur

	*b = *cloneBoard(cur)
	return nil
}

func (r *BoardRepo) ListByMember(_ context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*domain.Board
	for _, b := range r.s.boards {
		if b.HasMember(userID) {
			out = append(out, cloneBoard(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
