package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[u.ID]; ok {
		return fmt.Errorf("userRepo.Create: %w", domain.ErrConflict)
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("userRepo.Create: %w", domain.ErrConflict)
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
	}
	return &u, nil
}
