package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type ChatRepo struct {
	s *Store
}

func (r *ChatRepo) Append(_ context.Context, m *domain.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.boards[m.BoardID]; !ok {
		return fmt.Errorf("chatRepo.Append: %w", domain.ErrNotFound)
	}
	r.s.chat[m.BoardID] = append(r.s.chat[m.BoardID], *m)
	return nil
}

func (r *ChatRepo) ListRecent(_ context.Context, boardID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	log := r.s.chat[boardID]
	if limit <= 0 || limit > len(log) {
		limit = len(log)
	}
	out := make([]*domain.ChatMessage, 0, limit)
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		m := log[i]
		out = append(out, &m)
	}
	return out, nil
}
