package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Append(ctx context.Context, m *domain.ChatMessage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, board_id, user_id, username, content, type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.BoardID, m.UserID, m.Username, m.Content, m.Type, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Append: %w", err)
	}

	return nil
}

func (r *ChatRepo) ListRecent(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, user_id, username, content, type, created_at
		 FROM chat_messages WHERE board_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		boardID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.BoardID, &m.UserID, &m.Username, &m.Content, &m.Type, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("chatRepo.ListRecent: scan: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.ListRecent: rows: %w", err)
	}

	return msgs, nil
}
