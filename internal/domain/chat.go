package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxChatContent = 1000

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// ChatMessage is append-only; it is never modified after creation.
type ChatMessage struct {
	ID        uuid.UUID   `json:"id"`
	BoardID   uuid.UUID   `json:"boardId"`
	UserID    uuid.UUID   `json:"userId"`
	Username  string      `json:"username"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewChatMessage validates content and stamps the message with the server time.
func NewChatMessage(boardID uuid.UUID, sender Identity, content string, typ MessageType, now time.Time) (*ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "message content is required")
	}
	if len([]rune(content)) > maxChatContent {
		return nil, invalid("content", "message content cannot exceed 1000 characters")
	}
	if typ == "" {
		typ = MessageTypeText
	}
	if typ != MessageTypeText && typ != MessageTypeSystem {
		return nil, invalid("type", "message type must be text or system")
	}
	return &ChatMessage{
		ID:        uuid.New(),
		BoardID:   boardID,
		UserID:    sender.ID,
		Username:  sender.Username,
		Content:   content,
		Type:      typ,
		Timestamp: now,
	}, nil
}

type ChatRepository interface {
	Append(ctx context.Context, m *ChatMessage) error
	// ListRecent returns up to limit messages, newest first.
	ListRecent(ctx context.Context, boardID uuid.UUID, limit int) ([]*ChatMessage, error)
}
