package v1

import (
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/presence"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store and *memory.Store satisfy this interface.
type DataStore interface {
	Boards() domain.BoardRepository
	Columns() domain.ColumnRepository
	Tasks() domain.TaskRepository
	Chat() domain.ChatRepository
}

// PresenceSource reports who is currently viewing a board.
// *collab.Engine satisfies this interface.
type PresenceSource interface {
	OnlineUsers(boardID uuid.UUID) []presence.Presence
}
