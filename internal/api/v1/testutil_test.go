package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/presence"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the caller identity into context for GetCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithIdentity(context.Background(), domain.Identity{ID: userID, Username: "tester"})
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	boards  domain.BoardRepository
	columns domain.ColumnRepository
	tasks   domain.TaskRepository
	chat    domain.ChatRepository
}

func (m *mockDataStore) Boards() domain.BoardRepository   { return m.boards }
func (m *mockDataStore) Columns() domain.ColumnRepository { return m.columns }
func (m *mockDataStore) Tasks() domain.TaskRepository     { return m.tasks }
func (m *mockDataStore) Chat() domain.ChatRepository      { return m.chat }

// ---------------------------------------------------------------------------
// Mock BoardRepository
// ---------------------------------------------------------------------------

type mockBoardRepo struct {
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	listByMemberFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error)
}

func (m *mockBoardRepo) Create(context.Context, *domain.Board) error { return nil }

func (m *mockBoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBoardRepo) Update(context.Context, *domain.Board) error { return nil }

func (m *mockBoardRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	return m.listByMemberFunc(ctx, userID)
}

// boardRepoWith returns a repository holding exactly board.
func boardRepoWith(board *domain.Board) *mockBoardRepo {
	return &mockBoardRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Board, error) {
			if board == nil || id != board.ID {
				return nil, domain.ErrNotFound
			}
			return board, nil
		},
	}
}

// ---------------------------------------------------------------------------
// Mock ColumnRepository
// ---------------------------------------------------------------------------

type mockColumnRepo struct {
	domain.ColumnRepository

	listByBoardFunc func(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error)
}

func (m *mockColumnRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	return m.listByBoardFunc(ctx, boardID)
}

// ---------------------------------------------------------------------------
// Mock TaskRepository
// ---------------------------------------------------------------------------

type mockTaskRepo struct {
	domain.TaskRepository

	listByColumnFunc func(ctx context.Context, columnID uuid.UUID) ([]*domain.Task, error)
}

func (m *mockTaskRepo) ListByColumn(ctx context.Context, columnID uuid.UUID) ([]*domain.Task, error) {
	return m.listByColumnFunc(ctx, columnID)
}

// ---------------------------------------------------------------------------
// Mock ChatRepository
// ---------------------------------------------------------------------------

type mockChatRepo struct {
	appendFunc     func(ctx context.Context, msg *domain.ChatMessage) error
	listRecentFunc func(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

func (m *mockChatRepo) Append(ctx context.Context, msg *domain.ChatMessage) error {
	return m.appendFunc(ctx, msg)
}

func (m *mockChatRepo) ListRecent(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	return m.listRecentFunc(ctx, boardID, limit)
}

// ---------------------------------------------------------------------------
// Mock PresenceSource
// ---------------------------------------------------------------------------

type mockPresence struct {
	onlineFunc func(boardID uuid.UUID) []presence.Presence
}

func (m *mockPresence) OnlineUsers(boardID uuid.UUID) []presence.Presence {
	return m.onlineFunc(boardID)
}
