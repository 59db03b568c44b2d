package v1

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/presence"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

type ListBoardsInput struct{}

type ListBoardsOutput struct {
	Body []*domain.Board
}

type GetBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

// BoardColumn is a column together with its tasks ordered by position.
type BoardColumn struct {
	domain.Column
	Tasks []*domain.Task `json:"tasks"`
}

// BoardView is the materialized board a client resynchronizes from.
type BoardView struct {
	domain.Board
	Columns []*BoardColumn `json:"columns"`
}

type GetBoardOutput struct {
	Body *BoardView
}

type ListOnlineInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

type ListOnlineOutput struct {
	Body []presence.Presence
}

func RegisterBoardRoutes(api huma.API, store DataStore, online PresenceSource) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards the caller belongs to",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *ListBoardsInput) (*ListBoardsOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing identity")
		}

		boards, err := store.Boards().ListByMember(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}
		if boards == nil {
			boards = []*domain.Board{}
		}

		return &ListBoardsOutput{Body: boards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}",
		Summary:     "Get a board with its columns and tasks",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*GetBoardOutput, error) {
		board, err := memberBoard(ctx, store, input.BoardID)
		if err != nil {
			return nil, err
		}

		columns, err := store.Columns().ListByBoard(ctx, board.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list columns", err)
		}
		slices.SortFunc(columns, func(a, b *domain.Column) int { return cmp.Compare(a.Position, b.Position) })

		view := &BoardView{Board: *board, Columns: make([]*BoardColumn, 0, len(columns))}
		for _, c := range columns {
			tasks, err := store.Tasks().ListByColumn(ctx, c.ID)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to list tasks", err)
			}
			if tasks == nil {
				tasks = []*domain.Task{}
			}
			slices.SortFunc(tasks, func(a, b *domain.Task) int { return cmp.Compare(a.Position, b.Position) })
			view.Columns = append(view.Columns, &BoardColumn{Column: *c, Tasks: tasks})
		}

		return &GetBoardOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-online-users",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/online",
		Summary:     "List users currently viewing a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListOnlineInput) (*ListOnlineOutput, error) {
		if _, err := memberBoard(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		users := online.OnlineUsers(input.BoardID)
		if users == nil {
			users = []presence.Presence{}
		}

		return &ListOnlineOutput{Body: users}, nil
	})
}

// memberBoard loads the board and checks that the caller belongs to it.
func memberBoard(ctx context.Context, store DataStore, boardID uuid.UUID) (*domain.Board, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing identity")
	}

	board, err := store.Boards().GetByID(ctx, boardID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("board not found")
		}
		return nil, huma.Error500InternalServerError("failed to get board", err)
	}
	if !board.HasMember(userID) {
		return nil, huma.Error403Forbidden("access denied to this board")
	}

	return board, nil
}
