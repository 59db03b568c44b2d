package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type ListMessagesInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Limit   int       `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
}

type ListMessagesOutput struct {
	Body []*domain.ChatMessage
}

func RegisterChatRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/messages",
		Summary:     "List recent chat messages, newest first",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *ListMessagesInput) (*ListMessagesOutput, error) {
		if _, err := memberBoard(ctx, store, input.BoardID); err != nil {
			return nil, err
		}

		limit := input.Limit
		if limit == 0 {
			limit = 50
		}

		msgs, err := store.Chat().ListRecent(ctx, input.BoardID, limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list messages", err)
		}
		if msgs == nil {
			msgs = []*domain.ChatMessage{}
		}

		return &ListMessagesOutput{Body: msgs}, nil
	})
}
