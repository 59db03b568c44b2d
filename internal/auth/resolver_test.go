package auth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/domain"
)

type mockUserLookup struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (m *mockUserLookup) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", AvatarURL: "https://cdn/a.png"}
	found := &mockUserLookup{getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
		if id != user.ID {
			return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
		}
		return user, nil
	}}

	t.Run("resolves identity from the stored user", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueToken(testSecret, domain.Identity{ID: user.ID, Username: "stale-name"}, time.Minute)
		require.NoError(t, err)

		id, err := auth.NewResolver(testSecret, found).Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, user.Identity(), id)
		assert.Equal(t, "alice", id.Username)
		assert.Equal(t, "https://cdn/a.png", id.Avatar)
	})

	t.Run("unknown user is invalid", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueToken(testSecret, testIdentity(), time.Minute)
		require.NoError(t, err)

		_, err = auth.NewResolver(testSecret, found).Resolve(context.Background(), token)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueToken(testSecret, user.Identity(), -time.Minute)
		require.NoError(t, err)

		_, err = auth.NewResolver(testSecret, found).Resolve(context.Background(), token)
		require.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("storage failure is not reported as invalid", func(t *testing.T) {
		t.Parallel()

		broken := &mockUserLookup{getByIDFunc: func(context.Context, uuid.UUID) (*domain.User, error) {
			return nil, errors.New("connection reset")
		}}
		token, err := auth.IssueToken(testSecret, user.Identity(), time.Minute)
		require.NoError(t, err)

		_, err = auth.NewResolver(testSecret, broken).Resolve(context.Background(), token)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidToken)
	})
}
