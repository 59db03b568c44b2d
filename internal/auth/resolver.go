package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

// UserLookup is the slice of the user repository the resolver needs.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Resolver turns a bearer token into the identity of an existing user.
type Resolver struct {
	secret string
	users  UserLookup
}

func NewResolver(secret string, users UserLookup) *Resolver {
	return &Resolver{secret: secret, users: users}
}

// Resolve validates token and loads its user. Tokens for users that no
// longer exist are reported as invalid.
func (r *Resolver) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := ValidateToken(r.secret, token)
	if err != nil {
		return domain.Identity{}, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("auth.Resolve: %w", ErrInvalidToken)
	}

	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Identity{}, fmt.Errorf("auth.Resolve: %w", ErrInvalidToken)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("auth.Resolve: %w", err)
	}

	return user.Identity(), nil
}
