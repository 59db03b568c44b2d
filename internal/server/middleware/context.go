package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type contextKey string

const ContextKeyIdentity contextKey = "identity"

// WithIdentity stores the authenticated identity on ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	v, ok := ctx.Value(ContextKeyIdentity).(domain.Identity)
	return v, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.ID == uuid.Nil {
		return uuid.Nil, false
	}
	return id.ID, true
}
