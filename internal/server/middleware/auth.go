package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/domain"
)

// TokenResolver turns a bearer token into an identity.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// Auth requires a valid bearer token and stores the resolved identity on the
// request context.
func Auth(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := Authenticate(r, resolver)
			if err != nil {
				Unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Authenticate resolves the token carried by r. Browsers cannot set headers
// on a websocket handshake, so a token query parameter is accepted as well.
func Authenticate(r *http.Request, resolver TokenResolver) (domain.Identity, error) {
	tok := extractBearer(r)
	if tok == "" {
		tok = r.URL.Query().Get("token")
	}
	if tok == "" {
		return domain.Identity{}, auth.ErrInvalidToken
	}
	return resolver.Resolve(r.Context(), tok)
}

// Unauthorized writes the 401 matching err.
func Unauthorized(w http.ResponseWriter, err error) {
	detail := "invalid token"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		detail = "token expired"
	case errors.Is(err, auth.ErrInvalidToken):
	default:
		log.Error().Err(err).Msg("auth: resolve token")
	}
	http.Error(w, `{"title":"Unauthorized","status":401,"detail":"`+detail+`"}`, http.StatusUnauthorized)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}
