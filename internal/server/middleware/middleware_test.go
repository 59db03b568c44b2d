package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

const testJWTSecret = "test-jwt-secret-for-middleware-tests"

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type mockUserLookup struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (m *mockUserLookup) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

// newResolver returns a resolver that knows exactly the given users.
func newResolver(users ...*domain.User) *auth.Resolver {
	return auth.NewResolver(testJWTSecret, &mockUserLookup{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
			for _, u := range users {
				if u.ID == id {
					return u, nil
				}
			}
			return nil, domain.ErrNotFound
		},
	})
}

func newUser(name string) *domain.User {
	return &domain.User{ID: uuid.New(), Username: name, Email: name + "@example.com"}
}

// contextHandler captures the identity injected by middleware.
type contextHandler struct {
	identity domain.Identity
	called   bool
}

func (h *contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.identity, _ = middleware.IdentityFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), domain.Identity{ID: userID, Username: "u"}))
}

// ===========================================================================
// 1. Context helpers
// ===========================================================================

func TestIdentityFromContext(t *testing.T) {
	t.Parallel()

	_, ok := middleware.IdentityFromContext(context.Background())
	assert.False(t, ok)

	id := domain.Identity{ID: uuid.New(), Username: "alice"}
	ctx := middleware.WithIdentity(context.Background(), id)
	got, ok := middleware.IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	userID, ok := middleware.UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id.ID, userID)

	_, ok = middleware.UserIDFromContext(middleware.WithIdentity(context.Background(), domain.Identity{}))
	assert.False(t, ok, "nil user id is not an identity")
}

// ===========================================================================
// 2. Rate limiting
// ===========================================================================

func TestRateLimit_NoUserInContext_PassesThrough(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)
	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	// Very low rate (effectively zero refill during the test) with burst of 2.
	handler := middleware.RateLimit(t.Context(), 0.001, 2)(okHandler)

	for i := range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), userID))
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), userID))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_IndependentPerUser(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)
	userA, userB := uuid.New(), uuid.New()

	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), userA))
	require.Equal(t, http.StatusOK, recA.Code)

	recA2 := httptest.NewRecorder()
	handler.ServeHTTP(recA2, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), userA))
	assert.Equal(t, http.StatusTooManyRequests, recA2.Code)

	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, withUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), userB))
	assert.Equal(t, http.StatusOK, recB.Code)
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(t.Context(), 0.001, 1)(okHandler)

	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		r.RemoteAddr = ip
		return r
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same client from another source port shares the bucket.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.1:51234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ===========================================================================
// 3. Auth middleware
// ===========================================================================

func TestAuth_ValidToken_PopulatesContext(t *testing.T) {
	t.Parallel()

	user := newUser("alice")
	token, err := auth.IssueToken(testJWTSecret, user.Identity(), 15*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{name: "bearer header", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{name: "lowercase bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }},
		{name: "query parameter", setup: func(r *http.Request) { r.URL.RawQuery = "token=" + token }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			capture := &contextHandler{}
			handler := middleware.Auth(newResolver(user))(capture)
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			tc.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.True(t, capture.called, "inner handler must be called")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, user.Identity(), capture.identity)
		})
	}
}

func TestAuth_Rejects(t *testing.T) {
	t.Parallel()

	user := newUser("alice")
	valid, err := auth.IssueToken(testJWTSecret, user.Identity(), 15*time.Minute)
	require.NoError(t, err)
	expired, err := auth.IssueToken(testJWTSecret, user.Identity(), -time.Second)
	require.NoError(t, err)
	wrongSecret, err := auth.IssueToken("another-secret-that-is-long-enough!!", user.Identity(), time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		resolver   *auth.Resolver
		wantDetail string
	}{
		{name: "no credentials", header: "", resolver: newResolver(user), wantDetail: "invalid token"},
		{name: "garbage token", header: "Bearer totally.invalid.token", resolver: newResolver(user), wantDetail: "invalid token"},
		{name: "expired token", header: "Bearer " + expired, resolver: newResolver(user), wantDetail: "token expired"},
		{name: "wrong secret", header: "Bearer " + wrongSecret, resolver: newResolver(user), wantDetail: "invalid token"},
		{name: "deleted user", header: "Bearer " + valid, resolver: newResolver(), wantDetail: "invalid token"},
		{name: "basic scheme", header: "Basic " + valid, resolver: newResolver(user), wantDetail: "invalid token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			capture := &contextHandler{}
			handler := middleware.Auth(tc.resolver)(capture)
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.False(t, capture.called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantDetail)
		})
	}
}
