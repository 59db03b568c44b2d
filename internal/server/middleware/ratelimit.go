package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 10 * time.Minute
	limiterTTL           = 30 * time.Minute
)

const tooManyRequests = `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet hands out one token bucket per key and forgets keys that have
// been quiet for limiterTTL.
type limiterSet[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*limiterEntry
	limit   rate.Limit
	burst   int
}

func newLimiterSet[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *limiterSet[K] {
	ls := &limiterSet[K]{
		entries: make(map[K]*limiterEntry),
		limit:   rate.Limit(requestsPerSecond),
		burst:   burst,
	}
	go ls.sweep(ctx)
	return ls
}

func (ls *limiterSet[K]) allow(key K) bool {
	ls.mu.Lock()
	e, ok := ls.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(ls.limit, ls.burst)}
		ls.entries[key] = e
	}
	e.lastAccess = time.Now()
	ls.mu.Unlock()
	return e.limiter.Allow()
}

func (ls *limiterSet[K]) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterTTL)
			ls.mu.Lock()
			for k, e := range ls.entries {
				if e.lastAccess.Before(cutoff) {
					delete(ls.entries, k)
				}
			}
			ls.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints
// such as the websocket handshake. Behind chi's RealIP, r.RemoteAddr already
// holds the client address.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newLimiterSet[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(clientIP(r)) {
				http.Error(w, tooManyRequests, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-user rate limiting to authenticated routes. Requests
// without an identity pass through; RateLimitByIP covers those.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := newLimiterSet[uuid.UUID](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if ok && !limiters.allow(userID) {
				http.Error(w, tooManyRequests, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
