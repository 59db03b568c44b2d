package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/collab"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      v1.DataStore
	engine     *collab.Engine
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the background
// cleanup of the rate limiters.
func New(ctx context.Context, cfg *config.Config, store v1.DataStore, engine *collab.Engine, resolver middleware.TokenResolver) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	hub := ws.NewHub(engine, resolver, cfg.Collab.HeartbeatInterval, originPatterns(cfg.Server.CORSOrigins))

	s := &Server{
		router: router,
		store:  store,
		engine: engine,
		wsHub:  hub,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:        cfg.Server.Addr,
			Handler:     router,
			ReadTimeout: cfg.Server.ReadTimeout,
		},
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Write timeout is per route group: a server-wide one would cut
		// long-lived websocket connections.
		r.Use(chimw.Timeout(cfg.Server.WriteTimeout))
		r.Use(middleware.Auth(resolver))
		r.Use(middleware.RateLimit(ctx, 100, 200))

		apiConfig := huma.DefaultConfig("Boardsync API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, store, engine)
	})

	// The handshake authenticates itself so that a rejected token gets a
	// 401 instead of an upgraded socket.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 5, 20))
		registerWSRoutes(r, hub)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", s.healthz)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.engine.Sessions(),
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. Hijacked websocket connections
// are not tracked by http.Server and must be closed through the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
