package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/collab"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/server"
	"github.com/gosuda/boardsync/internal/store/memory"
	"github.com/gosuda/boardsync/internal/store/postgres"
	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

// appStore is what both storage backends provide.
type appStore interface {
	collab.Store
	Users() domain.UserRepository
	Close()
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("BOARDSYNC_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil || logLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("BOARDSYNC_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.DevSeed {
		if err := seed(ctx, store, cfg.JWT.Secret); err != nil {
			return fmt.Errorf("dev seed: %w", err)
		}
	}

	engine := collab.NewEngine(store, collab.Options{
		TypingTimeout: cfg.Collab.TypingTimeout,
		IdleTimeout:   cfg.Collab.IdleTimeout,
		SendBuffer:    cfg.Collab.SendBuffer,
		EventRate:     cfg.Collab.EventRate,
		EventBurst:    cfg.Collab.EventBurst,
		CursorRate:    cfg.Collab.CursorRate,
	})

	// Connect to Redis when configured so rooms span instances.
	if cfg.Redis.Addr != "" {
		pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()

		relay := redisstore.NewRelay(pubsub, uuid.NewString())
		engine.SetRelay(relay)
		go func() {
			if runErr := relay.Run(ctx, engine.DeliverRemote); runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.Error().Err(runErr).Msg("relay stopped")
			}
		}()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis relay enabled")
	}

	go engine.RunSweeper(ctx, cfg.Collab.HeartbeatInterval)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, engine, auth.NewResolver(cfg.JWT.Secret, store.Users()))

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Websocket connections are hijacked, so the engine closes them.
	engine.Shutdown()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (appStore, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

// seed creates a demo user owning a board with a few columns and logs a
// token to connect with.
func seed(ctx context.Context, store appStore, secret string) error {
	user := &domain.User{
		ID:        uuid.New(),
		Username:  "demo",
		Email:     "demo@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Users().Create(ctx, user); err != nil {
		return err
	}

	board, err := domain.NewBoard(user.ID, "Demo board", "Seeded for local development")
	if err != nil {
		return err
	}
	if err := store.Boards().Create(ctx, board); err != nil {
		return err
	}

	var first *domain.Column
	for _, title := range []string{"To Do", "In Progress", "Done"} {
		col, err := domain.NewColumn(board.ID, title)
		if err != nil {
			return err
		}
		if err := store.Columns().Create(ctx, col, nil); err != nil {
			return err
		}
		if first == nil {
			first = col
		}
	}

	task, err := domain.NewTask(domain.TaskDraft{Title: "Try dragging me", ColumnID: first.ID}, user.ID, time.Now())
	if err != nil {
		return err
	}
	if err := store.Tasks().Create(ctx, task, nil); err != nil {
		return err
	}

	token, err := auth.IssueToken(secret, user.Identity(), 24*time.Hour)
	if err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID.String()).Str("board_id", board.ID.String()).
		Str("token", token).Msg("dev seed created")
	return nil
}
