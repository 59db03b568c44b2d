package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Store    string
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Server   ServerConfig
	Collab   CollabConfig
	// DevSeed creates a demo user and board in the memory store and logs a
	// token for them.
	DevSeed bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
	Migrate  bool
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// cross-instance relay.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// CollabConfig tunes the realtime engine.
type CollabConfig struct {
	TypingTimeout     time.Duration
	IdleTimeout       time.Duration
	HeartbeatInterval time.Duration
	SendBuffer        int
	EventRate         float64
	EventBurst        int
	CursorRate        float64
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("BOARDSYNC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("BOARDSYNC_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMigrate, err := getEnvBool("BOARDSYNC_DB_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("BOARDSYNC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("BOARDSYNC_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("BOARDSYNC_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	typingTimeout, err := getEnvDuration("BOARDSYNC_TYPING_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	idleTimeout, err := getEnvDuration("BOARDSYNC_IDLE_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	heartbeat, err := getEnvDuration("BOARDSYNC_HEARTBEAT_INTERVAL", 25*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sendBuffer, err := getEnvInt("BOARDSYNC_SEND_BUFFER", 256)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	eventRate, err := getEnvFloat("BOARDSYNC_EVENT_RATE", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	eventBurst, err := getEnvInt("BOARDSYNC_EVENT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cursorRate, err := getEnvFloat("BOARDSYNC_CURSOR_RATE", 30)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	devSeed, err := getEnvBool("BOARDSYNC_DEV_SEED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("BOARDSYNC_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Store: strings.ToLower(getEnv("BOARDSYNC_STORE", StorePostgres)),
		Database: DatabaseConfig{
			Host:     getEnv("BOARDSYNC_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("BOARDSYNC_DB_USER", "boardsync"),
			Password: getEnv("BOARDSYNC_DB_PASSWORD", ""),
			DBName:   getEnv("BOARDSYNC_DB_NAME", "boardsync_dev"),
			SSLMode:  getEnv("BOARDSYNC_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
			Migrate:  dbMigrate,
		},
		Redis: RedisConfig{
			Addr:     getEnv("BOARDSYNC_REDIS_ADDR", ""),
			Password: getEnv("BOARDSYNC_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("BOARDSYNC_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:         getEnv("BOARDSYNC_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Collab: CollabConfig{
			TypingTimeout:     typingTimeout,
			IdleTimeout:       idleTimeout,
			HeartbeatInterval: heartbeat,
			SendBuffer:        sendBuffer,
			EventRate:         eventRate,
			EventBurst:        eventBurst,
			CursorRate:        cursorRate,
		},
		DevSeed: devSeed,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("BOARDSYNC_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("BOARDSYNC_JWT_SECRET must be at least 32 characters")
	}

	switch c.Store {
	case StorePostgres:
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("BOARDSYNC_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("BOARDSYNC_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.DevSeed && c.Store != StoreMemory {
		return errors.New("BOARDSYNC_DEV_SEED requires BOARDSYNC_STORE=memory")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("BOARDSYNC_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("BOARDSYNC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Collab.TypingTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_TYPING_TIMEOUT must be positive, got %s", c.Collab.TypingTimeout)
	}
	if c.Collab.HeartbeatInterval <= 0 {
		return fmt.Errorf("BOARDSYNC_HEARTBEAT_INTERVAL must be positive, got %s", c.Collab.HeartbeatInterval)
	}
	if c.Collab.IdleTimeout <= c.Collab.HeartbeatInterval {
		return fmt.Errorf("BOARDSYNC_IDLE_TIMEOUT (%s) must exceed BOARDSYNC_HEARTBEAT_INTERVAL (%s)",
			c.Collab.IdleTimeout, c.Collab.HeartbeatInterval)
	}
	if c.Collab.SendBuffer < 1 {
		return fmt.Errorf("BOARDSYNC_SEND_BUFFER must be >= 1, got %d", c.Collab.SendBuffer)
	}
	if c.Collab.EventRate <= 0 || c.Collab.EventBurst < 1 {
		return fmt.Errorf("BOARDSYNC_EVENT_RATE and BOARDSYNC_EVENT_BURST must be positive, got %g/%d",
			c.Collab.EventRate, c.Collab.EventBurst)
	}
	if c.Collab.CursorRate <= 0 {
		return fmt.Errorf("BOARDSYNC_CURSOR_RATE must be positive, got %g", c.Collab.CursorRate)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
