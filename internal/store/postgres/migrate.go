package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// ApplyMigrations runs every embedded *.up.sql file not yet recorded in
// schema_migrations, each in its own transaction, in file name order.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return applyMigrations(ctx, pool, migrationFiles)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, files fs.FS) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("postgres.ApplyMigrations: ensure schema_migrations: %w", err)
	}

	versions, err := migrationVersions(files)
	if err != nil {
		return fmt.Errorf("postgres.ApplyMigrations: %w", err)
	}

	for _, version := range versions {
		var applied bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
		).Scan(&applied); err != nil {
			return fmt.Errorf("postgres.ApplyMigrations: check %s: %w", version, err)
		}
		if applied {
			continue
		}

		contents, err := fs.ReadFile(files, "migrations/"+version)
		if err != nil {
			return fmt.Errorf("postgres.ApplyMigrations: read %s: %w", version, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(contents)); err != nil {
				return fmt.Errorf("execute: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
				return fmt.Errorf("record: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("postgres.ApplyMigrations: %s: %w", version, err)
		}

		log.Info().Str("version", version).Msg("applied migration")
	}

	return nil
}

// migrationVersions lists the *.up.sql file names under migrations/, sorted.
func migrationVersions(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		versions = append(versions, entry.Name())
	}
	sort.Strings(versions)

	return versions, nil
}
