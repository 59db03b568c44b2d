package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/reorder"
)

type Store struct {
	pool    *pgxpool.Pool
	users   *UserRepo
	boards  *BoardRepo
	columns *ColumnRepo
	tasks   *TaskRepo
	chat    *ChatRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:    pool,
		users:   NewUserRepo(pool),
		boards:  NewBoardRepo(pool),
		columns: NewColumnRepo(pool),
		tasks:   NewTaskRepo(pool),
		chat:    NewChatRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return ApplyMigrations(ctx, s.pool)
}

func (s *Store) Users() domain.UserRepository     { return s.users }
func (s *Store) Boards() domain.BoardRepository   { return s.boards }
func (s *Store) Columns() domain.ColumnRepository { return s.columns }
func (s *Store) Tasks() domain.TaskRepository     { return s.tasks }
func (s *Store) Chat() domain.ChatRepository      { return s.chat }

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// applyPositions writes every position update of one plan in a single
// statement. The (parent, position) unique constraints are deferred, so the
// intermediate duplicates inside the statement are allowed.
func applyPositions(ctx context.Context, tx pgx.Tx, table string, updates []reorder.Update) error {
	if len(updates) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(updates))
	positions := make([]int32, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
		positions[i] = int32(u.Position) //nolint:gosec // positions are bounded by sibling count
	}
	_, err := tx.Exec(ctx,
		`UPDATE `+table+` AS t SET position = u.position, updated_at = now()
		 FROM unnest($1::uuid[], $2::int[]) AS u(id, position)
		 WHERE t.id = u.id`,
		ids, positions,
	)
	return err
}

// siblingItems loads (id, position) pairs for one parent.
func siblingItems(ctx context.Context, q querier, query string, parentID uuid.UUID) ([]reorder.Item, error) {
	rows, err := q.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []reorder.Item
	for rows.Next() {
		var it reorder.Item
		if err := rows.Scan(&it.ID, &it.Position); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// lockRow takes a row lock on a parent so that read-modify-write cycles on
// its children are serialized.
func lockRow(ctx context.Context, tx pgx.Tx, query string, id uuid.UUID) error {
	var locked uuid.UUID
	err := tx.QueryRow(ctx, query, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// positionError converts reorder failures into domain errors.
func positionError(err error) error {
	switch {
	case errors.Is(err, reorder.ErrOutOfRange):
		return domain.InvalidPosition("position is out of range")
	case errors.Is(err, reorder.ErrMismatch):
		return domain.InvalidPosition("ordering must list every column exactly once")
	case errors.Is(err, reorder.ErrUnknownItem):
		return domain.ErrNotFound
	default:
		return err
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
