package postgres

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/reorder"
)

func TestMigrationVersions(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"migrations/0002_chat.up.sql":   {Data: []byte("SELECT 1")},
		"migrations/0001_init.up.sql":   {Data: []byte("SELECT 1")},
		"migrations/0001_init.down.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":          {Data: []byte("notes")},
	}

	got, err := migrationVersions(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql", "0002_chat.up.sql"}, got)
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	got, err := migrationVersions(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "0001_init.up.sql", got[0])

	schema, err := migrationFiles.ReadFile("migrations/" + got[0])
	require.NoError(t, err)
	assert.Contains(t, string(schema), "DEFERRABLE INITIALLY DEFERRED")
}

func TestPositionError(t *testing.T) {
	t.Parallel()

	var verr *domain.ValidationError
	require.ErrorAs(t, positionError(reorder.ErrOutOfRange), &verr)
	assert.Equal(t, "position", verr.Field)

	assert.ErrorIs(t, positionError(reorder.ErrMismatch), domain.ErrValidation)
	assert.ErrorIs(t, positionError(reorder.ErrUnknownItem), domain.ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, positionError(other))
}
