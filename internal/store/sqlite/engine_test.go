package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone-app/inkstone/internal/store/sqlite"
)

func TestEngine_DataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	engine, err := sqlite.Open(ctx, path)
	require.NoError(t, err)

	_, err = engine.DB().ExecContext(ctx,
		"INSERT INTO books (id, title) VALUES ('book-1', 'Tidelands')")
	require.NoError(t, err)
	// No Persist needed: the file is the database.
	require.NoError(t, engine.Close())

	reopened, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer func() {
		_ = reopened.Close()
	}()

	var title string
	require.NoError(t, reopened.DB().QueryRowContext(ctx,
		"SELECT title FROM books WHERE id = 'book-1'").Scan(&title))
	assert.Equal(t, "Tidelands", title)
}

func TestEngine_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	engine, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer func() {
		_ = engine.Close()
	}()

	_, err = engine.DB().ExecContext(ctx,
		"INSERT INTO chapters (id, book_id, title) VALUES ('ch-1', 'missing-book', 'Orphan')")
	assert.Error(t, err)
}

func TestEngine_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	engine, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	// Reopening re-runs goose against an up-to-date schema.
	engine, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, engine.Close())
}
