package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/bmusic-client/pkg/session"
)

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	db, err := Open(ctx, DialectSQLite, path)
	require.NoError(t, err)

	require.NoError(t, Migrate(db, DialectSQLite))
	require.NoError(t, Migrate(db, DialectSQLite), "migrations are idempotent")

	version, dirty, err := Version(db, DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	store := New(db, Config{Dialect: DialectSQLite})
	defer func() { _ = store.Close() }()

	_, ok, err := store.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, session.KeyToken, "tok1"))
	require.NoError(t, store.Set(ctx, session.KeyToken, "tok2"))

	got, ok, err := store.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok2", got)

	require.NoError(t, store.Remove(ctx, session.KeyToken))
	_, ok, err = store.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")
}

func TestOpen_SQLiteRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), DialectSQLite, "")
	require.Error(t, err)
}

func TestMigrate_UnsupportedDialect(t *testing.T) {
	err := Migrate(nil, Dialect("oracle"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")
}
