//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/txn2/bmusic-client/pkg/session"
)

func TestPostgres_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:15",
		postgres.WithDatabase("bmusic"),
		postgres.WithUsername("bmusic"),
		postgres.WithPassword("bmusic"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = pgContainer.Terminate(ctx) }()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, DialectPostgres, connStr)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, DialectPostgres))

	store := New(db, Config{Dialect: DialectPostgres})
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Set(ctx, session.KeyToken, "tok1"))
	require.NoError(t, store.Set(ctx, session.KeyImage, "file:///me.png"))
	require.NoError(t, store.Set(ctx, session.KeyToken, "tok2"))

	got, ok, err := store.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok2", got)

	require.NoError(t, store.Remove(ctx, session.KeyToken))
	_, ok, err = store.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	img, ok, err := store.Get(ctx, session.KeyImage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "file:///me.png", img)
}
