package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/bmusic-client/pkg/session"
	"github.com/txn2/bmusic-client/pkg/session/sessiontest"
)

var errDisk = errors.New("disk unavailable")

func TestManager_TokenAbsent(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore())

	tok, ok := m.Token(context.Background())
	assert.False(t, ok)
	assert.Empty(t, tok)
}

func TestManager_TokenReadFailureIsAbsent(t *testing.T) {
	store := sessiontest.NewFaultStore(map[string]string{session.KeyToken: "tok1"})
	store.GetErr = errDisk
	m := session.NewManager(store)

	tok, ok := m.Token(context.Background())
	assert.False(t, ok)
	assert.Empty(t, tok)
}

func TestManager_EmptyTokenIsAbsent(t *testing.T) {
	store := sessiontest.NewFaultStore(map[string]string{session.KeyToken: ""})
	m := session.NewManager(store)

	_, ok := m.Token(context.Background())
	assert.False(t, ok)
}

func TestManager_EstablishAndClear(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, m.Establish(ctx, "tok1"))
	tok, ok := m.Token(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok1", tok)

	require.NoError(t, m.Clear(ctx))
	_, ok = m.Token(ctx)
	assert.False(t, ok)
}

func TestManager_EstablishEmpty(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore())
	assert.ErrorIs(t, m.Establish(context.Background(), ""), session.ErrEmptyToken)
}

func TestManager_WriteFailuresAreStorageErrors(t *testing.T) {
	store := sessiontest.NewFaultStore(nil)
	store.SetErr = errDisk
	store.RemoveErr = errDisk
	m := session.NewManager(store)
	ctx := context.Background()

	err := m.Establish(ctx, "tok1")
	require.Error(t, err)
	assert.True(t, session.IsStorageError(err))
	assert.ErrorIs(t, err, errDisk)

	err = m.Clear(ctx)
	require.Error(t, err)
	var se *session.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, session.OpRemove, se.Op)
	assert.Equal(t, session.KeyToken, se.Key)

	assert.Error(t, m.SetImageRef(ctx, "file:///a.png"))
	assert.Error(t, m.ClearImageRef(ctx))
}

func TestManager_ImageRef(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore())
	ctx := context.Background()

	_, ok := m.ImageRef(ctx)
	assert.False(t, ok)

	require.NoError(t, m.SetImageRef(ctx, "file:///me.png"))
	ref, ok := m.ImageRef(ctx)
	require.True(t, ok)
	assert.Equal(t, "file:///me.png", ref)

	require.NoError(t, m.ClearImageRef(ctx))
	_, ok = m.ImageRef(ctx)
	assert.False(t, ok)
}

func TestManager_Subscribe(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore())
	ctx := context.Background()

	changes, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Establish(ctx, "tok1"))
	require.NoError(t, m.Clear(ctx))

	assert.Equal(t, session.Change{Key: session.KeyToken, Present: true}, <-changes)
	assert.Equal(t, session.Change{Key: session.KeyToken, Present: false}, <-changes)
}

func TestManager_SubscribeCancel(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore())

	changes, cancel := m.Subscribe()
	cancel()
	cancel()

	_, open := <-changes
	assert.False(t, open)

	// No panic publishing after the subscriber left.
	require.NoError(t, m.Establish(context.Background(), "tok1"))
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, session.Fingerprint(""))

	fp := session.Fingerprint("tok1")
	assert.Len(t, fp, 12)
	assert.NotContains(t, fp, "tok1")
	assert.Equal(t, fp, session.Fingerprint("tok1"))
	assert.NotEqual(t, fp, session.Fingerprint("tok2"))
}
