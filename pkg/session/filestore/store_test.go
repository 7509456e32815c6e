package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/bmusic-client/pkg/session"
)

const testPassphrase = "correct horse battery staple"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		Path:       filepath.Join(t.TempDir(), "bmusic", "session.json"),
		Passphrase: testPassphrase,
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Passphrase: testPassphrase})
	assert.Error(t, err)

	_, err = New(Config{Path: "/tmp/x.json"})
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get(context.Background(), session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Remove(context.Background(), session.KeyToken))

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "remove on an absent key does not create the file")
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, session.KeyToken, "tok1"))
	require.NoError(t, s.Set(ctx, session.KeyImage, "file:///me.png"))

	got, ok, err := s.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok1", got)

	require.NoError(t, s.Remove(ctx, session.KeyToken))
	_, ok, err = s.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	img, ok, err := s.Get(ctx, session.KeyImage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "file:///me.png", img)
}

func TestStore_ValuesAreSealedAtRest(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set(context.Background(), session.KeyToken, "super-secret-token"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret-token")

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())

	var doc fileData
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, fileVersion, doc.Version)
	assert.NotEmpty(t, doc.Salt)
	assert.Contains(t, doc.Values, session.KeyToken)
}

func TestStore_WrongPassphrase(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set(context.Background(), session.KeyToken, "tok1"))

	other, err := New(Config{Path: s.Path(), Passphrase: "wrong"})
	require.NoError(t, err)

	_, _, err = other.Get(context.Background(), session.KeyToken)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestStore_ValueBoundToKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, session.KeyToken, "tok1"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var doc fileData
	require.NoError(t, json.Unmarshal(data, &doc))
	doc.Values[session.KeyImage] = doc.Values[session.KeyToken]
	data, err = json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), data, filePerm))

	_, _, err = s.Get(ctx, session.KeyImage)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestStore_CorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), dirPerm))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), filePerm))

	_, _, err := s.Get(context.Background(), session.KeyToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing session file")
}

func TestStore_Closed(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, _, err := s.Get(ctx, session.KeyToken)
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.ErrorIs(t, s.Set(ctx, session.KeyToken, "x"), session.ErrClosed)
	assert.ErrorIs(t, s.Remove(ctx, session.KeyToken), session.ErrClosed)
}

// startWatch runs the watch loop in the background once the watcher is
// registered, and stops it at cleanup.
func startWatch(t *testing.T, s *Store, onChange func()) {
	t.Helper()
	watcher, err := s.newWatcher()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.watchLoop(ctx, watcher, onChange)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestStore_WatchIgnoresOwnWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var calls atomic.Int32
	startWatch(t, s, func() { calls.Add(1) })

	require.NoError(t, s.Set(ctx, session.KeyToken, "tok1"))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	other, err := New(Config{Path: s.Path(), Passphrase: testPassphrase})
	require.NoError(t, err)
	require.NoError(t, other.Remove(context.Background(), session.KeyToken))

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestStore_WatchBlocksUntilDone(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, func() { calls.Add(1) }) }()

	select {
	case err := <-done:
		t.Fatalf("Watch returned before cancellation: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}

	other, err := New(Config{Path: s.Path(), Passphrase: testPassphrase})
	require.NoError(t, err)
	require.NoError(t, other.Set(context.Background(), session.KeyToken, "tok2"))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestStore_WatchSetupError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s, err := New(Config{Path: filepath.Join(blocker, "sub", "session.json"), Passphrase: testPassphrase})
	require.NoError(t, err)
	assert.Error(t, s.Watch(context.Background(), func() {}))
}
