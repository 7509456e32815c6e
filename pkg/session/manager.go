package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
)

const (
	// subscriberBuffer is the per-subscriber notification buffer.
	subscriberBuffer = 8

	// fingerprintBytes is how many hash bytes are kept in a token fingerprint.
	fingerprintBytes = 6
)

// ErrEmptyToken is returned when establishing a session with an empty token.
var ErrEmptyToken = errors.New("session token is empty")

// Change describes a mutation of a persisted session key.
type Change struct {
	Key     string
	Present bool
}

// Manager is the single writer of session state. Every component reads and
// mutates the token and image preference through it.
//
// Read failures are treated as absence. Write failures are returned as
// *StorageError so that callers decide whether they matter.
type Manager struct {
	store Store

	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

// NewManager creates a Manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		subs:  make(map[int]chan Change),
	}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Token returns the stored session token. A read failure or an empty value
// is reported as absent.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	return m.read(ctx, KeyToken)
}

// Establish persists a freshly obtained token.
func (m *Manager) Establish(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.store.Set(ctx, KeyToken, token); err != nil {
		return &StorageError{Op: OpSet, Key: KeyToken, Err: err}
	}
	slog.Debug("session established", "token", Fingerprint(token))
	m.notify(Change{Key: KeyToken, Present: true})
	return nil
}

// Clear removes the session token.
func (m *Manager) Clear(ctx context.Context) error {
	return m.remove(ctx, KeyToken)
}

// ImageRef returns the cached profile image reference.
func (m *Manager) ImageRef(ctx context.Context) (string, bool) {
	return m.read(ctx, KeyImage)
}

// SetImageRef persists a profile image reference.
func (m *Manager) SetImageRef(ctx context.Context, ref string) error {
	if err := m.store.Set(ctx, KeyImage, ref); err != nil {
		return &StorageError{Op: OpSet, Key: KeyImage, Err: err}
	}
	m.notify(Change{Key: KeyImage, Present: ref != ""})
	return nil
}

// ClearImageRef removes the cached profile image reference.
func (m *Manager) ClearImageRef(ctx context.Context) error {
	return m.remove(ctx, KeyImage)
}

// Subscribe returns a channel receiving every subsequent Change and a
// function that cancels the subscription. Notifications are dropped for a
// subscriber whose buffer is full.
func (m *Manager) Subscribe() (<-chan Change, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	ch := make(chan Change, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Manager) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		slog.Warn("session store read failed, treating as absent", "key", key, "error", err)
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (m *Manager) remove(ctx context.Context, key string) error {
	if err := m.store.Remove(ctx, key); err != nil {
		return &StorageError{Op: OpRemove, Key: key, Err: err}
	}
	m.notify(Change{Key: key, Present: false})
	return nil
}

func (m *Manager) notify(c Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- c:
		default:
			slog.Debug("session change dropped for slow subscriber", "key", c.Key)
		}
	}
}

// Fingerprint returns a short, non-reversible identifier for a token,
// suitable for logs.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:fingerprintBytes])
}
