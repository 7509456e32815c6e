// Package sessiontest provides session.Store implementations for tests.
package sessiontest

import (
	"context"
	"sync"

	"github.com/txn2/bmusic-client/pkg/session"
)

// FaultStore wraps a MemoryStore and fails selected operations.
type FaultStore struct {
	*session.MemoryStore

	mu        sync.Mutex
	GetErr    error
	SetErr    error
	RemoveErr error
	calls     []string
}

// NewFaultStore creates a FaultStore seeded with values.
func NewFaultStore(values map[string]string) *FaultStore {
	mem := session.NewMemoryStore()
	for k, v := range values {
		_ = mem.Set(context.Background(), k, v)
	}
	return &FaultStore{MemoryStore: mem}
}

// Get fails with GetErr when set.
func (s *FaultStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.record("get:" + key)
	if err := s.errFor(&s.GetErr); err != nil {
		return "", false, err
	}
	return s.MemoryStore.Get(ctx, key)
}

// Set fails with SetErr when set.
func (s *FaultStore) Set(ctx context.Context, key, value string) error {
	s.record("set:" + key)
	if err := s.errFor(&s.SetErr); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, key, value)
}

// Remove fails with RemoveErr when set.
func (s *FaultStore) Remove(ctx context.Context, key string) error {
	s.record("remove:" + key)
	if err := s.errFor(&s.RemoveErr); err != nil {
		return err
	}
	return s.MemoryStore.Remove(ctx, key)
}

// Calls returns the operations performed so far, as "op:key".
func (s *FaultStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Value reads key directly from the underlying memory store.
func (s *FaultStore) Value(key string) (string, bool) {
	v, ok, _ := s.MemoryStore.Get(context.Background(), key)
	return v, ok
}

func (s *FaultStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *FaultStore) errFor(field *error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *field
}

var _ session.Store = (*FaultStore)(nil)
