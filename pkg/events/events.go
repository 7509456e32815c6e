// Package events carries session lifecycle events from the components that
// cause them (credential exchange, synchronization, logout) to the router
// that reacts to them.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a session event.
type Kind int

const (
	// SessionEstablished is emitted after a token has been persisted.
	SessionEstablished Kind = iota + 1

	// SessionCleared is emitted after a user-confirmed logout.
	SessionCleared

	// SessionInvalidated is emitted when the remote service rejected the
	// token and it has been removed.
	SessionInvalidated
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case SessionEstablished:
		return "session_established"
	case SessionCleared:
		return "session_cleared"
	case SessionInvalidated:
		return "session_invalidated"
	default:
		return "unknown"
	}
}

// Event is a single session lifecycle notification.
type Event struct {
	ID     string
	Kind   Kind
	Token  string // only set for SessionEstablished
	Reason string
	At     time.Time
}

// New creates an event with a fresh ID and timestamp.
func New(kind Kind) Event {
	return Event{
		ID:   uuid.NewString(),
		Kind: kind,
		At:   time.Now(),
	}
}

// Established creates a SessionEstablished event for token.
func Established(token string) Event {
	ev := New(SessionEstablished)
	ev.Token = token
	return ev
}

// Cleared creates a SessionCleared event.
func Cleared() Event {
	return New(SessionCleared)
}

// Invalidated creates a SessionInvalidated event.
func Invalidated(reason string) Event {
	ev := New(SessionInvalidated)
	ev.Reason = reason
	return ev
}

// Publisher publishes events.
type Publisher interface {
	Publish(ev Event)
}

// defaultBuffer is the per-subscriber channel capacity.
const defaultBuffer = 16

// Bus fans events out to subscribers over buffered channels.
// It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	buffer int
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[string]chan Event),
		buffer: defaultBuffer,
	}
}

// Publish delivers ev to every subscriber. A subscriber whose buffer is full
// misses the event; the drop is logged.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("event dropped for slow subscriber", "subscriber", id, "event", ev.Kind.String())
		}
	}
}

// Subscribe registers a subscriber and returns its channel along with a
// function that unsubscribes and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Verify interface compliance.
var _ Publisher = (*Bus)(nil)
