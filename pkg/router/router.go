// Package router decides which side of the app is shown, authenticated or
// not, and keeps the view state for it. It re-reads the stored session on
// every bootstrap and reacts to session events published by the other
// components.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/txn2/bmusic-client/pkg/auth"
	"github.com/txn2/bmusic-client/pkg/events"
	"github.com/txn2/bmusic-client/pkg/library"
	"github.com/txn2/bmusic-client/pkg/session"
)

// Sentinel errors.
var (
	// ErrScreenUnavailable is returned when navigating to a screen of the
	// other session group.
	ErrScreenUnavailable = errors.New("screen not available in current state")

	// ErrInvalidPayload is returned when a navigation payload does not
	// match the screen.
	ErrInvalidPayload = errors.New("invalid navigation payload")

	// ErrNotAuthenticated is returned by Load when no session is stored.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNothingToRetry is returned by Retry outside of LoadError.
	ErrNothingToRetry = errors.New("nothing to retry")
)

// subscriberBuffer is the per-subscriber state channel capacity.
const subscriberBuffer = 16

// Loader loads profile and library data for a token.
type Loader interface {
	LoadAuthenticatedData(ctx context.Context, token string) (*library.Snapshot, error)
}

// Subscriber delivers session events.
type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
}

// Option configures a Router.
type Option func(*Router)

// WithClock sets the clock used for the token expiry diagnostic.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// Router is the root router and bootstrap sequencer. It is safe for
// concurrent use.
type Router struct {
	sessions *session.Manager
	loader   Loader
	now      func() time.Time

	mu    sync.Mutex
	state State
	// gen increments on every session-level transition. A load started in
	// an earlier generation does not apply its result.
	gen  uint64
	subs map[int]chan State
	next int
}

// New creates a Router in the Booting state.
func New(sessions *session.Manager, loader Loader, opts ...Option) *Router {
	r := &Router{
		sessions: sessions,
		loader:   loader,
		now:      time.Now,
		state:    State{Status: Booting},
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Bootstrap reads the stored token and enters Authenticated at the profile
// screen when one is present, Unauthenticated at the welcome screen
// otherwise. The token is not validated; a read failure counts as absent.
func (r *Router) Bootstrap(ctx context.Context) State {
	r.transition(State{Status: Booting})

	token, ok := r.sessions.Token(ctx)
	if !ok {
		slog.Debug("bootstrap: no session")
		return r.transition(unauthenticated(""))
	}

	r.inspect(token)
	slog.Debug("bootstrap: session found", "token", session.Fingerprint(token))
	return r.transition(State{Status: Authenticated, Screen: ScreenProfile})
}

// inspect logs a warning when token is a JWT that has already expired.
func (r *Router) inspect(token string) {
	info, err := auth.InspectToken(token)
	if err != nil {
		return
	}
	if info.Expired(r.now()) {
		slog.Warn("stored session token looks expired; the service will decide",
			"token", session.Fingerprint(token), "expired_at", info.ExpiresAt)
	}
}

// Resume re-evaluates the session, as on foregrounding or remount, and
// loads data when authenticated.
func (r *Router) Resume(ctx context.Context) (State, error) {
	st := r.Bootstrap(ctx)
	if st.Status != Authenticated {
		return st, nil
	}
	return r.Load(ctx)
}

// Retry reloads after a LoadError.
func (r *Router) Retry(ctx context.Context) (State, error) {
	if r.State().Status != LoadError {
		return r.State(), ErrNothingToRetry
	}
	return r.Load(ctx)
}

// Load runs the synchronizer for the stored token and replaces the view
// state with its result. The result is discarded when ctx is done or the
// session changed while loading.
func (r *Router) Load(ctx context.Context) (State, error) {
	token, ok := r.sessions.Token(ctx)
	if !ok {
		return r.transition(unauthenticated("")), ErrNotAuthenticated
	}

	r.mu.Lock()
	st := r.state
	fresh := st.Status != Authenticated && st.Status != LoadError
	if fresh {
		st = State{}
	}
	st.Status = Authenticated
	st.Loading = true
	st.Notice = ""
	st.Err = nil
	if !st.Screen.Authenticated() {
		st.Screen = ScreenProfile
	}
	r.setLocked(st, fresh)
	gen := r.gen
	r.mu.Unlock()

	snap, err := r.loader.LoadAuthenticatedData(ctx, token)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if r.gen == gen && r.state.Loading {
			st := r.state
			st.Loading = false
			r.setLocked(st, false)
		}
		return r.state, ctxErr
	}
	if r.gen != gen {
		slog.Debug("discarding stale load result")
		return r.state, err
	}

	switch {
	case err == nil:
		st := r.state
		st.Loading = false
		st.Data = snap
		r.setLocked(st, false)
		return r.state, nil
	case errors.Is(err, library.ErrSessionInvalid):
		r.setLocked(unauthenticated(NoticeSessionExpired), true)
		return r.state, err
	}

	// The synchronizer may or may not have cleared the session.
	if _, still := r.sessions.Token(ctx); !still {
		r.setLocked(unauthenticated(NoticeLoadFailed), true)
		return r.state, err
	}
	r.setLocked(State{
		Status: LoadError,
		Screen: ScreenProfile,
		Notice: NoticeLoadFailed,
		Err:    err,
	}, false)
	return r.state, err
}

// Navigate moves to screen with payload. Screens of the other session group
// are refused with ErrScreenUnavailable.
func (r *Router) Navigate(screen Screen, payload any) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state
	switch cur.Status {
	case Unauthenticated:
		if screen.Authenticated() || screen == ScreenNone {
			return cur, fmt.Errorf("%w: %s while %s", ErrScreenUnavailable, screen, cur.Status)
		}
	case Authenticated:
		if !screen.Authenticated() {
			return cur, fmt.Errorf("%w: %s while %s", ErrScreenUnavailable, screen, cur.Status)
		}
	default:
		return cur, fmt.Errorf("%w: %s while %s", ErrScreenUnavailable, screen, cur.Status)
	}

	if err := checkPayload(screen, payload); err != nil {
		return cur, err
	}

	st := cur
	st.Screen = screen
	st.Payload = payload
	st.Notice = ""
	r.setLocked(st, false)
	return r.state, nil
}

func checkPayload(screen Screen, payload any) error {
	switch screen {
	case ScreenPlaylistDetail:
		p, ok := payload.(library.Playlist)
		if !ok {
			return fmt.Errorf("%w: %s needs a playlist", ErrInvalidPayload, screen)
		}
		if _, err := library.OpenPlaylist(p); err != nil {
			return err
		}
	case ScreenSongDetail:
		if _, ok := payload.(library.Song); !ok {
			return fmt.Errorf("%w: %s needs a song", ErrInvalidPayload, screen)
		}
	default:
		if payload != nil {
			return fmt.Errorf("%w: %s takes no payload", ErrInvalidPayload, screen)
		}
	}
	return nil
}

// DismissNotice clears the current notice.
func (r *Router) DismissNotice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Notice == "" {
		return
	}
	st := r.state
	st.Notice = ""
	r.setLocked(st, false)
}

// transition replaces the whole state and starts a new generation.
func (r *Router) transition(st State) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(st, true)
	return r.state
}

// setLocked stores st and notifies subscribers. r.mu must be held.
func (r *Router) setLocked(st State, newGen bool) {
	if newGen {
		r.gen++
	}
	prev := r.state
	r.state = st
	if prev.Status != st.Status {
		slog.Info("session status changed", "from", prev.Status.String(), "to", st.Status.String())
	}
	for _, ch := range r.subs {
		select {
		case ch <- st:
		default:
			slog.Debug("router state dropped for slow subscriber", "status", st.Status.String())
		}
	}
}

// Subscribe returns a channel receiving every subsequent state and a
// function that cancels the subscription.
func (r *Router) Subscribe() (<-chan State, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	ch := make(chan State, subscriberBuffer)
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			close(ch)
		})
	}
}

// WaitFor blocks until the router has settled in status, or ctx is done.
func (r *Router) WaitFor(ctx context.Context, status Status) (State, error) {
	return r.WaitForAny(ctx, status)
}

// WaitForAny blocks until the router has settled in one of statuses, or ctx
// is done. The current state counts.
func (r *Router) WaitForAny(ctx context.Context, statuses ...Status) (State, error) {
	ch, cancel := r.Subscribe()
	defer cancel()

	if st := r.State(); settledIn(st, statuses) {
		return st, nil
	}
	return r.awaitSettled(ctx, ch, statuses)
}

// Expect subscribes right away and returns a wait function that blocks until
// a transition made after Expect settles the router in one of statuses. It
// brackets an action whose effect on the router arrives asynchronously, such
// as a login applied by Run. The current state does not count. cancel
// releases the subscription and must be called.
func (r *Router) Expect(statuses ...Status) (wait func(context.Context) (State, error), cancel func()) {
	ch, cancel := r.Subscribe()
	return func(ctx context.Context) (State, error) {
		return r.awaitSettled(ctx, ch, statuses)
	}, cancel
}

func (r *Router) awaitSettled(ctx context.Context, ch <-chan State, statuses []Status) (State, error) {
	for {
		select {
		case <-ctx.Done():
			return r.State(), ctx.Err()
		case <-ch:
			// Re-read under the lock; the channel may lag behind.
			if st := r.State(); settledIn(st, statuses) {
				return st, nil
			}
		}
	}
}

func settledIn(st State, statuses []Status) bool {
	return st.Settled() && slices.Contains(statuses, st.Status)
}
