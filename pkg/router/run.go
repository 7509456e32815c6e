package router

import (
	"context"
	"log/slog"

	"github.com/txn2/bmusic-client/pkg/events"
	"github.com/txn2/bmusic-client/pkg/library"
	"github.com/txn2/bmusic-client/pkg/session"
)

// Run applies session events until ctx is done or the event channel closes.
//
//   - SessionEstablished: bootstrap again and load.
//   - SessionCleared: leave for the welcome screen.
//   - SessionInvalidated: leave for the welcome screen with a notice.
//
// Token removals seen on the session manager are treated like
// SessionCleared, so a session removed by any writer is never left showing.
func (r *Router) Run(ctx context.Context, bus Subscriber) error {
	return r.Attach(bus)(ctx)
}

// Attach subscribes to bus and the session manager right away and returns
// the loop that applies what they deliver, as described for Run. Events
// published between Attach and running the loop are buffered. The loop must
// be run to release the subscriptions.
func (r *Router) Attach(bus Subscriber) func(context.Context) error {
	evs, cancelEvents := bus.Subscribe()
	changes, cancelChanges := r.sessions.Subscribe()

	return func(ctx context.Context) error {
		defer cancelEvents()
		defer cancelChanges()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-evs:
				if !ok {
					return nil
				}
				r.handle(ctx, ev)
			case c, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				if c.Key == session.KeyToken && !c.Present && !r.State().Loading {
					r.signedOut("")
				}
			}
		}
	}
}

func (r *Router) handle(ctx context.Context, ev events.Event) {
	slog.Debug("session event", "event", ev.Kind.String(), "id", ev.ID)

	switch ev.Kind {
	case events.SessionEstablished:
		if _, err := r.Resume(ctx); err != nil {
			slog.Warn("loading after login failed", "error", err)
		}
	case events.SessionCleared:
		r.signedOut("")
	case events.SessionInvalidated:
		r.signedOut(invalidatedNotice(ev.Reason))
	}
}

func invalidatedNotice(reason string) string {
	if reason == library.ReasonLoadFailed {
		return NoticeLoadFailed
	}
	return NoticeSessionExpired
}

// signedOut moves to Unauthenticated. When already there only a missing
// notice is filled in.
func (r *Router) signedOut(notice string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status == Unauthenticated {
		if notice != "" && r.state.Notice == "" {
			st := r.state
			st.Notice = notice
			r.setLocked(st, false)
		}
		return
	}
	r.setLocked(unauthenticated(notice), true)
}
