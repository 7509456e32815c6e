// Package logout ends a session after the user confirms. Removing the
// persisted keys is best effort; the session is reported cleared either way.
package logout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/txn2/bmusic-client/pkg/events"
	"github.com/txn2/bmusic-client/pkg/session"
)

// Outcome is the result of a logout request.
type Outcome int

const (
	// Cancelled means the user declined; nothing changed.
	Cancelled Outcome = iota

	// Confirmed means the session was cleared.
	Confirmed
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == Confirmed {
		return "confirmed"
	}
	return "cancelled"
}

// Confirmer asks the user whether to log out.
type Confirmer interface {
	ConfirmLogout(ctx context.Context) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context) (bool, error)

// ConfirmLogout calls f.
func (f ConfirmFunc) ConfirmLogout(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Always confirms without asking.
var Always Confirmer = ConfirmFunc(func(context.Context) (bool, error) { return true, nil })

// Sequencer runs the confirm-then-clear logout flow.
type Sequencer struct {
	confirmer Confirmer
	sessions  *session.Manager
	events    events.Publisher
}

// New creates a logout Sequencer.
func New(confirmer Confirmer, sessions *session.Manager, pub events.Publisher) *Sequencer {
	return &Sequencer{
		confirmer: confirmer,
		sessions:  sessions,
		events:    pub,
	}
}

// Logout asks for confirmation and, if given, removes the token and the
// image preference and publishes SessionCleared. Removal failures are logged
// and do not stop the logout. An error is only returned when confirmation
// itself could not be obtained.
func (s *Sequencer) Logout(ctx context.Context) (Outcome, error) {
	ok, err := s.confirmer.ConfirmLogout(ctx)
	if err != nil {
		return Cancelled, fmt.Errorf("confirming logout: %w", err)
	}
	if !ok {
		slog.Debug("logout cancelled")
		return Cancelled, nil
	}

	// The user has confirmed; finish even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if err := s.sessions.Clear(ctx); err != nil {
		slog.Warn("removing session token failed", "error", err)
	}
	if err := s.sessions.ClearImageRef(ctx); err != nil {
		slog.Warn("removing profile image preference failed", "error", err)
	}

	s.events.Publish(events.Cleared())
	slog.Info("logged out")
	return Confirmed, nil
}
