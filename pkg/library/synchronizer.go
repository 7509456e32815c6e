// Package library loads the authenticated user's profile and playlists from
// the remote service into a Snapshot. A rejected token is removed from the
// session store; a failed playlists fetch degrades to an empty library.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/txn2/bmusic-client/pkg/api"
	"github.com/txn2/bmusic-client/pkg/events"
	"github.com/txn2/bmusic-client/pkg/session"
)

// Sentinel errors.
var (
	// ErrSessionInvalid means the service rejected the token. The token has
	// been removed.
	ErrSessionInvalid = errors.New("session is no longer valid")

	// ErrLoadFailed means the profile could not be loaded for a reason
	// other than a rejected token.
	ErrLoadFailed = errors.New("could not load profile")

	// ErrTransientFetch marks a playlists failure that was degraded to an
	// empty library.
	ErrTransientFetch = errors.New("playlists unavailable")

	// ErrNoSongs is returned when opening a playlist that has no songs list.
	ErrNoSongs = errors.New("playlist has no songs")
)

// Invalidation reasons carried on SessionInvalidated events.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonLoadFailed   = "profile_load_failed"
)

// Fetcher is the subset of the remote service used for synchronization.
type Fetcher interface {
	Profile(ctx context.Context, token string) ([]byte, error)
	Playlists(ctx context.Context, token string) ([]byte, error)
}

// Config configures the Synchronizer.
type Config struct {
	// InvalidateOnProfileError clears the session when the profile fails to
	// load for any reason, not only on 401.
	InvalidateOnProfileError bool

	// DefaultImage is the profile image shown when no preference is stored.
	DefaultImage string
}

// DefaultConfig returns the default synchronizer configuration.
func DefaultConfig() Config {
	return Config{
		InvalidateOnProfileError: true,
		DefaultImage:             DefaultProfileImage,
	}
}

// Snapshot is the view state built by one synchronization.
type Snapshot struct {
	Profile   UserProfile
	Playlists []Playlist

	// PlaylistsErr is set, wrapping ErrTransientFetch, when the playlists
	// could not be loaded and Playlists was left empty.
	PlaylistsErr error
}

// Synchronizer loads profile and library data for a session token.
type Synchronizer struct {
	fetcher  Fetcher
	sessions *session.Manager
	events   events.Publisher
	cfg      Config
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(fetcher Fetcher, sessions *session.Manager, pub events.Publisher, cfg Config) *Synchronizer {
	if cfg.DefaultImage == "" {
		cfg.DefaultImage = DefaultProfileImage
	}
	return &Synchronizer{
		fetcher:  fetcher,
		sessions: sessions,
		events:   pub,
		cfg:      cfg,
	}
}

// LoadAuthenticatedData fetches the profile and then the playlists for
// token. The playlists request is only issued once the profile has loaded.
//
// A 401 on the profile clears the session and returns ErrSessionInvalid.
// Any other profile failure returns ErrLoadFailed, clearing the session when
// so configured. Playlists failures never fail the load.
//
// If ctx is done before the snapshot is ready, ctx.Err() is returned and no
// snapshot is delivered.
func (s *Synchronizer) LoadAuthenticatedData(ctx context.Context, token string) (*Snapshot, error) {
	profile, err := s.loadProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	profile.ImageRef = s.ResolveImage(ctx)

	playlists, plErr := s.loadPlaylists(ctx, token)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Snapshot{
		Profile:      profile,
		Playlists:    playlists,
		PlaylistsErr: plErr,
	}, nil
}

func (s *Synchronizer) loadProfile(ctx context.Context, token string) (UserProfile, error) {
	body, err := s.fetcher.Profile(ctx, token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return UserProfile{}, ctxErr
		}
		if api.IsUnauthorized(err) {
			slog.Info("profile rejected token, clearing session", "token", session.Fingerprint(token))
			s.invalidate(ctx, ReasonUnauthorized)
			return UserProfile{}, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
		}
		return UserProfile{}, s.profileFailed(ctx, err)
	}

	profile, err := decodeProfile(body)
	if err != nil {
		return UserProfile{}, s.profileFailed(ctx, err)
	}
	return profile, nil
}

func (s *Synchronizer) profileFailed(ctx context.Context, err error) error {
	slog.Warn("loading profile failed", "error", err, "invalidate", s.cfg.InvalidateOnProfileError)
	if s.cfg.InvalidateOnProfileError {
		s.invalidate(ctx, ReasonLoadFailed)
	}
	return fmt.Errorf("%w: %w", ErrLoadFailed, err)
}

// loadPlaylists returns an empty, non-nil slice and an error wrapping
// ErrTransientFetch on any failure.
func (s *Synchronizer) loadPlaylists(ctx context.Context, token string) ([]Playlist, error) {
	body, err := s.fetcher.Playlists(ctx, token)
	if err != nil {
		slog.Warn("loading playlists failed, showing empty library", "error", err)
		return []Playlist{}, fmt.Errorf("%w: %w", ErrTransientFetch, err)
	}

	list, err := decodePlaylists(body)
	if err != nil {
		slog.Warn("decoding playlists failed, showing empty library", "error", err)
		return []Playlist{}, fmt.Errorf("%w: %w", ErrTransientFetch, err)
	}
	return list, nil
}

// invalidate removes the token and announces it. A failed removal is logged;
// the event is published regardless.
func (s *Synchronizer) invalidate(ctx context.Context, reason string) {
	if err := s.sessions.Clear(context.WithoutCancel(ctx)); err != nil {
		slog.Error("clearing invalid session failed", "error", err)
	}
	s.events.Publish(events.Invalidated(reason))
}

// OpenPlaylist returns the songs of p, or ErrNoSongs when it has none.
func OpenPlaylist(p Playlist) ([]Song, error) {
	if !p.HasSongs() {
		return nil, ErrNoSongs
	}
	return p.Songs, nil
}
