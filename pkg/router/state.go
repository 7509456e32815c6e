package router

import (
	"github.com/txn2/bmusic-client/pkg/library"
)

// Status is the session status the router is in.
type Status int

const (
	// Booting means the stored session is being read.
	Booting Status = iota

	// Unauthenticated means no session token is stored.
	Unauthenticated

	// Authenticated means a session token is stored.
	Authenticated

	// LoadError means a token is stored but the profile could not be
	// loaded. Retry is available.
	LoadError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Booting:
		return "booting"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case LoadError:
		return "load_error"
	default:
		return "unknown"
	}
}

// Screen identifies a destination.
type Screen string

// Screens. The first three are reachable without a session, the rest only
// with one.
const (
	ScreenNone           Screen = ""
	ScreenWelcome        Screen = "welcome"
	ScreenLogin          Screen = "login"
	ScreenRegister       Screen = "register"
	ScreenProfile        Screen = "profile"
	ScreenPlaylistDetail Screen = "playlist"
	ScreenSongDetail     Screen = "song"
)

// Authenticated reports whether the screen requires a session.
func (s Screen) Authenticated() bool {
	switch s {
	case ScreenProfile, ScreenPlaylistDetail, ScreenSongDetail:
		return true
	default:
		return false
	}
}

// User-facing notices.
const (
	NoticeSessionExpired = "Your session has expired. Please log in again."
	NoticeLoadFailed     = "Could not load your data"
)

// State is a snapshot of the router. Values are copies; mutating them has
// no effect on the router.
type State struct {
	Status Status
	Screen Screen

	// Payload is the navigation payload of the current screen:
	// library.Playlist for ScreenPlaylistDetail, library.Song for
	// ScreenSongDetail, nil otherwise.
	Payload any

	// Data is the last loaded profile and library. Nil until a load
	// completes in the current session.
	Data *library.Snapshot

	// Loading is true while a load is in flight.
	Loading bool

	// Notice is a dismissible message for the user.
	Notice string

	// Err is the error behind a LoadError status.
	Err error
}

// Settled reports whether no transition is pending: the router is not
// booting, not loading, and when authenticated its data has been loaded.
func (s State) Settled() bool {
	switch {
	case s.Status == Booting, s.Loading:
		return false
	case s.Status == Authenticated:
		return s.Data != nil
	default:
		return true
	}
}

func unauthenticated(notice string) State {
	return State{Status: Unauthenticated, Screen: ScreenWelcome, Notice: notice}
}
