package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Display defaults for fields the service leaves empty.
const (
	DefaultProfileImage = "https://cdn-icons-png.flaticon.com/512/3135/3135715.png"
	DefaultAlbumArt     = "https://via.placeholder.com/300/24b946/ffffff?text=Album"

	DefaultUserName     = "User"
	DefaultCity         = "City not specified"
	DefaultPlaylistName = "Untitled playlist"
	DefaultSongTitle    = "Untitled song"
	DefaultArtist       = "Unknown artist"
	DefaultAlbum        = "Unknown album"
)

// UserProfile is the authenticated user's profile. ImageRef is never part
// of the service response; it is resolved from the local preference.
type UserProfile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	City     string `json:"city"`
	ImageRef string `json:"-"`
}

// DisplayName returns the name or its default.
func (p UserProfile) DisplayName() string {
	return orDefault(p.Name, DefaultUserName)
}

// DisplayCity returns the city or its default.
func (p UserProfile) DisplayCity() string {
	return orDefault(p.City, DefaultCity)
}

// Song is an opaque playable item reference.
type Song struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtRef string `json:"albumArt"`
}

// DisplayTitle returns the title or its default.
func (s Song) DisplayTitle() string { return orDefault(s.Title, DefaultSongTitle) }

// DisplayArtist returns the artist or its default.
func (s Song) DisplayArtist() string { return orDefault(s.Artist, DefaultArtist) }

// DisplayAlbum returns the album or its default.
func (s Song) DisplayAlbum() string { return orDefault(s.Album, DefaultAlbum) }

// AlbumArt returns the album art reference or the placeholder.
func (s Song) AlbumArt() string { return orDefault(s.AlbumArtRef, DefaultAlbumArt) }

// Playlist is a playlist summary. Songs is nil when the service omitted
// the field.
type Playlist struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Songs []Song `json:"songs"`
}

// DisplayName returns the name or its default.
func (p Playlist) DisplayName() string {
	return orDefault(p.Name, DefaultPlaylistName)
}

// HasSongs reports whether the playlist carried a songs list.
func (p Playlist) HasSongs() bool {
	return p.Songs != nil
}

// SongCount returns the number of songs, zero when the list was absent.
func (p Playlist) SongCount() int {
	return len(p.Songs)
}

// ID is a playlist identifier. The service sends either a number or a
// string; both are kept in their textual form.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
