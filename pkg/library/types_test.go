package library

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		name string
		json string
		want ID
	}{
		{"number", `{"id": 42}`, "42"},
		{"string", `{"id": "abc"}`, "abc"},
		{"null", `{"id": null}`, ""},
		{"missing", `{}`, ""},
		{"float", `{"id": 1.5}`, "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Playlist
			require.NoError(t, json.Unmarshal([]byte(tt.json), &p))
			assert.Equal(t, tt.want, p.ID)
		})
	}

	var p Playlist
	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &p))
}

func TestPlaylistSongs(t *testing.T) {
	var withSongs, empty, absent Playlist
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Road","songs":[{"title":"S1"}]}`), &withSongs))
	require.NoError(t, json.Unmarshal([]byte(`{"songs":[]}`), &empty))
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x"}`), &absent))

	assert.True(t, withSongs.HasSongs())
	assert.Equal(t, 1, withSongs.SongCount())
	assert.True(t, empty.HasSongs())
	assert.Equal(t, 0, empty.SongCount())
	assert.False(t, absent.HasSongs())
	assert.Equal(t, 0, absent.SongCount())

	songs, err := OpenPlaylist(withSongs)
	require.NoError(t, err)
	assert.Equal(t, "S1", songs[0].Title)
	_, err = OpenPlaylist(absent)
	assert.ErrorIs(t, err, ErrNoSongs)
}

func TestDisplayDefaults(t *testing.T) {
	var song Song
	require.NoError(t, json.Unmarshal([]byte(`{"albumArt":"http://art/1.png"}`), &song))
	assert.Equal(t, DefaultSongTitle, song.DisplayTitle())
	assert.Equal(t, DefaultArtist, song.DisplayArtist())
	assert.Equal(t, DefaultAlbum, song.DisplayAlbum())
	assert.Equal(t, "http://art/1.png", song.AlbumArt())
	assert.Equal(t, DefaultAlbumArt, Song{}.AlbumArt())

	assert.Equal(t, DefaultUserName, UserProfile{}.DisplayName())
	assert.Equal(t, DefaultCity, UserProfile{}.DisplayCity())
	assert.Equal(t, "Ana", UserProfile{Name: "Ana"}.DisplayName())
	assert.Equal(t, DefaultPlaylistName, Playlist{}.DisplayName())
}

func TestDecodePlaylists(t *testing.T) {
	p1 := `{"id":1,"name":"Road","songs":[{"title":"S1"}]}`
	p2 := `{"id":"2","name":"Gym"}`

	bare, err := decodePlaylists([]byte(`[` + p1 + `,` + p2 + `]`))
	require.NoError(t, err)
	wrapped, err := decodePlaylists([]byte(` {"data":[` + p1 + `,` + p2 + `]}`))
	require.NoError(t, err)
	assert.Equal(t, bare, wrapped)
	require.Len(t, bare, 2)
	assert.Equal(t, ID("1"), bare[0].ID)
	assert.Equal(t, ID("2"), bare[1].ID)

	for _, body := range []string{``, `"x"`, `{}`, `{"data":{}}`, `{"data":null}`, `42`, `[1,2]`, `{"data":[`} {
		_, err := decodePlaylists([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestDecodeProfile(t *testing.T) {
	p, err := decodeProfile([]byte(`{"name":"Ana","email":"ana@x.com","city":"Lima","extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, UserProfile{Name: "Ana", Email: "ana@x.com", City: "Lima"}, p)

	_, err = decodeProfile([]byte(`<html>`))
	assert.Error(t, err)
}
