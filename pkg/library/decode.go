package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// errUnexpectedShape is returned when a playlists body is neither an array
// nor an object with a "data" array.
var errUnexpectedShape = errors.New("unexpected playlists shape")

// decodeProfile parses a profile response body.
func decodeProfile(body []byte) (UserProfile, error) {
	var p UserProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return UserProfile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}

// decodePlaylists parses a playlists response body. Both a bare array and
// an envelope {"data": [...]} are accepted.
func decodePlaylists(body []byte) ([]Playlist, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errUnexpectedShape
	}

	switch trimmed[0] {
	case '[':
		var list []Playlist
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decoding playlists: %w", err)
		}
		return list, nil
	case '{':
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decoding playlists envelope: %w", err)
		}
		data := bytes.TrimSpace(env.Data)
		if len(data) == 0 || data[0] != '[' {
			return nil, errUnexpectedShape
		}
		var list []Playlist
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decoding playlists: %w", err)
		}
		return list, nil
	default:
		return nil, errUnexpectedShape
	}
}
