package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for parse and validation failures.
var (
	// ErrParse is returned for any file that cannot be turned into records.
	// Every parse failure wraps it, so callers only need errors.Is(err, ErrParse).
	ErrParse = errors.New("parse error")

	// ErrMissingField is returned when a required key is absent or null.
	ErrMissingField = errors.New("missing required field")

	// ErrNotObject is returned when a song file or log line is valid JSON but not an object.
	ErrNotObject = errors.New("JSON value is not an object")
)

// songFileKeys are the keys every song metadata file must carry.
// The artist location and coordinates may be null but must be present.
var songFileKeys = []string{
	"song_id",
	"title",
	"artist_id",
	"year",
	"duration",
	"artist_name",
	"artist_location",
	"artist_latitude",
	"artist_longitude",
}

// requireKeys checks that every key is present in a decoded JSON object.
func requireKeys(object map[string]json.RawMessage, keys []string) error {
	for _, key := range keys {
		if _, ok := object[key]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}

	return nil
}

// validateSongFile checks the non-nullable song metadata fields.
func validateSongFile(song *songFile) error {
	switch {
	case song.SongID == nil:
		return fmt.Errorf("%w: song_id is null", ErrMissingField)
	case song.Title == nil:
		return fmt.Errorf("%w: title is null", ErrMissingField)
	case song.ArtistID == nil:
		return fmt.Errorf("%w: artist_id is null", ErrMissingField)
	case song.Year == nil:
		return fmt.Errorf("%w: year is null", ErrMissingField)
	case song.Duration == nil:
		return fmt.Errorf("%w: duration is null", ErrMissingField)
	case song.ArtistName == nil:
		return fmt.Errorf("%w: artist_name is null", ErrMissingField)
	}

	return nil
}

// ValidatePlayEvent checks that a NextSong event can produce time and songplay rows.
func ValidatePlayEvent(event *LogEvent) error {
	if event.Timestamp == nil {
		return fmt.Errorf("%w: ts", ErrMissingField)
	}

	return nil
}
