// Package ingestion provides the song and event-log domain models and the
// transformers that turn raw JSON files into rows for the star schema.
package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PageNextSong is the page value of a log event that records a song play.
const PageNextSong = "NextSong"

type (
	// SongRecord is one row of the songs dimension table.
	SongRecord struct {
		SongID   string
		Title    string
		ArtistID string
		Year     int
		Duration float64
	}

	// ArtistRecord is one row of the artists dimension table.
	// Location, Latitude and Longitude are frequently absent from song metadata.
	ArtistRecord struct {
		ArtistID  string
		Name      string
		Location  *string
		Latitude  *float64
		Longitude *float64
	}

	// LogEvent is one line of an application event log.
	//
	// Only the fields the star schema needs are decoded; the rest of the line
	// (auth, method, status, registration, itemInSession) is ignored.
	LogEvent struct {
		// Timestamp is the event time in milliseconds since the Unix epoch.
		// Nil when the line carries no ts value.
		Timestamp *int64
		UserID    UserID
		FirstName *string
		LastName  *string
		Gender    *string
		Level     string
		// Song, Artist and Length identify the played track; they are nil for
		// events that are not song plays and sometimes for plays themselves.
		Song      *string
		Artist    *string
		Length    *float64
		SessionID int64
		Location  *string
		UserAgent *string
		Page      string
	}

	// TimeRecord is one row of the time dimension table. Every field is derived
	// from StartTime in UTC.
	TimeRecord struct {
		StartTime time.Time
		Hour      int
		Day       int
		// Week is the ISO 8601 week of the year.
		Week  int
		Month int
		Year  int
		// Weekday counts from Monday=0 to Sunday=6.
		Weekday int
	}

	// UserRecord is one row of the users dimension table.
	UserRecord struct {
		UserID    UserID
		FirstName *string
		LastName  *string
		Gender    *string
		Level     string
	}

	// SongplayRecord is one row of the songplays fact table.
	SongplayRecord struct {
		StartTime time.Time
		UserID    UserID
		Level     string
		SongID    string
		ArtistID  string
		SessionID int64
		Location  *string
		UserAgent *string
	}

	// SongMatch is the result of resolving a play's (title, artist, duration)
	// against the loaded songs and artists.
	SongMatch struct {
		SongID   string
		ArtistID string
	}

	// UserID identifies an application user. Event logs carry it either as a
	// JSON string or as a number; both decode to the same decimal string.
	// Logged-out events carry an empty id.
	UserID string

	// FileResult counts the rows a transformer issued for one file.
	FileResult struct {
		Path      string
		Events    int // lines decoded (log files only)
		Plays     int // NextSong events retained (log files only)
		Songs     int
		Artists   int
		Times     int
		Users     int
		Songplays int
		// Unmatched counts plays whose track could not be resolved and whose
		// songplay row was therefore not written.
		Unmatched int
	}
)

// UnmarshalJSON accepts a string, an integral number or null.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*u = ""

		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*u = UserID(s)

		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("userId must be a string or number: %w", err)
		}

		if i, err := n.Int64(); err == nil {
			*u = UserID(strconv.FormatInt(i, 10))

			return nil
		}

		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("userId must be a string or number: %w", err)
		}

		*u = UserID(strconv.FormatFloat(f, 'f', -1, 64))

		return nil
	}
}

// String returns the id as stored in the users table.
func (u UserID) String() string {
	return string(u)
}

// Add accumulates the counts of other into r. Path is left untouched.
func (r *FileResult) Add(other *FileResult) {
	if other == nil {
		return
	}

	r.Events += other.Events
	r.Plays += other.Plays
	r.Songs += other.Songs
	r.Artists += other.Artists
	r.Times += other.Times
	r.Users += other.Users
	r.Songplays += other.Songplays
	r.Unmatched += other.Unmatched
}
