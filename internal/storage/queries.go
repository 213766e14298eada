package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrQueryEmpty is returned when a statement in the query set is blank.
var ErrQueryEmpty = errors.New("query cannot be empty")

// Queries holds the parameterized statements issued by the warehouse store.
// Placeholders use PostgreSQL positional syntax ($1, $2, ...) and the argument
// order is fixed by the store, not by the statement text.
//
//nolint:tagliatelle // snake_case is intentional for YAML config files
type Queries struct {
	// SongInsert receives song_id, title, artist_id, year, duration.
	SongInsert string `yaml:"song_insert"`

	// ArtistInsert receives artist_id, name, location, latitude, longitude.
	ArtistInsert string `yaml:"artist_insert"`

	// TimeInsert receives start_time, hour, day, week, month, year, weekday.
	TimeInsert string `yaml:"time_insert"`

	// UserInsert receives user_id, first_name, last_name, gender, level.
	UserInsert string `yaml:"user_insert"`

	// SongplayInsert receives start_time, user_id, level, song_id, artist_id,
	// session_id, location, user_agent.
	SongplayInsert string `yaml:"songplay_insert"`

	// SongSelect receives title, artist name, duration and returns song_id, artist_id.
	SongSelect string `yaml:"song_select"`
}

// DefaultQueries returns the built-in statements for the schema in migrations/.
//
// Dimension inserts are idempotent: songs, artists and time ignore conflicting
// keys; users keep the latest level.
func DefaultQueries() *Queries {
	return &Queries{
		SongInsert: `
			INSERT INTO songs (song_id, title, artist_id, year, duration)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (song_id) DO NOTHING`,
		ArtistInsert: `
			INSERT INTO artists (artist_id, name, location, latitude, longitude)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (artist_id) DO NOTHING`,
		TimeInsert: `
			INSERT INTO time (start_time, hour, day, week, month, year, weekday)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (start_time) DO NOTHING`,
		UserInsert: `
			INSERT INTO users (user_id, first_name, last_name, gender, level)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO UPDATE SET level = EXCLUDED.level`,
		SongplayInsert: `
			INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		SongSelect: `
			SELECT s.song_id, a.artist_id
			FROM songs s
			JOIN artists a ON s.artist_id = a.artist_id
			WHERE s.title = $1 AND a.name = $2 AND s.duration = $3`,
	}
}

// LoadQueries returns DefaultQueries overlaid with the statements found in the
// YAML file at path. Keys left out of the file keep their default.
//
// An empty path returns the defaults. Unlike optional settings, a query file
// that is named but missing or malformed is an error: running with the wrong
// SQL would load the wrong data.
func LoadQueries(path string) (*Queries, error) {
	queries := DefaultQueries()

	if strings.TrimSpace(path) == "" {
		return queries, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		return nil, fmt.Errorf("failed to read query file %s: %w", path, err)
	}

	var overrides Queries
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse query file %s: %w", path, err)
	}

	queries.merge(&overrides)

	if err := queries.Validate(); err != nil {
		return nil, err
	}

	return queries, nil
}

// Validate checks that every statement is set.
func (q *Queries) Validate() error {
	statements := []struct {
		name  string
		value string
	}{
		{"song_insert", q.SongInsert},
		{"artist_insert", q.ArtistInsert},
		{"time_insert", q.TimeInsert},
		{"user_insert", q.UserInsert},
		{"songplay_insert", q.SongplayInsert},
		{"song_select", q.SongSelect},
	}

	for _, stmt := range statements {
		if strings.TrimSpace(stmt.value) == "" {
			return fmt.Errorf("%w: %s", ErrQueryEmpty, stmt.name)
		}
	}

	return nil
}

func (q *Queries) merge(overrides *Queries) {
	overlay := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}

	overlay(&q.SongInsert, overrides.SongInsert)
	overlay(&q.ArtistInsert, overrides.ArtistInsert)
	overlay(&q.TimeInsert, overrides.TimeInsert)
	overlay(&q.UserInsert, overrides.UserInsert)
	overlay(&q.SongplayInsert, overrides.SongplayInsert)
	overlay(&q.SongSelect, overrides.SongSelect)
}
