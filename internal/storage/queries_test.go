package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQueryFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefaultQueries(t *testing.T) {
	queries := DefaultQueries()
	require.NoError(t, queries.Validate())

	assert.Contains(t, queries.SongInsert, "ON CONFLICT (song_id) DO NOTHING")
	assert.Contains(t, queries.ArtistInsert, "ON CONFLICT (artist_id) DO NOTHING")
	assert.Contains(t, queries.TimeInsert, "ON CONFLICT (start_time) DO NOTHING")
	assert.Contains(t, queries.UserInsert, "DO UPDATE SET level = EXCLUDED.level")
	assert.NotContains(t, queries.SongplayInsert, "ON CONFLICT")
	assert.Contains(t, queries.SongSelect, "$3")
}

func TestLoadQueries_EmptyPathReturnsDefaults(t *testing.T) {
	queries, err := LoadQueries("  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultQueries(), queries)
}

func TestLoadQueries_PartialOverride(t *testing.T) {
	path := writeQueryFile(t, `
song_select: |
  SELECT s.song_id, s.artist_id FROM songs s
  JOIN artists a ON a.artist_id = s.artist_id
  WHERE s.title = $1 AND a.name = $2 AND abs(s.duration - $3) < 0.001
user_insert: ""
`)

	queries, err := LoadQueries(path)
	require.NoError(t, err)

	defaults := DefaultQueries()

	assert.True(t, strings.Contains(queries.SongSelect, "abs(s.duration - $3)"))
	assert.Equal(t, defaults.SongInsert, queries.SongInsert)
	assert.Equal(t, defaults.UserInsert, queries.UserInsert, "blank overrides keep the default")
}

func TestLoadQueries_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "absent.yaml")
			},
		},
		{
			name: "malformed yaml",
			path: func(t *testing.T) string {
				t.Helper()

				return writeQueryFile(t, "song_insert: [unterminated")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries, err := LoadQueries(tt.path(t))
			require.Error(t, err)
			assert.Nil(t, queries)
		})
	}
}

func TestQueries_Validate(t *testing.T) {
	queries := DefaultQueries()
	queries.SongplayInsert = " \n\t"

	err := queries.Validate()
	require.ErrorIs(t, err, ErrQueryEmpty)
	assert.Contains(t, err.Error(), "songplay_insert")
}
