package ingestion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected UserID
		wantErr  bool
	}{
		{name: "string id", input: `"39"`, expected: "39"},
		{name: "integer id", input: `8`, expected: "8"},
		{name: "float id", input: `8.0`, expected: "8"},
		{name: "empty string for logged out users", input: `""`, expected: ""},
		{name: "null", input: `null`, expected: ""},
		{name: "boolean is rejected", input: `true`, wantErr: true},
		{name: "object is rejected", input: `{"id":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id UserID

			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestFileResult_Add(t *testing.T) {
	total := &FileResult{Path: "total"}

	total.Add(&FileResult{Path: "a", Songs: 1, Artists: 1})
	total.Add(&FileResult{Path: "b", Events: 4, Plays: 2, Times: 2, Users: 2, Songplays: 1, Unmatched: 1})
	total.Add(nil)

	assert.Equal(t, &FileResult{
		Path:      "total",
		Events:    4,
		Plays:     2,
		Songs:     1,
		Artists:   1,
		Times:     2,
		Users:     2,
		Songplays: 1,
		Unmatched: 1,
	}, total)
}
