package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	songS1 = `{"num_songs": 1, "artist_id": "A1", "artist_latitude": null, "artist_longitude": null, ` +
		`"artist_location": "", "artist_name": "Art1", "song_id": "S1", "title": "T1", ` +
		`"duration": 180.0, "year": 2000}`

	playT1 = `{"artist":"Art1","auth":"Logged In","firstName":"Kaylee","gender":"F","itemInSession":0,` +
		`"lastName":"Summers","length":180.0,"level":"free","location":"Phoenix-Mesa-Scottsdale, AZ",` +
		`"method":"PUT","page":"NextSong","registration":1540344794796.0,"sessionId":139,"song":"T1",` +
		`"status":200,"ts":1541106106796,"userAgent":"Mozilla/5.0","userId":"8"}`

	homePage = `{"artist":null,"auth":"Logged In","firstName":"Kaylee","gender":"F","itemInSession":1,` +
		`"lastName":"Summers","length":null,"level":"free","location":"Phoenix-Mesa-Scottsdale, AZ",` +
		`"method":"GET","page":"Home","registration":1540344794796.0,"sessionId":139,"song":null,` +
		`"status":200,"ts":1541106132796,"userAgent":"Mozilla/5.0","userId":"8"}`

	playTimestamp = int64(1541106106796)
)

// writeTree creates files (relative path -> content) under a new temp directory.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

// songCatalog returns the layout of the song_data fixture used by the end-to-end tests.
func songCatalog() map[string]string {
	return map[string]string{
		"A/A/A/S1.json": songS1,
	}
}

// eventLogs returns the layout of the log_data fixture used by the end-to-end tests.
func eventLogs() map[string]string {
	return map[string]string{
		"2018/11/2018-11-01-events.json": homePage + "\n" + playT1 + "\n",
		"2018/11/README.txt":             "not an event log",
	}
}
