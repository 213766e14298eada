package ingestion

import "context"

// Store defines the writes and the lookup a transformer issues for one file.
//
// The domain package defines this interface to specify what it needs from the
// warehouse without depending on a concrete database. Implementations (Postgres,
// in-memory) live in the internal/storage package.
//
// Implementations must apply the dimension conflict policy themselves:
//   - songs, artists, time: an existing primary key leaves the stored row unchanged
//   - users: an existing primary key updates level (free → paid)
//   - songplays: every call appends a row
type Store interface {
	// InsertSong writes one row to the songs table.
	InsertSong(ctx context.Context, song *SongRecord) error

	// InsertArtist writes one row to the artists table.
	InsertArtist(ctx context.Context, artist *ArtistRecord) error

	// InsertTime writes one row to the time table.
	InsertTime(ctx context.Context, t *TimeRecord) error

	// InsertUser writes one row to the users table.
	InsertUser(ctx context.Context, user *UserRecord) error

	// InsertSongplay writes one row to the songplays fact table.
	InsertSongplay(ctx context.Context, play *SongplayRecord) error

	// LookupSong resolves a play to the song and artist it refers to, matching
	// title, artist name and duration exactly. A nil argument never matches.
	//
	// Returns (match, true, nil) on a hit and (nil, false, nil) when nothing
	// matches. When several rows match, the first row returned by the store wins.
	LookupSong(ctx context.Context, title, artist *string, duration *float64) (*SongMatch, bool, error)
}

// UnitOfWork is a Store whose writes become visible together on Commit.
//
// Rollback after a successful Commit is a no-op, so callers may defer it.
type UnitOfWork interface {
	Store

	Commit() error
	Rollback() error
}

// Beginner opens units of work. One unit of work is opened per input file.
type Beginner interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Transformer turns one input file into rows written through a Store.
type Transformer interface {
	// Name identifies the transformer in logs ("song_data", "log_data").
	Name() string

	// Transform parses the file at path and issues its inserts through store.
	// Errors are returned unchanged to the caller; nothing is retried.
	Transform(ctx context.Context, store Store, path string) (*FileResult, error)
}
