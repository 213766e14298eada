package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sahmedcse/data-engineering/internal/ingestion"
)

var (
	_ ingestion.Beginner   = (*MemoryStore)(nil)
	_ ingestion.UnitOfWork = (*memoryUnitOfWork)(nil)
)

type (
	// MemoryStore keeps the star schema in memory with the same conflict policy
	// as the default SQL statements. It backs dry runs and tests.
	MemoryStore struct {
		songs     map[string]ingestion.SongRecord
		songOrder []string // insertion order, used for lookup tie-breaks
		artists   map[string]ingestion.ArtistRecord
		times     map[time.Time]ingestion.TimeRecord
		users     map[ingestion.UserID]ingestion.UserRecord
		songplays []StoredSongplay
		commits   int
		rollbacks int
		// mutex protects concurrent access to all tables and counters
		mutex sync.RWMutex
	}

	// StoredSongplay is a songplays row with its generated key.
	StoredSongplay struct {
		SongplayID int
		ingestion.SongplayRecord
	}

	// memoryUnitOfWork stages writes until Commit.
	memoryUnitOfWork struct {
		store     *MemoryStore
		songs     []ingestion.SongRecord
		artists   []ingestion.ArtistRecord
		times     []ingestion.TimeRecord
		users     []ingestion.UserRecord
		songplays []ingestion.SongplayRecord
		closed    bool
	}
)

// NewMemoryStore creates an empty in-memory warehouse.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		songs:   make(map[string]ingestion.SongRecord),
		artists: make(map[string]ingestion.ArtistRecord),
		times:   make(map[time.Time]ingestion.TimeRecord),
		users:   make(map[ingestion.UserID]ingestion.UserRecord),
	}
}

// Begin implements ingestion.Beginner.
func (s *MemoryStore) Begin(ctx context.Context) (ingestion.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &memoryUnitOfWork{store: s}, nil
}

// Songs returns the songs table ordered by song_id.
func (s *MemoryStore) Songs() []ingestion.SongRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]ingestion.SongRecord, 0, len(s.songs))
	for _, song := range s.songs {
		out = append(out, song)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SongID < out[j].SongID })

	return out
}

// Artists returns the artists table ordered by artist_id.
func (s *MemoryStore) Artists() []ingestion.ArtistRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]ingestion.ArtistRecord, 0, len(s.artists))
	for _, artist := range s.artists {
		out = append(out, artist)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ArtistID < out[j].ArtistID })

	return out
}

// Times returns the time table ordered by start_time.
func (s *MemoryStore) Times() []ingestion.TimeRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]ingestion.TimeRecord, 0, len(s.times))
	for _, t := range s.times {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })

	return out
}

// Users returns the users table ordered by user_id.
func (s *MemoryStore) Users() []ingestion.UserRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]ingestion.UserRecord, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })

	return out
}

// Songplays returns the songplays table in insertion order.
func (s *MemoryStore) Songplays() []StoredSongplay {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]StoredSongplay, len(s.songplays))
	copy(out, s.songplays)

	return out
}

// Counts returns the row count of every table.
func (s *MemoryStore) Counts() *TableCounts {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return &TableCounts{
		Songs:     len(s.songs),
		Artists:   len(s.artists),
		Time:      len(s.times),
		Users:     len(s.users),
		Songplays: len(s.songplays),
	}
}

// Commits returns how many units of work have been committed.
func (s *MemoryStore) Commits() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.commits
}

// Rollbacks returns how many units of work have been rolled back before commit.
func (s *MemoryStore) Rollbacks() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.rollbacks
}

func (u *memoryUnitOfWork) InsertSong(_ context.Context, song *ingestion.SongRecord) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	u.songs = append(u.songs, *song)

	return nil
}

func (u *memoryUnitOfWork) InsertArtist(_ context.Context, artist *ingestion.ArtistRecord) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	u.artists = append(u.artists, *artist)

	return nil
}

func (u *memoryUnitOfWork) InsertTime(_ context.Context, t *ingestion.TimeRecord) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	u.times = append(u.times, *t)

	return nil
}

func (u *memoryUnitOfWork) InsertUser(_ context.Context, user *ingestion.UserRecord) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	u.users = append(u.users, *user)

	return nil
}

func (u *memoryUnitOfWork) InsertSongplay(_ context.Context, play *ingestion.SongplayRecord) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	u.songplays = append(u.songplays, *play)

	return nil
}

// LookupSong sees committed rows and the rows staged by this unit of work,
// like a query inside a transaction.
func (u *memoryUnitOfWork) LookupSong(
	_ context.Context,
	title, artist *string,
	duration *float64,
) (*ingestion.SongMatch, bool, error) {
	if u.closed {
		return nil, false, ErrUnitOfWorkClosed
	}

	if title == nil || artist == nil || duration == nil {
		return nil, false, nil
	}

	u.store.mutex.RLock()
	defer u.store.mutex.RUnlock()

	artistName := func(artistID string) (string, bool) {
		if a, ok := u.store.artists[artistID]; ok {
			return a.Name, true
		}

		for i := range u.artists {
			if u.artists[i].ArtistID == artistID {
				return u.artists[i].Name, true
			}
		}

		return "", false
	}

	matches := func(song ingestion.SongRecord) bool {
		if song.Title != *title || song.Duration != *duration {
			return false
		}

		name, ok := artistName(song.ArtistID)

		return ok && name == *artist
	}

	for _, songID := range u.store.songOrder {
		if song := u.store.songs[songID]; matches(song) {
			return &ingestion.SongMatch{SongID: song.SongID, ArtistID: song.ArtistID}, true, nil
		}
	}

	for _, song := range u.songs {
		if _, committed := u.store.songs[song.SongID]; committed {
			continue
		}

		if matches(song) {
			return &ingestion.SongMatch{SongID: song.SongID, ArtistID: song.ArtistID}, true, nil
		}
	}

	return nil, false, nil
}

// Commit applies the staged rows with the dimension conflict policy.
func (u *memoryUnitOfWork) Commit() error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	u.closed = true

	s := u.store

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, song := range u.songs {
		if _, exists := s.songs[song.SongID]; !exists {
			s.songs[song.SongID] = song
			s.songOrder = append(s.songOrder, song.SongID)
		}
	}

	for _, artist := range u.artists {
		if _, exists := s.artists[artist.ArtistID]; !exists {
			s.artists[artist.ArtistID] = artist
		}
	}

	for _, t := range u.times {
		if _, exists := s.times[t.StartTime]; !exists {
			s.times[t.StartTime] = t
		}
	}

	for _, user := range u.users {
		if existing, exists := s.users[user.UserID]; exists {
			existing.Level = user.Level
			s.users[user.UserID] = existing

			continue
		}

		s.users[user.UserID] = user
	}

	for _, play := range u.songplays {
		s.songplays = append(s.songplays, StoredSongplay{
			SongplayID:     len(s.songplays) + 1,
			SongplayRecord: play,
		})
	}

	s.commits++

	return nil
}

// Rollback discards the staged rows. Safe to call after Commit.
func (u *memoryUnitOfWork) Rollback() error {
	if u.closed {
		return nil
	}

	u.closed = true

	u.store.mutex.Lock()
	u.store.rollbacks++
	u.store.mutex.Unlock()

	return nil
}
