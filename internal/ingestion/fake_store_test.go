package ingestion

import (
	"context"
	"errors"
	"fmt"
)

var errStoreDown = errors.New("store down")

// recordingStore captures every call made by a transformer, in order.
type recordingStore struct {
	calls     []string
	songs     []SongRecord
	artists   []ArtistRecord
	times     []TimeRecord
	users     []UserRecord
	songplays []SongplayRecord
	lookups   [][3]any

	// catalog maps "title|artist|duration" to a match.
	catalog map[string]SongMatch
	// failOn makes the named call return errStoreDown.
	failOn string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{catalog: make(map[string]SongMatch)}
}

func (s *recordingStore) record(call string) error {
	s.calls = append(s.calls, call)
	if s.failOn == call {
		return errStoreDown
	}

	return nil
}

func (s *recordingStore) InsertSong(_ context.Context, song *SongRecord) error {
	if err := s.record("song"); err != nil {
		return err
	}

	s.songs = append(s.songs, *song)

	return nil
}

func (s *recordingStore) InsertArtist(_ context.Context, artist *ArtistRecord) error {
	if err := s.record("artist"); err != nil {
		return err
	}

	s.artists = append(s.artists, *artist)

	return nil
}

func (s *recordingStore) InsertTime(_ context.Context, t *TimeRecord) error {
	if err := s.record("time"); err != nil {
		return err
	}

	s.times = append(s.times, *t)

	return nil
}

func (s *recordingStore) InsertUser(_ context.Context, user *UserRecord) error {
	if err := s.record("user"); err != nil {
		return err
	}

	s.users = append(s.users, *user)

	return nil
}

func (s *recordingStore) InsertSongplay(_ context.Context, play *SongplayRecord) error {
	if err := s.record("songplay"); err != nil {
		return err
	}

	s.songplays = append(s.songplays, *play)

	return nil
}

func (s *recordingStore) LookupSong(
	_ context.Context,
	title, artist *string,
	duration *float64,
) (*SongMatch, bool, error) {
	if err := s.record("lookup"); err != nil {
		return nil, false, err
	}

	s.lookups = append(s.lookups, [3]any{title, artist, duration})

	if title == nil || artist == nil || duration == nil {
		return nil, false, nil
	}

	match, ok := s.catalog[catalogKey(*title, *artist, *duration)]
	if !ok {
		return nil, false, nil
	}

	return &match, true, nil
}

func catalogKey(title, artist string, duration float64) string {
	return fmt.Sprintf("%s|%s|%v", title, artist, duration)
}
