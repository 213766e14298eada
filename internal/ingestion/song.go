package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// songFile mirrors one song metadata document. Pointers distinguish null from zero.
type songFile struct {
	SongID          *string  `json:"song_id"`          //nolint:tagliatelle
	Title           *string  `json:"title"`            //nolint:tagliatelle
	ArtistID        *string  `json:"artist_id"`        //nolint:tagliatelle
	Year            *int     `json:"year"`             //nolint:tagliatelle
	Duration        *float64 `json:"duration"`         //nolint:tagliatelle
	ArtistName      *string  `json:"artist_name"`      //nolint:tagliatelle
	ArtistLocation  *string  `json:"artist_location"`  //nolint:tagliatelle
	ArtistLatitude  *float64 `json:"artist_latitude"`  //nolint:tagliatelle
	ArtistLongitude *float64 `json:"artist_longitude"` //nolint:tagliatelle
}

// ParseSongFile decodes a song metadata file into its song and artist rows.
// Values are copied verbatim. All failures wrap ErrParse.
func ParseSongFile(path string) (*SongRecord, *ArtistRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from directory discovery
	if err != nil {
		return nil, nil, fmt.Errorf("read song file %s: %w", path, err)
	}

	song, artist, err := parseSong(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	return song, artist, nil
}

func parseSong(data []byte) (*SongRecord, *ArtistRecord, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, nil, err
	}

	// A top-level null decodes into a nil map without error.
	if object == nil {
		return nil, nil, ErrNotObject
	}

	if err := requireKeys(object, songFileKeys); err != nil {
		return nil, nil, err
	}

	var raw songFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	if err := validateSongFile(&raw); err != nil {
		return nil, nil, err
	}

	song := &SongRecord{
		SongID:   *raw.SongID,
		Title:    *raw.Title,
		ArtistID: *raw.ArtistID,
		Year:     *raw.Year,
		Duration: *raw.Duration,
	}

	artist := &ArtistRecord{
		ArtistID:  *raw.ArtistID,
		Name:      *raw.ArtistName,
		Location:  raw.ArtistLocation,
		Latitude:  raw.ArtistLatitude,
		Longitude: raw.ArtistLongitude,
	}

	return song, artist, nil
}

// SongTransformer loads song metadata files into the songs and artists tables.
type SongTransformer struct {
	logger *slog.Logger
}

// NewSongTransformer creates a SongTransformer. A nil logger uses slog.Default().
func NewSongTransformer(logger *slog.Logger) *SongTransformer {
	if logger == nil {
		logger = slog.Default()
	}

	return &SongTransformer{logger: logger}
}

// Name implements Transformer.
func (t *SongTransformer) Name() string {
	return "song_data"
}

// Transform implements Transformer: one song row and one artist row per file.
func (t *SongTransformer) Transform(ctx context.Context, store Store, path string) (*FileResult, error) {
	song, artist, err := ParseSongFile(path)
	if err != nil {
		return nil, err
	}

	result := &FileResult{Path: path}

	if err := store.InsertSong(ctx, song); err != nil {
		return nil, fmt.Errorf("insert song %s: %w", song.SongID, err)
	}

	result.Songs++

	if err := store.InsertArtist(ctx, artist); err != nil {
		return nil, fmt.Errorf("insert artist %s: %w", artist.ArtistID, err)
	}

	result.Artists++

	t.logger.Debug("song file transformed",
		slog.String("file", path),
		slog.String("song_id", song.SongID),
		slog.String("artist_id", artist.ArtistID),
	)

	return result, nil
}
