package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
)

const (
	initialLineBuffer = 64 * 1024
	// maxLineBytes bounds a single log line.
	maxLineBytes = 1024 * 1024
)

// logLine mirrors one event log line.
type logLine struct {
	Artist    *string     `json:"artist"`
	FirstName *string     `json:"firstName"`
	Gender    *string     `json:"gender"`
	LastName  *string     `json:"lastName"`
	Length    *float64    `json:"length"`
	Level     *string     `json:"level"`
	Location  *string     `json:"location"`
	Page      *string     `json:"page"`
	SessionID *int64      `json:"sessionId"`
	Song      *string     `json:"song"`
	TS        json.Number `json:"ts"`
	UserAgent *string     `json:"userAgent"`
	UserID    UserID      `json:"userId"`
}

// ParseLogFile decodes a newline-delimited JSON event log. Blank lines are
// skipped; any other undecodable line fails the whole file with ErrParse.
func ParseLogFile(path string) ([]LogEvent, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from directory discovery
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	var events []LogEvent

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event, err := parseLogLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %w", ErrParse, path, lineNo, err)
		}

		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	return events, nil
}

func parseLogLine(line []byte) (LogEvent, error) {
	if line[0] != '{' {
		return LogEvent{}, ErrNotObject
	}

	var raw logLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return LogEvent{}, err
	}

	event := LogEvent{
		UserID:    raw.UserID,
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		Gender:    raw.Gender,
		Song:      raw.Song,
		Artist:    raw.Artist,
		Length:    raw.Length,
		Location:  raw.Location,
		UserAgent: raw.UserAgent,
	}

	if raw.Page != nil {
		event.Page = *raw.Page
	}

	if raw.Level != nil {
		event.Level = *raw.Level
	}

	if raw.SessionID != nil {
		event.SessionID = *raw.SessionID
	}

	if raw.TS != "" {
		ts, err := epochMillis(raw.TS)
		if err != nil {
			return LogEvent{}, fmt.Errorf("ts: %w", err)
		}

		event.Timestamp = &ts
	}

	return event, nil
}

// epochMillis accepts integral numbers and floats such as 1541440146796.0.
func epochMillis(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}

	f, err := n.Float64()
	if err != nil {
		return 0, err
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("timestamp %s out of range", n)
	}

	return int64(f), nil
}

// FilterPlays keeps only events whose page is exactly NextSong, preserving order.
func FilterPlays(events []LogEvent) []LogEvent {
	plays := make([]LogEvent, 0, len(events))

	for i := range events {
		if events[i].Page == PageNextSong {
			plays = append(plays, events[i])
		}
	}

	return plays
}

// NewUserRecord projects the user columns of a play event.
func NewUserRecord(event *LogEvent) UserRecord {
	return UserRecord{
		UserID:    event.UserID,
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Gender:    event.Gender,
		Level:     event.Level,
	}
}

// NewSongplayRecord builds the fact row for a play resolved to match.
func NewSongplayRecord(event *LogEvent, startTime TimeRecord, match *SongMatch) SongplayRecord {
	return SongplayRecord{
		StartTime: startTime.StartTime,
		UserID:    event.UserID,
		Level:     event.Level,
		SongID:    match.SongID,
		ArtistID:  match.ArtistID,
		SessionID: event.SessionID,
		Location:  event.Location,
		UserAgent: event.UserAgent,
	}
}

// LogTransformer loads event log files into the time, users and songplays tables.
type LogTransformer struct {
	logger *slog.Logger
}

// NewLogTransformer creates a LogTransformer. A nil logger uses slog.Default().
func NewLogTransformer(logger *slog.Logger) *LogTransformer {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogTransformer{logger: logger}
}

// Name implements Transformer.
func (t *LogTransformer) Name() string {
	return "log_data"
}

// Transform implements Transformer.
//
// Only NextSong events are used. Rows are issued in three passes over those
// events: every time row, then every user row, then the songplay rows. A play
// whose track cannot be resolved gets no songplay row and is counted as
// unmatched; that is not an error.
func (t *LogTransformer) Transform(ctx context.Context, store Store, path string) (*FileResult, error) {
	events, err := ParseLogFile(path)
	if err != nil {
		return nil, err
	}

	plays := FilterPlays(events)
	result := &FileResult{Path: path, Events: len(events), Plays: len(plays)}

	times := make([]TimeRecord, len(plays))
	for i := range plays {
		if err := ValidatePlayEvent(&plays[i]); err != nil {
			return nil, fmt.Errorf("%w: %s: play %d: %w", ErrParse, path, i+1, err)
		}

		times[i] = NewTimeRecord(*plays[i].Timestamp)
	}

	for i := range times {
		if err := store.InsertTime(ctx, &times[i]); err != nil {
			return nil, fmt.Errorf("insert time %s: %w", times[i].StartTime, err)
		}

		result.Times++
	}

	for i := range plays {
		user := NewUserRecord(&plays[i])
		if err := store.InsertUser(ctx, &user); err != nil {
			return nil, fmt.Errorf("insert user %q: %w", user.UserID, err)
		}

		result.Users++
	}

	for i := range plays {
		play := &plays[i]

		match, found, err := store.LookupSong(ctx, play.Song, play.Artist, play.Length)
		if err != nil {
			return nil, fmt.Errorf("lookup song: %w", err)
		}

		if !found {
			result.Unmatched++

			t.logger.Debug("no song match for play",
				slog.String("file", path),
				slog.String("user_id", play.UserID.String()),
				slog.Int64("session_id", play.SessionID),
			)

			continue
		}

		songplay := NewSongplayRecord(play, times[i], match)
		if err := store.InsertSongplay(ctx, &songplay); err != nil {
			return nil, fmt.Errorf("insert songplay for %s: %w", match.SongID, err)
		}

		result.Songplays++
	}

	t.logger.Debug("log file transformed",
		slog.String("file", path),
		slog.Int("events", result.Events),
		slog.Int("plays", result.Plays),
		slog.Int("songplays", result.Songplays),
		slog.Int("unmatched", result.Unmatched),
	)

	return result, nil
}
