package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sahmedcse/data-engineering/internal/config"
)

const (
	defaultSongDataPath = "data/song_data"
	defaultLogDataPath  = "data/log_data"
)

var (
	// ErrDataPathEmpty is returned when a stage has no data directory configured.
	ErrDataPathEmpty = errors.New("data path cannot be empty")

	// ErrInvalidRate is returned for a negative files-per-second limit.
	ErrInvalidRate = errors.New("files per second cannot be negative")
)

// Config holds the settings of one ETL run.
type Config struct {
	SongDataPath   string     // root of the song metadata files
	LogDataPath    string     // root of the event log files
	FilesPerSecond float64    // throttle across both stages; 0 disables it
	AutoMigrate    bool       // apply embedded migrations before loading
	DryRun         bool       // load into the in-memory store instead of PostgreSQL
	LogLevel       slog.Level // minimum level written to stderr
}

// LoadConfig loads the run configuration from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		SongDataPath:   config.GetEnvStr("SONG_DATA_PATH", defaultSongDataPath),
		LogDataPath:    config.GetEnvStr("LOG_DATA_PATH", defaultLogDataPath),
		FilesPerSecond: config.GetEnvFloat("ETL_FILES_PER_SECOND", 0),
		AutoMigrate:    config.GetEnvBool("ETL_AUTO_MIGRATE", false),
		DryRun:         config.GetEnvBool("ETL_DRY_RUN", false),
		LogLevel:       config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Validate checks that the run configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SongDataPath) == "" {
		return fmt.Errorf("%w: SONG_DATA_PATH", ErrDataPathEmpty)
	}

	if strings.TrimSpace(c.LogDataPath) == "" {
		return fmt.Errorf("%w: LOG_DATA_PATH", ErrDataPathEmpty)
	}

	if c.FilesPerSecond < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, c.FilesPerSecond)
	}

	return nil
}
