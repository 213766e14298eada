package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sahmedcse/data-engineering/internal/config"
	"github.com/sahmedcse/data-engineering/internal/storage"
	"github.com/sahmedcse/data-engineering/migrations"
)

var (
	errDatabaseURLEmpty    = errors.New("DATABASE_URL cannot be empty")
	errMigrationTableEmpty = errors.New("MIGRATION_TABLE cannot be empty")
)

// Config holds all configuration for the migration tool.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string
	DatabaseURL string

	// MigrationTable is the name of the table to track migrations
	MigrationTable string

	// LogLevel controls migrator log output
	LogLevel slog.Level
}

// LoadConfig loads configuration from environment variables. Without any
// variables set it targets the same local database as the ETL.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    config.GetEnvStr("DATABASE_URL", storage.DefaultDatabaseURL),
		MigrationTable: config.GetEnvStr("MIGRATION_TABLE", migrations.DefaultMigrationTable),
		LogLevel:       config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errDatabaseURLEmpty
	}

	if strings.TrimSpace(c.MigrationTable) == "" {
		return errMigrationTableEmpty
	}

	return nil
}

// String returns a representation of the configuration that is safe to log.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationTable: %s}",
		storage.NewConfig(c.DatabaseURL).MaskDatabaseURL(), c.MigrationTable)
}
