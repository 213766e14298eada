// Package main provides the sparkify ETL: it loads song metadata and event logs
// into the warehouse star schema.
//
// Progress lines go to stdout; structured logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sahmedcse/data-engineering/internal/ingestion"
	"github.com/sahmedcse/data-engineering/internal/pipeline"
	"github.com/sahmedcse/data-engineering/internal/storage"
	"github.com/sahmedcse/data-engineering/migrations"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "sparkify-etl"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg := pipeline.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, cfg, storage.LoadConfig(), logger, os.Stdout)

	stop()

	if err != nil {
		logger.Error("ETL run failed",
			slog.String("error", err.Error()),
			slog.Bool("connection_error", storage.IsConnectionError(err)),
		)
		os.Exit(1)
	}
}

// run executes the song stage and then the log stage against one store.
func run(
	ctx context.Context,
	cfg *pipeline.Config,
	storageConfig *storage.Config,
	logger *slog.Logger,
	stdout io.Writer,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("Starting sparkify ETL",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("song_data_path", cfg.SongDataPath),
		slog.String("log_data_path", cfg.LogDataPath),
		slog.Float64("files_per_second", cfg.FilesPerSecond),
		slog.Bool("dry_run", cfg.DryRun),
	)

	if cfg.DryRun {
		store := storage.NewMemoryStore()

		if err := runStages(ctx, cfg, store, logger, stdout); err != nil {
			return err
		}

		logCounts(logger, store.Counts(), true)

		return nil
	}

	return runWarehouse(ctx, cfg, storageConfig, logger, stdout)
}

func runWarehouse(
	ctx context.Context,
	cfg *pipeline.Config,
	storageConfig *storage.Config,
	logger *slog.Logger,
	stdout io.Writer,
) (err error) {
	if cfg.AutoMigrate {
		if err := storageConfig.Validate(); err != nil {
			return err
		}

		if err := migrations.Apply(ctx, storageConfig.DatabaseURL(), migrations.WithLogger(logger)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	queries, err := storage.LoadQueries(storageConfig.QueriesPath)
	if err != nil {
		return err
	}

	conn, err := storage.NewConnection(storageConfig) //nolint:contextcheck // ping uses its own timeout
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, conn.Close())
	}()

	logger.Info("Connected to warehouse",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.String("queries_path", storageConfig.QueriesPath),
	)

	store, err := storage.NewWarehouseStore(conn,
		storage.WithQueries(queries),
		storage.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if err := runStages(ctx, cfg, store, logger, stdout); err != nil {
		return err
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		return err
	}

	logCounts(logger, counts, false)

	return nil
}

// runStages loads song data first so that the log stage can resolve plays against it.
func runStages(
	ctx context.Context,
	cfg *pipeline.Config,
	store ingestion.Beginner,
	logger *slog.Logger,
	stdout io.Writer,
) error {
	driver, err := pipeline.NewDriver(store, stdout,
		pipeline.WithLogger(logger),
		pipeline.WithRateLimit(cfg.FilesPerSecond),
	)
	if err != nil {
		return err
	}

	stages := []struct {
		root        string
		transformer ingestion.Transformer
	}{
		{cfg.SongDataPath, ingestion.NewSongTransformer(logger)},
		{cfg.LogDataPath, ingestion.NewLogTransformer(logger)},
	}

	for _, stage := range stages {
		if _, err := driver.Run(ctx, stage.root, stage.transformer); err != nil {
			return err
		}
	}

	return nil
}

func logCounts(logger *slog.Logger, counts *storage.TableCounts, dryRun bool) {
	logger.Info("ETL run complete",
		slog.Bool("dry_run", dryRun),
		slog.Int("songs", counts.Songs),
		slog.Int("artists", counts.Artists),
		slog.Int("time", counts.Time),
		slog.Int("users", counts.Users),
		slog.Int("songplays", counts.Songplays),
	)
}
