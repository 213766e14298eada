// Package pipeline drives the per-file load of a data directory into the warehouse.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sahmedcse/data-engineering/internal/discovery"
	"github.com/sahmedcse/data-engineering/internal/ingestion"
)

// ErrNoStore is returned when a driver is created without a store.
var ErrNoStore = errors.New("pipeline store cannot be nil")

type (
	// Driver loads every JSON file under a root directory, one unit of work per file.
	//
	// Files are processed strictly in discovery order on the caller's goroutine.
	// The first failure aborts the run: the failing file is rolled back, files
	// before it stay committed and files after it are not touched.
	Driver struct {
		store   ingestion.Beginner
		out     io.Writer
		logger  *slog.Logger
		limiter *rate.Limiter
		runID   string
	}

	// Option configures optional Driver behavior.
	Option func(*Driver)

	// Summary describes one Run.
	Summary struct {
		Stage     string
		Root      string
		Files     int // files discovered
		Processed int // files committed
		Totals    ingestion.FileResult
		Elapsed   time.Duration
	}
)

// WithLogger sets the driver logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithRateLimit caps how many files are started per second. Zero or less disables the limit.
func WithRateLimit(filesPerSecond float64) Option {
	return func(d *Driver) {
		if filesPerSecond <= 0 {
			d.limiter = nil

			return
		}

		d.limiter = rate.NewLimiter(rate.Limit(filesPerSecond), 1)
	}
}

// WithRunID overrides the generated run id.
func WithRunID(runID string) Option {
	return func(d *Driver) {
		d.runID = runID
	}
}

// NewDriver creates a driver that opens units of work on store and writes
// progress lines to out. An untyped nil out discards progress; a nil pointer
// wrapped in an io.Writer (such as a nil *bytes.Buffer) is not detected.
func NewDriver(store ingestion.Beginner, out io.Writer, opts ...Option) (*Driver, error) {
	if store == nil {
		return nil, ErrNoStore
	}

	if out == nil {
		out = io.Discard
	}

	d := &Driver{
		store:  store,
		out:    out,
		logger: slog.Default(),
		runID:  uuid.NewString(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With(slog.String("run_id", d.runID))

	return d, nil
}

// RunID identifies this driver's log lines.
func (d *Driver) RunID() string {
	return d.runID
}

// Run loads every .json file under root with transformer.
//
// Progress is written to the driver's output as "<n> files found in <root>"
// followed by "<i>/<n> files processed." after each commit. The returned summary
// covers the files committed so far, also when an error is returned.
func (d *Driver) Run(ctx context.Context, root string, transformer ingestion.Transformer) (*Summary, error) {
	started := time.Now()
	stage := transformer.Name()
	logger := d.logger.With(slog.String("stage", stage))

	summary := &Summary{Stage: stage, Root: root}

	files, err := discovery.FindFiles(root, discovery.JSONExtension)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", stage, err)
	}

	summary.Files = len(files)

	_, _ = fmt.Fprintf(d.out, "%d files found in %s\n", len(files), root)

	logger.Info("files discovered", slog.String("path", root), slog.Int("files", len(files)))

	for i, path := range files {
		if err := d.wait(ctx); err != nil {
			summary.Elapsed = time.Since(started)

			return summary, fmt.Errorf("%s: stopped after %d/%d files: %w", stage, i, len(files), err)
		}

		result, err := d.processFile(ctx, transformer, path)
		if err != nil {
			summary.Elapsed = time.Since(started)

			logger.Error("file failed",
				slog.String("file", path),
				slog.Int("index", i+1),
				slog.Int("total", len(files)),
				slog.String("error", err.Error()),
			)

			return summary, fmt.Errorf("%s: %s: %w", stage, path, err)
		}

		summary.Processed++
		summary.Totals.Add(result)

		_, _ = fmt.Fprintf(d.out, "%d/%d files processed.\n", i+1, len(files))
	}

	summary.Elapsed = time.Since(started)

	logger.Info("stage complete",
		slog.String("path", root),
		slog.Int("files", summary.Files),
		slog.Int("songs", summary.Totals.Songs),
		slog.Int("artists", summary.Totals.Artists),
		slog.Int("times", summary.Totals.Times),
		slog.Int("users", summary.Totals.Users),
		slog.Int("songplays", summary.Totals.Songplays),
		slog.Int("unmatched", summary.Totals.Unmatched),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

func (d *Driver) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d.limiter == nil {
		return nil
	}

	return d.limiter.Wait(ctx)
}

// processFile runs transformer on one file inside its own unit of work.
func (d *Driver) processFile(
	ctx context.Context,
	transformer ingestion.Transformer,
	path string,
) (*ingestion.FileResult, error) {
	uow, err := d.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rbErr := uow.Rollback(); rbErr != nil {
			d.logger.Warn("rollback failed", slog.String("file", path), slog.String("error", rbErr.Error()))
		}
	}()

	result, err := transformer.Transform(ctx, uow, path)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	d.logger.Debug("file committed", slog.String("file", path))

	return result, nil
}
