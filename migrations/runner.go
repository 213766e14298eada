package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DefaultMigrationTable is the golang-migrate bookkeeping table.
const DefaultMigrationTable = "schema_migrations"

// ErrDatabaseURLEmpty is returned when a runner is created without a database URL.
var ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")

type (
	// Runner applies the catalog to a PostgreSQL database.
	//
	// The runner opens its own connection so that closing it never affects the
	// pipeline's connection pool.
	Runner struct {
		catalog        *Catalog
		migrate        *migrate.Migrate
		db             *sql.DB
		logger         *slog.Logger
		migrationTable string
	}

	// Option configures a Runner.
	Option func(*Runner)

	// Status reports the schema version of a database relative to the catalog.
	Status struct {
		Version int  // applied version, 0 when nothing is applied
		Dirty   bool // a migration failed halfway and needs manual repair
		Latest  int  // highest version known to the catalog
	}

	// migrateLogger routes golang-migrate output through slog.
	migrateLogger struct {
		logger *slog.Logger
	}
)

var _ migrate.Logger = (*migrateLogger)(nil)

// WithMigrationTable sets the bookkeeping table name.
func WithMigrationTable(table string) Option {
	return func(r *Runner) {
		r.migrationTable = table
	}
}

// WithLogger sets the runner logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithCatalog replaces the embedded schema, e.g. with an fstest.MapFS in tests.
func WithCatalog(catalog *Catalog) Option {
	return func(r *Runner) {
		r.catalog = catalog
	}
}

// NewRunner validates the catalog, connects to databaseURL and prepares golang-migrate.
func NewRunner(ctx context.Context, databaseURL string, opts ...Option) (*Runner, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrDatabaseURLEmpty
	}

	r := &Runner{
		catalog:        NewCatalog(nil),
		logger:         slog.Default(),
		migrationTable: DefaultMigrationTable,
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := r.catalog.Validate(); err != nil {
		return nil, fmt.Errorf("embedded migration validation failed: %w", err)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: r.migrationTable})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(r.catalog.FS(), ".")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{logger: r.logger}

	r.migrate = m
	r.db = db

	r.logger.Debug("migration runner ready",
		slog.String("migration_table", r.migrationTable),
		slog.Int("latest_version", r.catalog.LatestVersion()),
	)

	return r, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (r *Runner) Up() error {
	if err := r.catalog.Validate(); err != nil {
		return fmt.Errorf("pre-operation validation failed: %w", err)
	}

	err := r.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		r.logger.Info("schema already up to date")

		return nil
	}

	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	r.logger.Info("migrations applied", slog.Int("version", r.catalog.LatestVersion()))

	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down() error {
	if err := r.catalog.Validate(); err != nil {
		return fmt.Errorf("pre-operation validation failed: %w", err)
	}

	err := r.migrate.Steps(-1)

	switch {
	case errors.Is(err, migrate.ErrNoChange), errors.Is(err, migrate.ErrNilVersion):
		r.logger.Info("no migrations to roll back")

		return nil
	case err != nil:
		return fmt.Errorf("migration down failed: %w", err)
	}

	r.logger.Info("last migration rolled back")

	return nil
}

// Status returns the applied version and the latest version in the catalog.
func (r *Runner) Status() (*Status, error) {
	status := &Status{Latest: r.catalog.LatestVersion()}

	version, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return status, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}

	status.Version = int(version) //nolint:gosec // versions are three-digit sequence numbers
	status.Dirty = dirty

	return status, nil
}

// Drop drops every table in the database, including the bookkeeping table.
func (r *Runner) Drop() error {
	if err := r.catalog.Validate(); err != nil {
		return fmt.Errorf("pre-operation validation failed: %w", err)
	}

	r.logger.Warn("dropping all tables")

	if err := r.migrate.Drop(); err != nil {
		return fmt.Errorf("drop operation failed: %w", err)
	}

	return nil
}

// Close releases the migrate instance and the runner's connection.
func (r *Runner) Close() error {
	var errs []error

	if r.migrate != nil {
		sourceErr, dbErr := r.migrate.Close()
		if sourceErr != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", sourceErr))
		}

		if dbErr != nil {
			errs = append(errs, fmt.Errorf("database close error: %w", dbErr))
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database connection close error: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Apply brings the database at databaseURL up to the latest schema version.
func Apply(ctx context.Context, databaseURL string, opts ...Option) (err error) {
	runner, err := NewRunner(ctx, databaseURL, opts...)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, runner.Close())
	}()

	return runner.Up()
}

// Pending reports how many catalog versions are not yet applied.
func (s *Status) Pending() int {
	return max(s.Latest-s.Version, 0)
}

// UpToDate reports whether the database is clean and at the latest version.
func (s *Status) UpToDate() bool {
	return !s.Dirty && s.Version == s.Latest
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
