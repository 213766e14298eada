package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sahmedcse/data-engineering/internal/ingestion"
)

var (
	// WarehouseStore opens the per-file units of work used by the batch driver.
	_ ingestion.Beginner = (*WarehouseStore)(nil)

	// txUnitOfWork issues the transformer's statements inside one transaction.
	_ ingestion.UnitOfWork = (*txUnitOfWork)(nil)
)

type (
	// WarehouseStore writes the star schema to PostgreSQL.
	//
	// Every Begin starts a transaction; the statements a transformer issues for
	// one file are committed or rolled back together. The store never retries.
	WarehouseStore struct {
		conn    *Connection
		queries *Queries
		logger  *slog.Logger
	}

	// WarehouseStoreOption configures optional WarehouseStore behavior.
	WarehouseStoreOption func(*WarehouseStore)

	// TableCounts holds the row count of each warehouse table.
	TableCounts struct {
		Songs     int
		Artists   int
		Time      int
		Users     int
		Songplays int
	}

	txUnitOfWork struct {
		tx      *sql.Tx
		queries *Queries
	}
)

// WithQueries replaces the built-in statements.
func WithQueries(q *Queries) WarehouseStoreOption {
	return func(s *WarehouseStore) {
		s.queries = q
	}
}

// WithLogger sets the store logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) WarehouseStoreOption {
	return func(s *WarehouseStore) {
		s.logger = logger
	}
}

// NewWarehouseStore creates a PostgreSQL-backed warehouse store.
// Returns ErrNoDatabaseConnection if conn is nil.
//
// Note: the store does not own the connection; the caller closes it.
func NewWarehouseStore(conn *Connection, opts ...WarehouseStoreOption) (*WarehouseStore, error) {
	if conn == nil || conn.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	store := &WarehouseStore{
		conn:    conn,
		queries: DefaultQueries(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.queries == nil {
		store.queries = DefaultQueries()
	}

	if err := store.queries.Validate(); err != nil {
		return nil, err
	}

	return store, nil
}

// Begin implements ingestion.Beginner.
func (s *WarehouseStore) Begin(ctx context.Context) (ingestion.UnitOfWork, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", ErrStoreFailed, err)
	}

	return &txUnitOfWork{tx: tx, queries: s.queries}, nil
}

// HealthCheck verifies the database connection.
func (s *WarehouseStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// Counts returns the current row count of every warehouse table.
func (s *WarehouseStore) Counts(ctx context.Context) (*TableCounts, error) {
	counts := &TableCounts{}

	targets := []struct {
		table string
		dest  *int
	}{
		{"songs", &counts.Songs},
		{"artists", &counts.Artists},
		{"time", &counts.Time},
		{"users", &counts.Users},
		{"songplays", &counts.Songplays},
	}

	for _, target := range targets {
		// Table names come from the fixed list above, never from input.
		query := "SELECT COUNT(*) FROM " + target.table //nolint:gosec

		if err := s.conn.QueryRowContext(ctx, query).Scan(target.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", target.table, err)
		}
	}

	s.logger.Debug("warehouse table counts",
		slog.Int("songs", counts.Songs),
		slog.Int("artists", counts.Artists),
		slog.Int("time", counts.Time),
		slog.Int("users", counts.Users),
		slog.Int("songplays", counts.Songplays),
	)

	return counts, nil
}

func (u *txUnitOfWork) exec(ctx context.Context, what, query string, args ...any) error {
	if u.tx == nil {
		return ErrUnitOfWorkClosed
	}

	if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStoreFailed, what, err)
	}

	return nil
}

func (u *txUnitOfWork) InsertSong(ctx context.Context, song *ingestion.SongRecord) error {
	return u.exec(ctx, "insert song", u.queries.SongInsert,
		song.SongID, song.Title, song.ArtistID, song.Year, song.Duration)
}

func (u *txUnitOfWork) InsertArtist(ctx context.Context, artist *ingestion.ArtistRecord) error {
	return u.exec(ctx, "insert artist", u.queries.ArtistInsert,
		artist.ArtistID, artist.Name, artist.Location, artist.Latitude, artist.Longitude)
}

func (u *txUnitOfWork) InsertTime(ctx context.Context, t *ingestion.TimeRecord) error {
	return u.exec(ctx, "insert time", u.queries.TimeInsert,
		t.StartTime, t.Hour, t.Day, t.Week, t.Month, t.Year, t.Weekday)
}

func (u *txUnitOfWork) InsertUser(ctx context.Context, user *ingestion.UserRecord) error {
	return u.exec(ctx, "insert user", u.queries.UserInsert,
		user.UserID.String(), user.FirstName, user.LastName, user.Gender, user.Level)
}

func (u *txUnitOfWork) InsertSongplay(ctx context.Context, play *ingestion.SongplayRecord) error {
	return u.exec(ctx, "insert songplay", u.queries.SongplayInsert,
		play.StartTime, play.UserID.String(), play.Level, play.SongID, play.ArtistID,
		play.SessionID, play.Location, play.UserAgent)
}

func (u *txUnitOfWork) LookupSong(
	ctx context.Context,
	title, artist *string,
	duration *float64,
) (*ingestion.SongMatch, bool, error) {
	if u.tx == nil {
		return nil, false, ErrUnitOfWorkClosed
	}

	var match ingestion.SongMatch

	err := u.tx.QueryRowContext(ctx, u.queries.SongSelect, title, artist, duration).
		Scan(&match.SongID, &match.ArtistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%w: song lookup: %w", ErrStoreFailed, err)
	}

	return &match, true, nil
}

// Commit commits the transaction. The unit of work cannot be reused afterwards.
func (u *txUnitOfWork) Commit() error {
	if u.tx == nil {
		return ErrUnitOfWorkClosed
	}

	tx := u.tx
	u.tx = nil

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStoreFailed, err)
	}

	return nil
}

// Rollback aborts the transaction. Safe to call after Commit.
func (u *txUnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	tx := u.tx
	u.tx = nil

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: rollback: %w", ErrStoreFailed, err)
	}

	return nil
}
