// Package config provides configuration and shared test utilities for the sparkify ETL.
package config

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sahmedcse/data-engineering/migrations"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	// Postgres logs the ready line once for the init server and once for the real one.
	readyLogOccurrences = 2
	startUpTimeOut      = 120 * time.Second

	testImage    = "postgres:16-alpine"
	testDatabase = "sparkifydb_test"
	testUser     = "student"
)

// TestDatabase is a throwaway sparkify warehouse: a PostgreSQL container with
// the songs, artists, users, time and songplays tables already created.
type TestDatabase struct {
	Container  *postgres.PostgresContainer
	Connection *sql.DB
	URL        string
}

// SetupTestDatabase starts a PostgreSQL container and applies the embedded
// warehouse schema to it.
//
// Usage:
//
//	func TestLoad(t *testing.T) {
//		if testing.Short() {
//			t.Skip("skipping integration test in short mode")
//		}
//		ctx := context.Background()
//		testDB := config.SetupTestDatabase(ctx, t)
//		t.Cleanup(func() {
//			_ = testDB.Connection.Close()
//			_ = testcontainers.TerminateContainer(testDB.Container)
//		})
//	}
//
// Cleanup is the caller's responsibility using t.Cleanup().
func SetupTestDatabase(ctx context.Context, t *testing.T) *TestDatabase {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testUser),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(readyLogOccurrences).
				WithStartupTimeout(startUpTimeOut),
		),
	)
	require.NoError(t, err, "Failed to start postgres container")
	require.NotNil(t, pgContainer, "postgres container is nil")

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	if err := RunTestMigrations(ctx, url); err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)

		t.Fatalf("Failed to apply warehouse schema: %v", err)
	}

	conn, err := sql.Open("postgres", url)
	if err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)

		t.Fatalf("Failed to open database: %v", err)
	}

	return &TestDatabase{
		Container:  pgContainer,
		Connection: conn,
		URL:        url,
	}
}

// RunTestMigrations brings the database at url up to the latest embedded schema
// version. The runner's log output is discarded to keep test output readable.
func RunTestMigrations(ctx context.Context, url string) error {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	return migrations.Apply(ctx, url, migrations.WithLogger(quiet))
}
