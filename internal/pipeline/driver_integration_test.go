package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/sahmedcse/data-engineering/internal/config"
	"github.com/sahmedcse/data-engineering/internal/ingestion"
	"github.com/sahmedcse/data-engineering/internal/storage"
)

func TestDriver_Integration_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	conn := storage.NewConnectionFromDB(testDB.Connection)

	store, err := storage.NewWarehouseStore(conn)
	require.NoError(t, err)

	driver := newTestDriver(t, store, nil)
	songRoot := writeTree(t, songCatalog())
	logRoot := writeTree(t, eventLogs())

	// The second song pass must not duplicate dimension rows.
	for range 2 {
		_, err = driver.Run(ctx, songRoot, ingestion.NewSongTransformer(nil))
		require.NoError(t, err)
	}

	_, err = driver.Run(ctx, logRoot, ingestion.NewLogTransformer(nil))
	require.NoError(t, err)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, &storage.TableCounts{Songs: 1, Artists: 1, Time: 1, Users: 1, Songplays: 1}, counts)

	var songID, artistID string

	require.NoError(t, conn.QueryRowContext(ctx, "SELECT song_id, artist_id FROM songplays").Scan(&songID, &artistID))
	assert.Equal(t, "S1", songID)
	assert.Equal(t, "A1", artistID)
}
