package blog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

var sampleNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newSampleDB(t *testing.T) (interfaces.Database, *db.Sample) {
	t.Helper()
	ctx := context.Background()
	database := db.NewInMemoryDatabase()
	require.NoError(t, db.ConnectAndMigrate(ctx, database))
	t.Cleanup(func() { _ = database.Disconnect(ctx) })

	sample, err := db.SeedSample(ctx, database, sampleNow)
	require.NoError(t, err)
	return database, sample
}

func newEmptyDB(t *testing.T) interfaces.Database {
	t.Helper()
	ctx := context.Background()
	database := db.NewInMemoryDatabase()
	require.NoError(t, db.ConnectAndMigrate(ctx, database))
	t.Cleanup(func() { _ = database.Disconnect(ctx) })
	return database
}
