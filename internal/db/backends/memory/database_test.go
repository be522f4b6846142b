package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/dbtest"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

func newTestDatabase(t *testing.T) interfaces.Database {
	db := NewDatabase()
	require.NoError(t, db.Connect(context.Background()))
	t.Cleanup(func() { _ = db.Disconnect(context.Background()) })
	return db
}

func TestConformance(t *testing.T) {
	dbtest.RunConformanceTests(t, newTestDatabase)
}

func TestDisconnectedDatabase(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()

	assert.False(t, db.IsHealthy(ctx))
	assert.ErrorIs(t, db.Migrate(ctx), interfaces.ErrDatabaseNotConnected)

	_, err := db.Posts().Find(ctx, nil)
	assert.ErrorIs(t, err, interfaces.ErrDatabaseNotConnected)

	u := entities.User{Username: "alice"}
	assert.ErrorIs(t, db.Users().Create(ctx, &u), interfaces.ErrDatabaseNotConnected)
}

func TestClearResetsSequences(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	require.NoError(t, db.Connect(ctx))

	u := entities.User{Username: "alice"}
	require.NoError(t, db.Users().Create(ctx, &u))
	assert.EqualValues(t, 1, u.ID)

	db.Clear()
	n, err := db.Users().Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	again := entities.User{Username: "alice"}
	require.NoError(t, db.Users().Create(ctx, &again))
	assert.EqualValues(t, 1, again.ID)
}

func TestReturnedPostsAreCopies(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	u := entities.User{Username: "alice", IsStaff: true}
	require.NoError(t, db.Users().Create(ctx, &u))
	img := "cover.jpg"
	p := entities.Post{Title: "t", Text: "x", Slug: "s", Image: &img, PublishedAt: dbNow(), AuthorID: u.ID}
	require.NoError(t, db.Posts().Create(ctx, &p, nil, nil))

	got, err := db.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	*got.Image = "changed.jpg"

	again, err := db.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "cover.jpg", *again.Image)
}

func dbNow() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
