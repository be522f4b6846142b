package admin

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/store"
	memkv "github.com/Michael-Zapivahin/sensive-blog/pkg/kv/memory"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	db     interfaces.Database
	cache  *store.PageCache
	sample *db.Sample
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	database := db.NewInMemoryDatabase()
	require.NoError(t, db.ConnectAndMigrate(ctx, database))
	t.Cleanup(func() { _ = database.Disconnect(ctx) })

	sample, err := db.SeedSample(ctx, database, fixedNow)
	require.NoError(t, err)

	kv := memkv.New(0)
	t.Cleanup(func() { _ = kv.Close() })
	logger := zaptest.NewLogger(t).Sugar()
	cache := store.NewPageCache(kv, time.Minute, logger, nil)

	svc := NewService(database, cache, logger, nil)
	svc.now = func() time.Time { return fixedNow }
	svc.hashCost = bcrypt.MinCost

	return &fixture{svc: svc, db: database, cache: cache, sample: sample}
}

func (f *fixture) cacheKey(t *testing.T) string {
	key, err := f.cache.Key(context.Background(), "index")
	require.NoError(t, err)
	return key
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, field, verr.Field)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.CreateUser(ctx, UserInput{Username: "editor", Email: "editor@example.com", Password: "correct horse", IsStaff: true})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, fixedNow, u.DateJoined)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	ok, err := f.svc.CheckPassword(ctx, u.ID, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CheckPassword(ctx, u.ID, "wrong horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, UserInput{Username: "x", Password: "short"})
	requireValidation(t, err, "password")

	_, err = f.svc.CreateUser(ctx, UserInput{Username: "x", Password: "long enough", Email: "nope"})
	requireValidation(t, err, "email")

	_, err = f.svc.CreateUser(ctx, UserInput{Username: "  ", Password: "long enough"})
	requireValidation(t, err, "username")

	_, err = f.svc.CreateUser(ctx, UserInput{Username: "admin", Password: "long enough"})
	assert.ErrorIs(t, err, interfaces.ErrUniqueConstraint)
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.cacheKey(t)

	goTag := f.sample.Tags["go"]
	p, err := f.svc.CreatePost(ctx, PostInput{
		Title:    "New post",
		Text:     "Body",
		Slug:     "new-post",
		AuthorID: f.sample.Admin.ID,
		TagIDs:   []int64{goTag.ID},
		LikeIDs:  []int64{f.sample.Readers[0].ID},
	})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, fixedNow, p.PublishedAt)
	assert.Equal(t, []int64{goTag.ID}, p.TagIDs)
	assert.Equal(t, []int64{f.sample.Readers[0].ID}, p.LikeIDs)

	assert.NotEqual(t, before, f.cacheKey(t), "write invalidates the page cache")
}

func TestCreatePostRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid := func() PostInput {
		return PostInput{Title: "T", Text: "B", Slug: "fresh-slug", AuthorID: f.sample.Admin.ID}
	}

	in := valid()
	in.AuthorID = f.sample.Readers[0].ID
	_, err := f.svc.CreatePost(ctx, in)
	requireValidation(t, err, "author_id")

	in = valid()
	in.AuthorID = 9999
	_, err = f.svc.CreatePost(ctx, in)
	requireValidation(t, err, "author_id")

	in = valid()
	in.Slug = "has spaces"
	_, err = f.svc.CreatePost(ctx, in)
	requireValidation(t, err, "slug")

	in = valid()
	in.Slug = "post-1"
	_, err = f.svc.CreatePost(ctx, in)
	assert.ErrorIs(t, err, interfaces.ErrUniqueConstraint)

	in = valid()
	in.TagIDs = []int64{9999}
	_, err = f.svc.CreatePost(ctx, in)
	assert.ErrorIs(t, err, interfaces.ErrForeignKeyConstraint)

	in = valid()
	in.LikeIDs = []int64{9999}
	_, err = f.svc.CreatePost(ctx, in)
	assert.ErrorIs(t, err, interfaces.ErrForeignKeyConstraint)
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.sample.Post(7)

	updated, err := f.svc.UpdatePost(ctx, post.ID, PostInput{
		Title:       "Renamed",
		Text:        post.Text,
		Slug:        post.Slug,
		PublishedAt: &post.PublishedAt,
		AuthorID:    post.AuthorID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Empty(t, updated.TagIDs, "relation sets are replaced")
	assert.Empty(t, updated.LikeIDs)

	_, err = f.svc.UpdatePost(ctx, 9999, PostInput{Title: "x", Text: "x", Slug: "x", AuthorID: post.AuthorID})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.sample.Post(1)

	require.NoError(t, f.svc.DeletePost(ctx, post.ID))
	_, err := f.svc.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	n, err := f.db.Comments().Count(ctx, &interfaces.CommentQuery{PostID: &post.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, f.svc.DeletePost(ctx, post.ID), interfaces.ErrNotFound)
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag, err := f.svc.CreateTag(ctx, TagInput{Title: " Rust "})
	require.NoError(t, err)
	assert.Equal(t, "rust", tag.Title)

	_, err = f.svc.CreateTag(ctx, TagInput{Title: "PYTHON"})
	assert.ErrorIs(t, err, interfaces.ErrUniqueConstraint)

	_, err = f.svc.CreateTag(ctx, TagInput{Title: "a-very-long-tag-title-indeed"})
	requireValidation(t, err, "title")

	tag, err = f.svc.UpdateTag(ctx, tag.ID, TagInput{Title: "Zig"})
	require.NoError(t, err)
	assert.Equal(t, "zig", tag.Title)

	list, err := f.svc.ListTags(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 7, list.Total)
	assert.Equal(t, DefaultPageSize, list.PageSize)

	require.NoError(t, f.svc.DeleteTag(ctx, tag.ID))
	_, err = f.svc.GetTag(ctx, tag.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestListCommentsPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.sample.Post(2)

	for i := 0; i < 55; i++ {
		_, err := f.svc.CreateComment(ctx, CommentInput{
			PostID:   post.ID,
			AuthorID: f.sample.Readers[i%len(f.sample.Readers)].ID,
			Text:     fmt.Sprintf("comment %d", i),
		})
		require.NoError(t, err)
	}

	first, err := f.svc.ListComments(ctx, 1, &post.ID)
	require.NoError(t, err)
	assert.Len(t, first.Items, CommentsPageSize)
	assert.EqualValues(t, 55, first.Total)
	assert.Equal(t, 1, first.Page)

	second, err := f.svc.ListComments(ctx, 2, &post.ID)
	require.NoError(t, err)
	assert.Len(t, second.Items, 5)

	all, err := f.svc.ListComments(ctx, 1, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 61, all.Total)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	post := f.sample.Post(3)

	c, err := f.svc.CreateComment(ctx, CommentInput{PostID: post.ID, AuthorID: f.sample.Readers[2].ID, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, c.PublishedAt)

	_, err = f.svc.CreateComment(ctx, CommentInput{PostID: post.ID, AuthorID: f.sample.Readers[2].ID, Text: "   "})
	requireValidation(t, err, "text")

	_, err = f.svc.CreateComment(ctx, CommentInput{PostID: 9999, AuthorID: f.sample.Readers[2].ID, Text: "x"})
	assert.ErrorIs(t, err, interfaces.ErrForeignKeyConstraint)

	c, err = f.svc.UpdateComment(ctx, c.ID, CommentInput{PostID: post.ID, AuthorID: f.sample.Readers[2].ID, Text: "edited"})
	require.NoError(t, err)
	got, err := f.svc.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)

	require.NoError(t, f.svc.DeleteComment(ctx, c.ID))
	assert.ErrorIs(t, f.svc.DeleteComment(ctx, c.ID), interfaces.ErrNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteUser(ctx, f.sample.Admin.ID))

	posts, err := f.svc.ListPosts(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, posts.Total)
	assert.Empty(t, posts.Items)

	users, err := f.svc.ListUsers(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 6, users.Total)
}

func TestListPagesPastTheEnd(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.ListPosts(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.EqualValues(t, 7, list.Total)
	assert.Equal(t, 5, list.Page)
}

func TestListHugePageStaysPastTheEnd(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.ListPosts(context.Background(), math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.EqualValues(t, 7, list.Total)
	assert.Equal(t, math.MaxInt/DefaultPageSize, list.Page)

	comments, err := f.svc.ListComments(context.Background(), math.MaxInt, nil)
	require.NoError(t, err)
	assert.Empty(t, comments.Items)
	assert.Equal(t, math.MaxInt/CommentsPageSize, comments.Page)
}
