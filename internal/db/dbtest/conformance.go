// Package dbtest provides conformance tests for interfaces.Database implementations
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// DatabaseFactory returns a connected, migrated and empty Database
type DatabaseFactory func(t *testing.T) interfaces.Database

// RunConformanceTests runs all conformance tests against a Database implementation
func RunConformanceTests(t *testing.T, factory DatabaseFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, db interfaces.Database)
	}{
		{"UserCRUD", testUserCRUD},
		{"PostCRUD", testPostCRUD},
		{"TagCRUD", testTagCRUD},
		{"CommentCRUD", testCommentCRUD},
		{"UniqueConstraints", testUniqueConstraints},
		{"ForeignKeys", testForeignKeys},
		{"Validation", testValidation},
		{"PostOrdering", testPostOrdering},
		{"PostFilters", testPostFilters},
		{"PostPagination", testPostPagination},
		{"PrefetchTags", testPrefetchTags},
		{"CommentCounts", testCommentCounts},
		{"TagAggregates", testTagAggregates},
		{"CommentQueries", testCommentQueries},
		{"Cascades", testCascades},
		{"InvalidOrder", testInvalidOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.test(t, factory(t))
		})
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type world struct {
	alice, bob    entities.User
	tags          map[string]entities.Tag
	first, second entities.Post
	third         entities.Post
}

func createUser(t *testing.T, db interfaces.Database, name string, staff bool) entities.User {
	t.Helper()
	u := entities.User{Username: name, Email: name + "@example.com", IsStaff: staff, DateJoined: base}
	require.NoError(t, db.Users().Create(context.Background(), &u))
	require.NotZero(t, u.ID)
	return u
}

func createTag(t *testing.T, db interfaces.Database, title string) entities.Tag {
	t.Helper()
	tag := entities.Tag{Title: title}
	require.NoError(t, db.Tags().Create(context.Background(), &tag))
	return tag
}

func createPost(t *testing.T, db interfaces.Database, slug string, author int64, age time.Duration, tags, likers []int64) entities.Post {
	t.Helper()
	p := entities.Post{
		Title:       "Post " + slug,
		Text:        "Text of " + slug,
		Slug:        slug,
		PublishedAt: base.Add(-age),
		AuthorID:    author,
	}
	require.NoError(t, db.Posts().Create(context.Background(), &p, tags, likers))
	require.NotZero(t, p.ID)
	return p
}

func createComment(t *testing.T, db interfaces.Database, post, author int64, age time.Duration) entities.Comment {
	t.Helper()
	c := entities.Comment{PostID: post, AuthorID: author, Text: "nice", PublishedAt: base.Add(-age)}
	require.NoError(t, db.Comments().Create(context.Background(), &c))
	return c
}

// seed builds three posts:
//
//	first   newest, tags go+web, liked by bob
//	second  middle, tag go, liked by alice and bob
//	third   oldest, no tags, no likes
func seed(t *testing.T, db interfaces.Database) world {
	w := world{tags: map[string]entities.Tag{}}
	w.alice = createUser(t, db, "alice", true)
	w.bob = createUser(t, db, "bob", false)
	for _, title := range []string{"go", "web", "unused"} {
		w.tags[title] = createTag(t, db, title)
	}
	w.first = createPost(t, db, "first", w.alice.ID, time.Hour,
		[]int64{w.tags["go"].ID, w.tags["web"].ID}, []int64{w.bob.ID})
	w.second = createPost(t, db, "second", w.alice.ID, 2*time.Hour,
		[]int64{w.tags["go"].ID}, []int64{w.alice.ID, w.bob.ID})
	w.third = createPost(t, db, "third", w.bob.ID, 3*time.Hour, nil, nil)
	return w
}

func slugs(rows []interfaces.PostRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Slug
	}
	return out
}

func titles(rows []interfaces.TagRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Title
	}
	return out
}

func testUserCRUD(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	alice := createUser(t, db, "alice", true)
	createUser(t, db, "bob", false)

	got, err := db.Users().Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.IsStaff)

	staff, err := db.Users().Find(ctx, &interfaces.UserQuery{StaffOnly: true})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, alice.ID, staff[0].ID)

	n, err := db.Users().Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, db.Users().Delete(ctx, alice.ID))
	_, err = db.Users().Get(ctx, alice.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, db.Users().Delete(ctx, alice.ID), interfaces.ErrNotFound)
}

func testPostCRUD(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)

	row, err := db.Posts().GetBySlug(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, w.first.ID, row.ID)
	assert.Equal(t, "alice", row.Author.Username)
	assert.EqualValues(t, 1, row.LikesCount)

	_, err = db.Posts().GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	img := "posts/cover.jpg"
	updated := w.third
	updated.Title = "Renamed"
	updated.Image = &img
	require.NoError(t, db.Posts().Update(ctx, &updated, []int64{w.tags["web"].ID}, []int64{w.alice.ID}))

	got, err := db.Posts().Get(ctx, w.third.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	require.NotNil(t, got.Image)
	assert.Equal(t, img, *got.Image)

	tagIDs, err := db.Posts().TagIDs(ctx, w.third.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.tags["web"].ID}, tagIDs)

	likers, err := db.Posts().LikerIDs(ctx, w.third.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.alice.ID}, likers)

	_, err = db.Posts().TagIDs(ctx, 9999)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	missing := w.third
	missing.ID = 9999
	assert.ErrorIs(t, db.Posts().Update(ctx, &missing, nil, nil), interfaces.ErrNotFound)

	require.NoError(t, db.Posts().Delete(ctx, w.third.ID))
	n, err := db.Posts().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func testTagCRUD(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	tag := entities.Tag{Title: "  Golang "}
	require.NoError(t, db.Tags().Create(ctx, &tag))
	assert.Equal(t, "golang", tag.Title)

	got, err := db.Tags().GetByTitle(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, got.ID)

	tag.Title = "Rust"
	require.NoError(t, db.Tags().Update(ctx, &tag))
	got, err = db.Tags().Get(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "rust", got.Title)

	require.NoError(t, db.Tags().Delete(ctx, tag.ID))
	_, err = db.Tags().GetByTitle(ctx, "rust")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func testCommentCRUD(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)
	c := createComment(t, db, w.first.ID, w.bob.ID, 0)

	c.Text = "edited"
	require.NoError(t, db.Comments().Update(ctx, &c))
	got, err := db.Comments().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)

	require.NoError(t, db.Comments().Delete(ctx, c.ID))
	_, err = db.Comments().Get(ctx, c.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func testUniqueConstraints(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)

	dup := entities.User{Username: "alice"}
	assert.ErrorIs(t, db.Users().Create(ctx, &dup), interfaces.ErrUniqueConstraint)

	tag := entities.Tag{Title: "GO"}
	assert.ErrorIs(t, db.Tags().Create(ctx, &tag), interfaces.ErrUniqueConstraint)

	p := entities.Post{Title: "x", Text: "x", Slug: "first", PublishedAt: base, AuthorID: w.alice.ID}
	assert.ErrorIs(t, db.Posts().Create(ctx, &p, nil, nil), interfaces.ErrUniqueConstraint)

	renamed := w.second
	renamed.Slug = "first"
	assert.ErrorIs(t, db.Posts().Update(ctx, &renamed, nil, nil), interfaces.ErrUniqueConstraint)
}

func testForeignKeys(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)

	p := entities.Post{Title: "x", Text: "x", Slug: "orphan", PublishedAt: base, AuthorID: 9999}
	assert.ErrorIs(t, db.Posts().Create(ctx, &p, nil, nil), interfaces.ErrForeignKeyConstraint)

	p.AuthorID = w.alice.ID
	assert.ErrorIs(t, db.Posts().Create(ctx, &p, []int64{9999}, nil), interfaces.ErrForeignKeyConstraint)

	c := entities.Comment{PostID: 9999, AuthorID: w.bob.ID, Text: "x", PublishedAt: base}
	assert.ErrorIs(t, db.Comments().Create(ctx, &c), interfaces.ErrForeignKeyConstraint)
}

func testValidation(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)

	long := entities.Tag{Title: "abcdefghijklmnopqrstuvwxyz"}
	assert.ErrorIs(t, db.Tags().Create(ctx, &long), entities.ErrValidation)

	p := entities.Post{Title: "x", Text: "x", Slug: "has space", PublishedAt: base, AuthorID: w.alice.ID}
	err := db.Posts().Create(ctx, &p, nil, nil)
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slug", verr.Field)

	empty := entities.User{Username: "   "}
	assert.ErrorIs(t, db.Users().Create(ctx, &empty), entities.ErrValidation)
}

func testPostOrdering(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	seed(t, db)

	rows, err := db.Posts().Find(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, slugs(rows))

	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{
		OrderBy: []interfaces.OrderBy{{Field: interfaces.FieldLikesCount, Direction: interfaces.Desc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first", "third"}, slugs(rows))
	assert.Equal(t, []int64{2, 1, 0}, []int64{rows[0].LikesCount, rows[1].LikesCount, rows[2].LikesCount})

	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{
		OrderBy: []interfaces.OrderBy{{Field: interfaces.FieldPublishedAt, Direction: interfaces.Asc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, slugs(rows))
}

func testPostFilters(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)

	goID := w.tags["go"].ID
	rows, err := db.Posts().Find(ctx, &interfaces.PostQuery{TagID: &goID})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, slugs(rows))

	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{IDs: []int64{w.third.ID, w.first.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third"}, slugs(rows))

	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{IDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	unused := w.tags["unused"].ID
	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{TagID: &unused})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testPostPagination(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	seed(t, db)

	rows, err := db.Posts().Find(ctx, &interfaces.PostQuery{Limit: interfaces.Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, slugs(rows))

	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{Limit: interfaces.Ptr(2), Offset: interfaces.Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"third"}, slugs(rows))

	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{Offset: interfaces.Ptr(5)})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = db.Posts().Find(ctx, &interfaces.PostQuery{Limit: interfaces.Ptr(0)})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testPrefetchTags(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	seed(t, db)

	rows, err := db.Posts().Find(ctx, &interfaces.PostQuery{PrefetchTags: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"go", "web"}, titles(rows[0].Tags))
	assert.EqualValues(t, 2, rows[0].Tags[0].PostsCount, "go is on two posts")
	assert.EqualValues(t, 1, rows[0].Tags[1].PostsCount)
	assert.Equal(t, []string{"go"}, titles(rows[1].Tags))
	assert.NotNil(t, rows[2].Tags)
	assert.Empty(t, rows[2].Tags)

	plain, err := db.Posts().Find(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, plain[0].Tags)
}

func testCommentCounts(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)
	createComment(t, db, w.first.ID, w.bob.ID, 0)
	createComment(t, db, w.first.ID, w.alice.ID, time.Minute)
	createComment(t, db, w.second.ID, w.bob.ID, 0)

	counts, err := db.Posts().CommentCounts(ctx, []int64{w.first.ID, w.second.ID, w.third.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{w.first.ID: 2, w.second.ID: 1, w.third.ID: 0}, counts)

	counts, err = db.Posts().CommentCounts(ctx, []int64{})
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func testTagAggregates(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)

	rows, err := db.Tags().Find(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "unused", "web"}, titles(rows))

	rows, err = db.Tags().Find(ctx, &interfaces.TagQuery{
		OrderBy: []interfaces.OrderBy{{Field: interfaces.FieldPostsCount, Direction: interfaces.Desc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web", "unused"}, titles(rows))
	assert.Equal(t, []int64{2, 1, 0}, []int64{rows[0].PostsCount, rows[1].PostsCount, rows[2].PostsCount})

	rows, err = db.Tags().Find(ctx, &interfaces.TagQuery{PostID: &w.second.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "go", rows[0].Title)
	assert.EqualValues(t, 2, rows[0].PostsCount, "counts stay global under a post filter")

	n, err := db.Tags().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func testCommentQueries(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)
	late := createComment(t, db, w.first.ID, w.bob.ID, time.Minute)
	early := createComment(t, db, w.first.ID, w.alice.ID, time.Hour)
	createComment(t, db, w.second.ID, w.bob.ID, 0)

	rows, err := db.Comments().Find(ctx, &interfaces.CommentQuery{PostID: &w.first.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, early.ID, rows[0].ID)
	assert.Equal(t, "alice", rows[0].Author.Username)
	assert.Equal(t, late.ID, rows[1].ID)

	n, err := db.Comments().Count(ctx, &interfaces.CommentQuery{PostID: &w.first.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = db.Comments().Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func testCascades(t *testing.T, db interfaces.Database) {
	ctx := context.Background()
	w := seed(t, db)
	createComment(t, db, w.first.ID, w.bob.ID, 0)
	createComment(t, db, w.third.ID, w.alice.ID, 0)

	require.NoError(t, db.Tags().Delete(ctx, w.tags["go"].ID))
	tagIDs, err := db.Posts().TagIDs(ctx, w.first.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{w.tags["web"].ID}, tagIDs)

	require.NoError(t, db.Posts().Delete(ctx, w.first.ID))
	n, err := db.Comments().Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// bob authored third and liked second
	require.NoError(t, db.Users().Delete(ctx, w.bob.ID))
	rows, err := db.Posts().Find(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, slugs(rows))
	assert.EqualValues(t, 1, rows[0].LikesCount)

	n, err = db.Comments().Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n, fmt.Sprintf("comments left on deleted posts: %d", n))
}

func testInvalidOrder(t *testing.T, db interfaces.Database) {
	ctx := context.Background()

	_, err := db.Posts().Find(ctx, &interfaces.PostQuery{
		OrderBy: []interfaces.OrderBy{{Field: "password_hash", Direction: interfaces.Asc}},
	})
	assert.ErrorIs(t, err, interfaces.ErrInvalidQuery)

	_, err = db.Tags().Find(ctx, &interfaces.TagQuery{
		OrderBy: []interfaces.OrderBy{{Field: interfaces.FieldTitle, Direction: "sideways"}},
	})
	assert.ErrorIs(t, err, interfaces.ErrInvalidQuery)
}
