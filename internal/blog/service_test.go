package blog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/store"
	memkv "github.com/Michael-Zapivahin/sensive-blog/pkg/kv/memory"
)

func newTestService(t *testing.T, database interfaces.Database, cache *store.PageCache) *Service {
	return NewService(database, Serializer{MediaURL: "/media/"}, cache, zaptest.NewLogger(t).Sugar(), nil)
}

func viewSlugs(views []PostView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Slug
	}
	return out
}

func tagTitles(views []TagView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Title
	}
	return out
}

func TestIndex(t *testing.T) {
	database, _ := newSampleDB(t)
	svc := newTestService(t, database, nil)

	page, err := svc.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TemplateIndex, page.Template)

	c, ok := page.Context.(IndexContext)
	require.True(t, ok)
	assert.Equal(t, []string{"post-7", "post-6", "post-5", "post-4", "post-3"}, viewSlugs(c.MostPopularPosts))
	assert.Equal(t, []string{"post-1", "post-2", "post-3", "post-4", "post-5"}, viewSlugs(c.PagePosts))
	assert.Equal(t, []string{"go", "python", "django", "travel", "food"}, tagTitles(c.PopularTags))

	first := c.PagePosts[0]
	assert.EqualValues(t, 3, first.CommentsAmount)
	assert.Equal(t, "admin", first.Author)
	require.NotNil(t, first.FirstTagTitle)
	assert.Equal(t, "go", *first.FirstTagTitle)
	assert.Equal(t, []TagView{{Title: "go", PostsWithTag: 5}, {Title: "python", PostsWithTag: 4}}, first.Tags)
}

func TestPostDetail(t *testing.T) {
	database, _ := newSampleDB(t)
	svc := newTestService(t, database, nil)

	page, err := svc.PostDetail(context.Background(), "post-7")
	require.NoError(t, err)
	assert.Equal(t, TemplatePostDetail, page.Template)

	c := page.Context.(PostDetailContext)
	assert.Equal(t, "post-7", c.Post.Slug)
	assert.EqualValues(t, 6, c.Post.LikesAmount)
	assert.Equal(t, "admin", c.Post.Author)
	assert.Contains(t, string(c.Post.TextHTML), "<strong>post 7</strong>")

	require.Len(t, c.Post.Comments, 2)
	assert.Equal(t, "reader1", c.Post.Comments[0].Author)
	assert.Equal(t, "reader2", c.Post.Comments[1].Author)
	assert.True(t, c.Post.Comments[0].PublishedAt.Before(c.Post.Comments[1].PublishedAt))

	assert.Equal(t, []TagView{{Title: "python", PostsWithTag: 4}, {Title: "travel", PostsWithTag: 2}}, c.Post.Tags)
	assert.Len(t, c.MostPopularPosts, PopularLimit)
	assert.Len(t, c.PopularTags, PopularLimit)
}

func TestPostDetailUnknownSlug(t *testing.T) {
	database, _ := newSampleDB(t)
	svc := newTestService(t, database, nil)

	_, err := svc.PostDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTagFilter(t *testing.T) {
	database, _ := newSampleDB(t)
	svc := newTestService(t, database, nil)

	page, err := svc.TagFilter(context.Background(), "Python")
	require.NoError(t, err)
	assert.Equal(t, TemplateTagFilter, page.Template)

	c := page.Context.(TagFilterContext)
	assert.Equal(t, "python", c.Tag)
	assert.Equal(t, []string{"post-1", "post-2", "post-6", "post-7"}, viewSlugs(c.Posts))
	for _, p := range c.Posts {
		assert.NotEmpty(t, p.Tags)
	}
	assert.Len(t, c.MostPopularPosts, PopularLimit)
}

func TestTagFilterUnknownTag(t *testing.T) {
	database, _ := newSampleDB(t)
	svc := newTestService(t, database, nil)

	_, err := svc.TagFilter(context.Background(), "rust")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTagFilterEmptyTag(t *testing.T) {
	database, _ := newSampleDB(t)
	svc := newTestService(t, database, nil)

	page, err := svc.TagFilter(context.Background(), "design")
	require.NoError(t, err)
	assert.Empty(t, page.Context.(TagFilterContext).Posts)
}

func TestContacts(t *testing.T) {
	svc := newTestService(t, newEmptyDB(t), nil)

	page, err := svc.Contacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TemplateContacts, page.Template)
	assert.Equal(t, ContactsContext{}, page.Context)
}

func TestIndexOnEmptyBlog(t *testing.T) {
	svc := newTestService(t, newEmptyDB(t), nil)

	page, err := svc.Index(context.Background())
	require.NoError(t, err)
	c := page.Context.(IndexContext)
	assert.Empty(t, c.MostPopularPosts)
	assert.Empty(t, c.PagePosts)
	assert.Empty(t, c.PopularTags)
}

func TestCachedPagesUntilInvalidated(t *testing.T) {
	database, sample := newSampleDB(t)
	ctx := context.Background()

	kv := memkv.New(0)
	t.Cleanup(func() { _ = kv.Close() })
	cache := store.NewPageCache(kv, time.Minute, zaptest.NewLogger(t).Sugar(), nil)
	svc := newTestService(t, database, cache)

	page, err := svc.Index(ctx)
	require.NoError(t, err)
	assert.Contains(t, viewSlugs(page.Context.(IndexContext).PagePosts), "post-1")

	require.NoError(t, database.Posts().Delete(ctx, sample.Post(1).ID))

	page, err = svc.Index(ctx)
	require.NoError(t, err)
	assert.Contains(t, viewSlugs(page.Context.(IndexContext).PagePosts), "post-1", "served from cache")

	require.NoError(t, cache.Invalidate(ctx))

	page, err = svc.Index(ctx)
	require.NoError(t, err)
	assert.NotContains(t, viewSlugs(page.Context.(IndexContext).PagePosts), "post-1")
}

func TestNotFoundIsNotCached(t *testing.T) {
	database, sample := newSampleDB(t)
	ctx := context.Background()

	kv := memkv.New(0)
	t.Cleanup(func() { _ = kv.Close() })
	cache := store.NewPageCache(kv, time.Minute, nil, nil)
	svc := newTestService(t, database, cache)

	_, err := svc.TagFilter(ctx, "rust")
	require.ErrorIs(t, err, ErrNotFound)

	tag := sample.Tags["go"]
	tag.ID = 0
	tag.Title = "rust"
	require.NoError(t, database.Tags().Create(ctx, &tag))

	_, err = svc.TagFilter(ctx, "rust")
	assert.NoError(t, err)
}
