// Package blog composes the read queries, aggregates and view projections
// behind the public pages.
package blog

import (
	"context"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// PostSet is an immutable, chainable post query. Every method returns a new
// set; nothing touches the store until All or FetchWithCommentsCount.
type PostSet struct {
	repo interfaces.PostRepository
	q    interfaces.PostQuery
}

// Posts starts a post query over the database in default order.
func Posts(db interfaces.Database) PostSet {
	return PostSet{repo: db.Posts()}
}

func (s PostSet) with(fn func(q *interfaces.PostQuery)) PostSet {
	q := s.q
	q.OrderBy = append([]interfaces.OrderBy(nil), s.q.OrderBy...)
	fn(&q)
	return PostSet{repo: s.repo, q: q}
}

// Popular orders by likes_count descending and prefetches tags.
func (s PostSet) Popular() PostSet {
	return s.with(func(q *interfaces.PostQuery) {
		q.OrderBy = []interfaces.OrderBy{{Field: interfaces.FieldLikesCount, Direction: interfaces.Desc}}
		q.PrefetchTags = true
	})
}

// Fresh orders by published_at descending and prefetches tags.
func (s PostSet) Fresh() PostSet {
	return s.with(func(q *interfaces.PostQuery) {
		q.OrderBy = []interfaces.OrderBy{{Field: interfaces.FieldPublishedAt, Direction: interfaces.Desc}}
		q.PrefetchTags = true
	})
}

// WithTag keeps posts carrying the tag.
func (s PostSet) WithTag(tagID int64) PostSet {
	return s.with(func(q *interfaces.PostQuery) { q.TagID = &tagID })
}

// PrefetchTags loads the tags of every post without changing the order.
func (s PostSet) PrefetchTags() PostSet {
	return s.with(func(q *interfaces.PostQuery) { q.PrefetchTags = true })
}

func (s PostSet) Limit(n int) PostSet {
	return s.with(func(q *interfaces.PostQuery) { q.Limit = &n })
}

// Query exposes the query the set would run.
func (s PostSet) Query() interfaces.PostQuery {
	return s.q
}

func (s PostSet) All(ctx context.Context) ([]interfaces.PostRow, error) {
	q := s.q
	return s.repo.Find(ctx, &q)
}

// FetchWithCommentsCount evaluates the set and attaches comment counts.
func (s PostSet) FetchWithCommentsCount(ctx context.Context) ([]PostWithComments, error) {
	posts, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return FetchWithCommentsCount(ctx, s.repo, posts)
}

// TagSet is an immutable, chainable tag query.
type TagSet struct {
	repo interfaces.TagRepository
	q    interfaces.TagQuery
}

// Tags starts a tag query over the database in default order.
func Tags(db interfaces.Database) TagSet {
	return TagSet{repo: db.Tags()}
}

func (s TagSet) with(fn func(q *interfaces.TagQuery)) TagSet {
	q := s.q
	q.OrderBy = append([]interfaces.OrderBy(nil), s.q.OrderBy...)
	fn(&q)
	return TagSet{repo: s.repo, q: q}
}

// Popular orders by posts_count descending.
func (s TagSet) Popular() TagSet {
	return s.with(func(q *interfaces.TagQuery) {
		q.OrderBy = []interfaces.OrderBy{{Field: interfaces.FieldPostsCount, Direction: interfaces.Desc}}
	})
}

// OfPost keeps the tags of one post. Counts stay global.
func (s TagSet) OfPost(postID int64) TagSet {
	return s.with(func(q *interfaces.TagQuery) { q.PostID = &postID })
}

func (s TagSet) Limit(n int) TagSet {
	return s.with(func(q *interfaces.TagQuery) { q.Limit = &n })
}

func (s TagSet) Query() interfaces.TagQuery {
	return s.q
}

func (s TagSet) All(ctx context.Context) ([]interfaces.TagRow, error) {
	q := s.q
	return s.repo.Find(ctx, &q)
}
