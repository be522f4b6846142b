package memory

import (
	"context"
	"fmt"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/query"
)

var defaultPostOrder = []interfaces.OrderBy{{Field: interfaces.FieldPublishedAt, Direction: interfaces.Desc}}

var postBuilder = query.NewBuilder(func(r interfaces.PostRow, field string) interface{} {
	switch field {
	case interfaces.FieldID:
		return r.ID
	case interfaces.FieldTitle:
		return r.Title
	case interfaces.FieldPublishedAt:
		return r.PublishedAt
	case interfaces.FieldLikesCount:
		return r.LikesCount
	}
	return nil
})

type postRepository struct {
	db *Database
}

func (r *postRepository) Find(ctx context.Context, q *interfaces.PostQuery) ([]interfaces.PostRow, error) {
	if q == nil {
		q = &interfaces.PostQuery{}
	}
	if err := interfaces.ValidateOrder(q.OrderBy,
		interfaces.FieldID, interfaces.FieldTitle, interfaces.FieldPublishedAt, interfaces.FieldLikesCount,
	); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return nil, err
	}

	rows := make([]interfaces.PostRow, 0, len(r.db.posts))
	for _, id := range sortedIDs(r.db.posts) {
		rows = append(rows, r.db.postRow(r.db.posts[id]))
	}

	var preds []func(interfaces.PostRow) bool
	if q.IDs != nil {
		ids := q.IDs
		preds = append(preds, func(p interfaces.PostRow) bool { return query.ContainsID(ids, p.ID) })
	}
	if q.TagID != nil {
		tagID := *q.TagID
		preds = append(preds, func(p interfaces.PostRow) bool { return query.ContainsID(r.db.postTags[p.ID], tagID) })
	}
	if q.Slug != nil {
		slug := *q.Slug
		preds = append(preds, func(p interfaces.PostRow) bool { return p.Slug == slug })
	}
	rows = postBuilder.Filter(rows, preds...)

	orderBy := q.OrderBy
	if len(orderBy) == 0 {
		orderBy = defaultPostOrder
	}
	rows = postBuilder.ApplySort(rows, orderBy)
	rows = postBuilder.ApplyPagination(rows, q.Limit, q.Offset)

	if q.PrefetchTags {
		for i := range rows {
			rows[i].Tags = r.db.tagRowsOf(rows[i].ID)
		}
	}
	return rows, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (interfaces.PostRow, error) {
	rows, err := r.Find(ctx, &interfaces.PostQuery{Slug: &slug, Limit: interfaces.Ptr(1), PrefetchTags: true})
	if err != nil {
		return interfaces.PostRow{}, err
	}
	if len(rows) == 0 {
		return interfaces.PostRow{}, interfaces.ErrNotFound
	}
	return rows[0], nil
}

func (r *postRepository) Get(ctx context.Context, id int64) (entities.Post, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return entities.Post{}, err
	}
	p, ok := r.db.posts[id]
	if !ok {
		return entities.Post{}, interfaces.ErrNotFound
	}
	return clonePost(p), nil
}

func (r *postRepository) CommentCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return nil, err
	}

	counts := make(map[int64]int64, len(postIDs))
	for _, id := range postIDs {
		if _, ok := r.db.posts[id]; ok {
			counts[id] = 0
		}
	}
	for _, c := range r.db.comments {
		if _, ok := counts[c.PostID]; ok {
			counts[c.PostID]++
		}
	}
	return counts, nil
}

func (r *postRepository) TagIDs(ctx context.Context, postID int64) ([]int64, error) {
	return r.relation(postID, func() map[int64][]int64 { return r.db.postTags })
}

func (r *postRepository) LikerIDs(ctx context.Context, postID int64) ([]int64, error) {
	return r.relation(postID, func() map[int64][]int64 { return r.db.postLikes })
}

func (r *postRepository) relation(postID int64, table func() map[int64][]int64) ([]int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return nil, err
	}
	if _, ok := r.db.posts[postID]; !ok {
		return nil, interfaces.ErrNotFound
	}
	return append([]int64{}, table()[postID]...), nil
}

func (r *postRepository) Create(ctx context.Context, p *entities.Post, tagIDs, likerIDs []int64) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if err := r.checkConstraints(p, 0, tagIDs, likerIDs); err != nil {
		return err
	}

	p.ID = r.db.nextID("posts")
	r.db.posts[p.ID] = clonePost(*p)
	r.db.postTags[p.ID] = uniqueIDs(tagIDs)
	r.db.postLikes[p.ID] = uniqueIDs(likerIDs)
	return nil
}

func (r *postRepository) Update(ctx context.Context, p *entities.Post, tagIDs, likerIDs []int64) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if _, ok := r.db.posts[p.ID]; !ok {
		return interfaces.ErrNotFound
	}
	if err := r.checkConstraints(p, p.ID, tagIDs, likerIDs); err != nil {
		return err
	}

	r.db.posts[p.ID] = clonePost(*p)
	r.db.postTags[p.ID] = uniqueIDs(tagIDs)
	r.db.postLikes[p.ID] = uniqueIDs(likerIDs)
	return nil
}

// checkConstraints must be called with the write lock held.
func (r *postRepository) checkConstraints(p *entities.Post, excludeID int64, tagIDs, likerIDs []int64) error {
	for id, existing := range r.db.posts {
		if id != excludeID && existing.Slug == p.Slug {
			return fmt.Errorf("%w: field 'slug' value '%s'", interfaces.ErrUniqueConstraint, p.Slug)
		}
	}
	if _, ok := r.db.users[p.AuthorID]; !ok {
		return fmt.Errorf("%w: field 'author_id' references non-existent user '%d'", interfaces.ErrForeignKeyConstraint, p.AuthorID)
	}
	for _, id := range tagIDs {
		if _, ok := r.db.tags[id]; !ok {
			return fmt.Errorf("%w: non-existent tag '%d'", interfaces.ErrForeignKeyConstraint, id)
		}
	}
	for _, id := range likerIDs {
		if _, ok := r.db.users[id]; !ok {
			return fmt.Errorf("%w: non-existent user '%d'", interfaces.ErrForeignKeyConstraint, id)
		}
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if _, ok := r.db.posts[id]; !ok {
		return interfaces.ErrNotFound
	}
	r.db.deletePostLocked(id)
	return nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return 0, err
	}
	return int64(len(r.db.posts)), nil
}
