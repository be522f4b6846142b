package memory

import (
	"context"
	"fmt"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/query"
)

var defaultCommentOrder = []interfaces.OrderBy{{Field: interfaces.FieldPublishedAt, Direction: interfaces.Asc}}

var commentBuilder = query.NewBuilder(func(r interfaces.CommentRow, field string) interface{} {
	switch field {
	case interfaces.FieldID:
		return r.ID
	case interfaces.FieldPublishedAt:
		return r.PublishedAt
	}
	return nil
})

type commentRepository struct {
	db *Database
}

// filtered must be called with the read lock held.
func (r *commentRepository) filtered(q *interfaces.CommentQuery) []interfaces.CommentRow {
	rows := make([]interfaces.CommentRow, 0)
	for _, id := range sortedIDs(r.db.comments) {
		c := r.db.comments[id]
		if q.PostID != nil && c.PostID != *q.PostID {
			continue
		}
		rows = append(rows, interfaces.CommentRow{Comment: c, Author: r.db.users[c.AuthorID]})
	}
	return rows
}

func (r *commentRepository) Find(ctx context.Context, q *interfaces.CommentQuery) ([]interfaces.CommentRow, error) {
	if q == nil {
		q = &interfaces.CommentQuery{}
	}
	if err := interfaces.ValidateOrder(q.OrderBy, interfaces.FieldID, interfaces.FieldPublishedAt); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return nil, err
	}

	orderBy := q.OrderBy
	if len(orderBy) == 0 {
		orderBy = defaultCommentOrder
	}
	rows := commentBuilder.ApplySort(r.filtered(q), orderBy)
	return commentBuilder.ApplyPagination(rows, q.Limit, q.Offset), nil
}

func (r *commentRepository) Get(ctx context.Context, id int64) (entities.Comment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return entities.Comment{}, err
	}
	c, ok := r.db.comments[id]
	if !ok {
		return entities.Comment{}, interfaces.ErrNotFound
	}
	return c, nil
}

func (r *commentRepository) Create(ctx context.Context, c *entities.Comment) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if err := r.checkReferences(c); err != nil {
		return err
	}
	c.ID = r.db.nextID("comments")
	r.db.comments[c.ID] = *c
	return nil
}

func (r *commentRepository) Update(ctx context.Context, c *entities.Comment) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if _, ok := r.db.comments[c.ID]; !ok {
		return interfaces.ErrNotFound
	}
	if err := r.checkReferences(c); err != nil {
		return err
	}
	r.db.comments[c.ID] = *c
	return nil
}

func (r *commentRepository) checkReferences(c *entities.Comment) error {
	if _, ok := r.db.posts[c.PostID]; !ok {
		return fmt.Errorf("%w: field 'post_id' references non-existent post '%d'", interfaces.ErrForeignKeyConstraint, c.PostID)
	}
	if _, ok := r.db.users[c.AuthorID]; !ok {
		return fmt.Errorf("%w: field 'author_id' references non-existent user '%d'", interfaces.ErrForeignKeyConstraint, c.AuthorID)
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if _, ok := r.db.comments[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(r.db.comments, id)
	return nil
}

func (r *commentRepository) Count(ctx context.Context, q *interfaces.CommentQuery) (int64, error) {
	if q == nil {
		q = &interfaces.CommentQuery{}
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return 0, err
	}
	return int64(len(r.filtered(q))), nil
}
