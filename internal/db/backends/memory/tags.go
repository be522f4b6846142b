package memory

import (
	"context"
	"fmt"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/query"
)

var defaultTagOrder = []interfaces.OrderBy{{Field: interfaces.FieldTitle, Direction: interfaces.Asc}}

var tagBuilder = query.NewBuilder(func(r interfaces.TagRow, field string) interface{} {
	switch field {
	case interfaces.FieldID:
		return r.ID
	case interfaces.FieldTitle:
		return r.Title
	case interfaces.FieldPostsCount:
		return r.PostsCount
	}
	return nil
})

type tagRepository struct {
	db *Database
}

func (r *tagRepository) Find(ctx context.Context, q *interfaces.TagQuery) ([]interfaces.TagRow, error) {
	if q == nil {
		q = &interfaces.TagQuery{}
	}
	if err := interfaces.ValidateOrder(q.OrderBy,
		interfaces.FieldID, interfaces.FieldTitle, interfaces.FieldPostsCount,
	); err != nil {
		return nil, err
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return nil, err
	}

	rows := make([]interfaces.TagRow, 0, len(r.db.tags))
	for _, id := range sortedIDs(r.db.tags) {
		rows = append(rows, r.db.tagRow(r.db.tags[id]))
	}

	var preds []func(interfaces.TagRow) bool
	if q.IDs != nil {
		ids := q.IDs
		preds = append(preds, func(t interfaces.TagRow) bool { return query.ContainsID(ids, t.ID) })
	}
	if q.PostID != nil {
		ofPost := r.db.postTags[*q.PostID]
		preds = append(preds, func(t interfaces.TagRow) bool { return query.ContainsID(ofPost, t.ID) })
	}
	rows = tagBuilder.Filter(rows, preds...)

	orderBy := q.OrderBy
	if len(orderBy) == 0 {
		orderBy = defaultTagOrder
	}
	rows = tagBuilder.ApplySort(rows, orderBy)
	return tagBuilder.ApplyPagination(rows, q.Limit, q.Offset), nil
}

func (r *tagRepository) GetByTitle(ctx context.Context, title string) (entities.Tag, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return entities.Tag{}, err
	}
	for _, t := range r.db.tags {
		if t.Title == title {
			return t, nil
		}
	}
	return entities.Tag{}, interfaces.ErrNotFound
}

func (r *tagRepository) Get(ctx context.Context, id int64) (entities.Tag, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return entities.Tag{}, err
	}
	t, ok := r.db.tags[id]
	if !ok {
		return entities.Tag{}, interfaces.ErrNotFound
	}
	return t, nil
}

func (r *tagRepository) Create(ctx context.Context, t *entities.Tag) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if err := r.checkUnique(t, 0); err != nil {
		return err
	}
	t.ID = r.db.nextID("tags")
	r.db.tags[t.ID] = *t
	return nil
}

func (r *tagRepository) Update(ctx context.Context, t *entities.Tag) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if _, ok := r.db.tags[t.ID]; !ok {
		return interfaces.ErrNotFound
	}
	if err := r.checkUnique(t, t.ID); err != nil {
		return err
	}
	r.db.tags[t.ID] = *t
	return nil
}

func (r *tagRepository) checkUnique(t *entities.Tag, excludeID int64) error {
	for id, existing := range r.db.tags {
		if id != excludeID && existing.Title == t.Title {
			return fmt.Errorf("%w: field 'title' value '%s'", interfaces.ErrUniqueConstraint, t.Title)
		}
	}
	return nil
}

func (r *tagRepository) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if _, ok := r.db.tags[id]; !ok {
		return interfaces.ErrNotFound
	}
	for postID, tagIDs := range r.db.postTags {
		r.db.postTags[postID] = removeID(tagIDs, id)
	}
	delete(r.db.tags, id)
	return nil
}

func (r *tagRepository) Count(ctx context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return 0, err
	}
	return int64(len(r.db.tags)), nil
}
