package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

var (
	defaultTagOrder = []interfaces.OrderBy{{Field: interfaces.FieldTitle, Direction: interfaces.Asc}}
	tagColumns      = map[string]string{
		interfaces.FieldID:         "t.id",
		interfaces.FieldTitle:      "t.title",
		interfaces.FieldPostsCount: "posts_count",
	}
)

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
	pool, err := r.db.getPool()
	if err != nil {
		return nil, err
	}

	var args sqlArgs
	var conds []string
	if q.IDs != nil {
		conds = append(conds, "t.id = ANY("+args.add(q.IDs)+")")
	}
	if q.PostID != nil {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_tags x WHERE x.tag_id = t.id AND x.post_id = "+args.add(*q.PostID)+")")
	}
	sql := `
SELECT t.id, t.title,
       (SELECT COUNT(*) FROM post_tags pt WHERE pt.tag_id = t.id) AS posts_count
FROM tags t` + whereClause(conds) +
		orderClause(q.OrderBy, defaultTagOrder, tagColumns) +
		pageClause(&args, q.Limit, q.Offset)

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("find tags", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (interfaces.TagRow, error) {
		var t interfaces.TagRow
		err := row.Scan(&t.ID, &t.Title, &t.PostsCount)
		return t, err
	})
	if err != nil {
		return nil, mapError("scan tags", err)
	}
	return result, nil
}

func (r *tagRepository) GetByTitle(ctx context.Context, title string) (entities.Tag, error) {
	return r.getOne(ctx, `SELECT id, title FROM tags WHERE title = $1`, title)
}

func (r *tagRepository) Get(ctx context.Context, id int64) (entities.Tag, error) {
	return r.getOne(ctx, `SELECT id, title FROM tags WHERE id = $1`, id)
}

func (r *tagRepository) getOne(ctx context.Context, sql string, arg any) (entities.Tag, error) {
	pool, err := r.db.getPool()
	if err != nil {
		return entities.Tag{}, err
	}
	var t entities.Tag
	if err := pool.QueryRow(ctx, sql, arg).Scan(&t.ID, &t.Title); err != nil {
		return entities.Tag{}, mapError("get tag", err)
	}
	return t, nil
}

func (r *tagRepository) Create(ctx context.Context, t *entities.Tag) error {
	if err := t.Validate(); err != nil {
		return err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	err = pool.QueryRow(ctx, `INSERT INTO tags (title) VALUES ($1) RETURNING id`, t.Title).Scan(&t.ID)
	return mapError("create tag", err)
}

func (r *tagRepository) Update(ctx context.Context, t *entities.Tag) error {
	if err := t.Validate(); err != nil {
		return err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `UPDATE tags SET title = $2 WHERE id = $1`, t.ID, t.Title)
	if err != nil {
		return mapError("update tag", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *tagRepository) Delete(ctx context.Context, id int64) error {
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return mapError("delete tag", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *tagRepository) Count(ctx context.Context) (int64, error) {
	pool, err := r.db.getPool()
	if err != nil {
		return 0, err
	}
	var n int64
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags`).Scan(&n)
	return n, mapError("count tags", err)
}
