package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

var (
	defaultCommentOrder = []interfaces.OrderBy{{Field: interfaces.FieldPublishedAt, Direction: interfaces.Asc}}
	commentColumns      = map[string]string{
		interfaces.FieldID:          "c.id",
		interfaces.FieldPublishedAt: "c.published_at",
	}
)

type commentRepository struct {
	db *Database
}

func commentFilter(q *interfaces.CommentQuery, args *sqlArgs) string {
	if q.PostID == nil {
		return ""
	}
	return whereClause([]string{"c.post_id = " + args.add(*q.PostID)})
}

func (r *commentRepository) Find(ctx context.Context, q *interfaces.CommentQuery) ([]interfaces.CommentRow, error) {
	if q == nil {
		q = &interfaces.CommentQuery{}
	}
	if err := interfaces.ValidateOrder(q.OrderBy, interfaces.FieldID, interfaces.FieldPublishedAt); err != nil {
		return nil, err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return nil, err
	}

	var args sqlArgs
	sql := `
SELECT c.id, c.post_id, c.author_id, c.text, c.published_at,
       u.id, u.username, u.email, u.password_hash, u.is_staff, u.date_joined
FROM comments c
JOIN users u ON u.id = c.author_id` + commentFilter(q, &args) +
		orderClause(q.OrderBy, defaultCommentOrder, commentColumns) +
		pageClause(&args, q.Limit, q.Offset)

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("find comments", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (interfaces.CommentRow, error) {
		var c interfaces.CommentRow
		err := row.Scan(
			&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.PublishedAt,
			&c.Author.ID, &c.Author.Username, &c.Author.Email, &c.Author.PasswordHash, &c.Author.IsStaff, &c.Author.DateJoined,
		)
		return c, err
	})
	if err != nil {
		return nil, mapError("scan comments", err)
	}
	return result, nil
}

func (r *commentRepository) Get(ctx context.Context, id int64) (entities.Comment, error) {
	pool, err := r.db.getPool()
	if err != nil {
		return entities.Comment{}, err
	}
	var c entities.Comment
	err = pool.QueryRow(ctx,
		`SELECT id, post_id, author_id, text, published_at FROM comments WHERE id = $1`, id,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.PublishedAt)
	if err != nil {
		return entities.Comment{}, mapError("get comment", err)
	}
	return c, nil
}

func (r *commentRepository) Create(ctx context.Context, c *entities.Comment) error {
	if err := c.Validate(); err != nil {
		return err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	err = pool.QueryRow(ctx, `
INSERT INTO comments (post_id, author_id, text, published_at)
VALUES ($1, $2, $3, $4)
RETURNING id`, c.PostID, c.AuthorID, c.Text, c.PublishedAt).Scan(&c.ID)
	return mapError("create comment", err)
}

func (r *commentRepository) Update(ctx context.Context, c *entities.Comment) error {
	if err := c.Validate(); err != nil {
		return err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
UPDATE comments SET post_id = $2, author_id = $3, text = $4, published_at = $5
WHERE id = $1`, c.ID, c.PostID, c.AuthorID, c.Text, c.PublishedAt)
	if err != nil {
		return mapError("update comment", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id int64) error {
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return mapError("delete comment", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *commentRepository) Count(ctx context.Context, q *interfaces.CommentQuery) (int64, error) {
	if q == nil {
		q = &interfaces.CommentQuery{}
	}
	pool, err := r.db.getPool()
	if err != nil {
		return 0, err
	}
	var args sqlArgs
	var n int64
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments c`+commentFilter(q, &args), args...).Scan(&n)
	return n, mapError("count comments", err)
}
