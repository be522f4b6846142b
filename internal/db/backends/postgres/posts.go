package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

var (
	defaultPostOrder = []interfaces.OrderBy{{Field: interfaces.FieldPublishedAt, Direction: interfaces.Desc}}
	postColumns      = map[string]string{
		interfaces.FieldID:          "p.id",
		interfaces.FieldTitle:       "p.title",
		interfaces.FieldPublishedAt: "p.published_at",
		interfaces.FieldLikesCount:  "likes_count",
	}
)

const selectPostRows = `
SELECT p.id, p.title, p.text, p.slug, p.image, p.published_at, p.author_id,
       u.id, u.username, u.email, u.password_hash, u.is_staff, u.date_joined,
       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS likes_count
FROM posts p
JOIN users u ON u.id = p.author_id`

const selectPostTags = `
SELECT pt.post_id, t.id, t.title,
       (SELECT COUNT(*) FROM post_tags c WHERE c.tag_id = t.id) AS posts_count
FROM post_tags pt
JOIN tags t ON t.id = pt.tag_id
WHERE pt.post_id = ANY($1)
ORDER BY t.title ASC, t.id ASC`

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
	pool, err := r.db.getPool()
	if err != nil {
		return nil, err
	}

	var args sqlArgs
	var conds []string
	if q.IDs != nil {
		conds = append(conds, "p.id = ANY("+args.add(q.IDs)+")")
	}
	if q.TagID != nil {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_tags x WHERE x.post_id = p.id AND x.tag_id = "+args.add(*q.TagID)+")")
	}
	if q.Slug != nil {
		conds = append(conds, "p.slug = "+args.add(*q.Slug))
	}
	sql := selectPostRows + whereClause(conds) +
		orderClause(q.OrderBy, defaultPostOrder, postColumns) +
		pageClause(&args, q.Limit, q.Offset)

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("find posts", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (interfaces.PostRow, error) {
		var p interfaces.PostRow
		err := row.Scan(
			&p.ID, &p.Title, &p.Text, &p.Slug, &p.Image, &p.PublishedAt, &p.AuthorID,
			&p.Author.ID, &p.Author.Username, &p.Author.Email, &p.Author.PasswordHash, &p.Author.IsStaff, &p.Author.DateJoined,
			&p.LikesCount,
		)
		return p, err
	})
	if err != nil {
		return nil, mapError("scan posts", err)
	}

	if q.PrefetchTags && len(result) > 0 {
		if err := r.prefetchTags(ctx, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// prefetchTags loads the tags of every row in one query.
func (r *postRepository) prefetchTags(ctx context.Context, posts []interfaces.PostRow) error {
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}

	ids := make([]int64, len(posts))
	byID := make(map[int64][]interfaces.TagRow, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = []interfaces.TagRow{}
	}

	rows, err := pool.Query(ctx, selectPostTags, ids)
	if err != nil {
		return mapError("prefetch tags", err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID int64
		var t interfaces.TagRow
		if err := rows.Scan(&postID, &t.ID, &t.Title, &t.PostsCount); err != nil {
			return mapError("scan tags", err)
		}
		byID[postID] = append(byID[postID], t)
	}
	if err := rows.Err(); err != nil {
		return mapError("prefetch tags", err)
	}

	for i := range posts {
		posts[i].Tags = byID[posts[i].ID]
	}
	return nil
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
	pool, err := r.db.getPool()
	if err != nil {
		return entities.Post{}, err
	}
	var p entities.Post
	err = pool.QueryRow(ctx,
		`SELECT id, title, text, slug, image, published_at, author_id FROM posts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Text, &p.Slug, &p.Image, &p.PublishedAt, &p.AuthorID)
	if err != nil {
		return entities.Post{}, mapError("get post", err)
	}
	return p, nil
}

func (r *postRepository) CommentCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	pool, err := r.db.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
SELECT p.id, COUNT(c.id)
FROM posts p
LEFT JOIN comments c ON c.post_id = p.id
WHERE p.id = ANY($1)
GROUP BY p.id`, postIDs)
	if err != nil {
		return nil, mapError("comment counts", err)
	}
	defer rows.Close()

	counts := make(map[int64]int64, len(postIDs))
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, mapError("scan comment counts", err)
		}
		counts[id] = n
	}
	return counts, mapError("comment counts", rows.Err())
}

func (r *postRepository) TagIDs(ctx context.Context, postID int64) ([]int64, error) {
	return r.relation(ctx, postID, `SELECT tag_id FROM post_tags WHERE post_id = $1 ORDER BY tag_id`)
}

func (r *postRepository) LikerIDs(ctx context.Context, postID int64) ([]int64, error) {
	return r.relation(ctx, postID, `SELECT user_id FROM post_likes WHERE post_id = $1 ORDER BY user_id`)
}

func (r *postRepository) relation(ctx context.Context, postID int64, sql string) ([]int64, error) {
	pool, err := r.db.getPool()
	if err != nil {
		return nil, err
	}
	ok, err := exists(ctx, pool, "posts", postID)
	if err != nil {
		return nil, mapError("post exists", err)
	}
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	rows, err := pool.Query(ctx, sql, postID)
	if err != nil {
		return nil, mapError("post relation", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, mapError("scan post relation", err)
	}
	return ids, nil
}

func (r *postRepository) Create(ctx context.Context, p *entities.Post, tagIDs, likerIDs []int64) error {
	if err := p.Validate(); err != nil {
		return err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
INSERT INTO posts (title, text, slug, image, published_at, author_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, p.Title, p.Text, p.Slug, p.Image, p.PublishedAt, p.AuthorID).Scan(&p.ID)
		if err != nil {
			return err
		}
		return writeRelations(ctx, tx, p.ID, tagIDs, likerIDs)
	})
	if err != nil {
		p.ID = 0
		return mapError("create post", err)
	}
	return nil
}

func (r *postRepository) Update(ctx context.Context, p *entities.Post, tagIDs, likerIDs []int64) error {
	if err := p.Validate(); err != nil {
		return err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE posts SET title = $2, text = $3, slug = $4, image = $5, published_at = $6, author_id = $7
WHERE id = $1`, p.ID, p.Title, p.Text, p.Slug, p.Image, p.PublishedAt, p.AuthorID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if _, err := tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, p.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1`, p.ID); err != nil {
			return err
		}
		return writeRelations(ctx, tx, p.ID, tagIDs, likerIDs)
	})
	return mapError("update post", err)
}

func writeRelations(ctx context.Context, tx pgx.Tx, postID int64, tagIDs, likerIDs []int64) error {
	if len(tagIDs) > 0 {
		_, err := tx.Exec(ctx, `
INSERT INTO post_tags (post_id, tag_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT DO NOTHING`, postID, tagIDs)
		if err != nil {
			return err
		}
	}
	if len(likerIDs) > 0 {
		_, err := tx.Exec(ctx, `
INSERT INTO post_likes (post_id, user_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT DO NOTHING`, postID, likerIDs)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id int64) error {
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return mapError("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	pool, err := r.db.getPool()
	if err != nil {
		return 0, err
	}
	var n int64
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, mapError("count posts", err)
}
