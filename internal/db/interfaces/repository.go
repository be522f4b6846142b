package interfaces

import (
	"context"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
)

// PostRepository provides reads, aggregates and CRUD over posts
type PostRepository interface {
	// Find returns posts matching the query, each joined with its author and
	// annotated with likes_count. Default order is published_at desc.
	Find(ctx context.Context, q *PostQuery) ([]PostRow, error)

	// GetBySlug returns the post with the given slug, tags prefetched.
	GetBySlug(ctx context.Context, slug string) (PostRow, error)

	// Get retrieves a single post by its ID
	Get(ctx context.Context, id int64) (entities.Post, error)

	// CommentCounts runs one grouped count over the comments of the given
	// posts. Every existing post id gets an entry, zero included.
	CommentCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error)

	// TagIDs and LikerIDs return the relation sets of a post.
	TagIDs(ctx context.Context, postID int64) ([]int64, error)
	LikerIDs(ctx context.Context, postID int64) ([]int64, error)

	// Create inserts the post and its tag and like sets, filling p.ID.
	Create(ctx context.Context, p *entities.Post, tagIDs, likerIDs []int64) error

	// Update replaces the post fields and both relation sets.
	Update(ctx context.Context, p *entities.Post, tagIDs, likerIDs []int64) error

	// Delete removes the post together with its comments, tags and likes links.
	Delete(ctx context.Context, id int64) error

	Count(ctx context.Context) (int64, error)
}

// TagRepository provides reads and CRUD over tags
type TagRepository interface {
	// Find returns tags annotated with posts_count. Default order is title asc.
	Find(ctx context.Context, q *TagQuery) ([]TagRow, error)
	GetByTitle(ctx context.Context, title string) (entities.Tag, error)
	Get(ctx context.Context, id int64) (entities.Tag, error)
	Create(ctx context.Context, t *entities.Tag) error
	Update(ctx context.Context, t *entities.Tag) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// CommentRepository provides reads and CRUD over comments
type CommentRepository interface {
	// Find returns comments joined with their authors. Default order is published_at asc.
	Find(ctx context.Context, q *CommentQuery) ([]CommentRow, error)
	Get(ctx context.Context, id int64) (entities.Comment, error)
	Create(ctx context.Context, c *entities.Comment) error
	Update(ctx context.Context, c *entities.Comment) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context, q *CommentQuery) (int64, error)
}

// UserRepository provides reads and CRUD over users
type UserRepository interface {
	Find(ctx context.Context, q *UserQuery) ([]entities.User, error)
	Get(ctx context.Context, id int64) (entities.User, error)
	Create(ctx context.Context, u *entities.User) error

	// Delete removes the user with their posts, comments and likes.
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context, q *UserQuery) (int64, error)
}
