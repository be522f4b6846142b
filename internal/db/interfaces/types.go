package interfaces

import (
	"errors"
	"fmt"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
)

// Sort directions
const (
	Asc  = "asc"
	Desc = "desc"
)

// Orderable fields. Repositories reject anything else with ErrInvalidQuery.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldPublishedAt = "published_at"
	FieldLikesCount  = "likes_count"
	FieldPostsCount  = "posts_count"
)

// OrderBy represents sorting configuration
type OrderBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc" or "desc"
}

// PostQuery selects posts. Zero value means every post in default order.
type PostQuery struct {
	IDs          []int64   `json:"ids,omitempty"`
	TagID        *int64    `json:"tag_id,omitempty"`
	Slug         *string   `json:"slug,omitempty"`
	OrderBy      []OrderBy `json:"order_by,omitempty"`
	Limit        *int      `json:"limit,omitempty"`
	Offset       *int      `json:"offset,omitempty"`
	PrefetchTags bool      `json:"prefetch_tags,omitempty"`
}

// TagQuery selects tags. PostID restricts to the tag set of one post while
// keeping the global posts_count of each tag.
type TagQuery struct {
	IDs     []int64   `json:"ids,omitempty"`
	PostID  *int64    `json:"post_id,omitempty"`
	OrderBy []OrderBy `json:"order_by,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
	Offset  *int      `json:"offset,omitempty"`
}

// CommentQuery selects comments.
type CommentQuery struct {
	PostID  *int64    `json:"post_id,omitempty"`
	OrderBy []OrderBy `json:"order_by,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
	Offset  *int      `json:"offset,omitempty"`
}

// UserQuery selects users ordered by id.
type UserQuery struct {
	StaffOnly bool `json:"staff_only,omitempty"`
	Limit     *int `json:"limit,omitempty"`
	Offset    *int `json:"offset,omitempty"`
}

// PostRow is a post joined with its author and likes aggregate.
// Tags is nil unless the query asked for PrefetchTags.
type PostRow struct {
	entities.Post
	Author     entities.User `json:"author"`
	LikesCount int64         `json:"likes_count"`
	Tags       []TagRow      `json:"tags,omitempty"`
}

// TagRow is a tag annotated with the number of posts carrying it.
type TagRow struct {
	entities.Tag
	PostsCount int64 `json:"posts_count"`
}

// CommentRow is a comment joined with its author.
type CommentRow struct {
	entities.Comment
	Author entities.User `json:"author"`
}

// Common database errors
var (
	ErrNotFound             = errors.New("record not found")
	ErrUniqueConstraint     = errors.New("unique constraint violation")
	ErrForeignKeyConstraint = errors.New("foreign key constraint violation")
	ErrInvalidQuery         = errors.New("invalid query")
	ErrDatabaseNotConnected = errors.New("database not connected")
)

// DatabaseError wraps database-specific errors
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Wrap returns a DatabaseError for op, or nil when err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}

// ValidateOrder checks every OrderBy against the allowed field set.
func ValidateOrder(orderBy []OrderBy, allowed ...string) error {
	for _, o := range orderBy {
		if o.Direction != Asc && o.Direction != Desc {
			return fmt.Errorf("%w: direction %q", ErrInvalidQuery, o.Direction)
		}
		ok := false
		for _, f := range allowed {
			if f == o.Field {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: cannot order by %q", ErrInvalidQuery, o.Field)
		}
	}
	return nil
}

// Ptr returns a pointer to v. Handy for Limit, Offset and friends.
func Ptr[T any](v T) *T {
	return &v
}
