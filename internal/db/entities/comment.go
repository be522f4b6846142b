package entities

import (
	"strings"
	"time"
)

// Comment belongs to one post and one author; both deletes cascade to it.
type Comment struct {
	ID          int64     `json:"id" db:"id"`
	PostID      int64     `json:"post_id" db:"post_id"`
	AuthorID    int64     `json:"author_id" db:"author_id"`
	Text        string    `json:"text" db:"text"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
}

func (c *Comment) Validate() error {
	switch {
	case c.PostID == 0:
		return invalid("post_id", "is required")
	case c.AuthorID == 0:
		return invalid("author_id", "is required")
	case strings.TrimSpace(c.Text) == "":
		return invalid("text", "is required")
	case c.PublishedAt.IsZero():
		return invalid("published_at", "is required")
	}
	return nil
}
