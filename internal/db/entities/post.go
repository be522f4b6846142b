package entities

import (
	"regexp"
	"strings"
	"time"
)

// Post represents a blog post
type Post struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Text        string    `json:"text" db:"text"`
	Slug        string    `json:"slug" db:"slug"`
	Image       *string   `json:"image,omitempty" db:"image"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	AuthorID    int64     `json:"author_id" db:"author_id"`
}

const (
	maxPostTitleLen = 200
	maxSlugLen      = 200
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// AbsoluteURL is the public address of the post detail page.
func (p Post) AbsoluteURL() string {
	return "/post/" + p.Slug
}

// HasImage reports whether an image is attached.
func (p Post) HasImage() bool {
	return p.Image != nil && *p.Image != ""
}

func (p *Post) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)

	switch {
	case p.Title == "":
		return invalid("title", "is required")
	case len([]rune(p.Title)) > maxPostTitleLen:
		return invalid("title", "must be at most %d characters", maxPostTitleLen)
	case p.Text == "":
		return invalid("text", "is required")
	case p.Slug == "":
		return invalid("slug", "is required")
	case len(p.Slug) > maxSlugLen:
		return invalid("slug", "must be at most %d characters", maxSlugLen)
	case !slugPattern.MatchString(p.Slug):
		return invalid("slug", "may contain only letters, numbers, underscores or hyphens")
	case p.PublishedAt.IsZero():
		return invalid("published_at", "is required")
	case p.AuthorID == 0:
		return invalid("author_id", "is required")
	}
	if p.Image != nil && strings.TrimSpace(*p.Image) == "" {
		p.Image = nil
	}
	return nil
}
