package entities

import (
	"net/url"
	"strings"
)

// Tag represents a post label. Titles are stored lowercase.
type Tag struct {
	ID    int64  `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

const maxTagTitleLen = 20

// Clean normalizes the title before persistence.
func (t *Tag) Clean() {
	t.Title = strings.ToLower(strings.TrimSpace(t.Title))
}

// AbsoluteURL is the public address of the tag filter page.
func (t Tag) AbsoluteURL() string {
	return "/tag/" + url.PathEscape(t.Title)
}

func (t *Tag) Validate() error {
	t.Clean()
	if t.Title == "" {
		return invalid("title", "is required")
	}
	if len([]rune(t.Title)) > maxTagTitleLen {
		return invalid("title", "must be at most %d characters", maxTagTitleLen)
	}
	return nil
}
