package blog

import (
	"html/template"
	"strings"
	"time"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// TeaserLength is the number of characters of post text shown in listings.
const TeaserLength = 200

// TagView is the page projection of a tag.
type TagView struct {
	Title        string `json:"title"`
	PostsWithTag int64  `json:"posts_with_tag"`
}

// PostView is the listing projection of a post.
type PostView struct {
	Title          string    `json:"title"`
	TeaserText     string    `json:"teaser_text"`
	Author         string    `json:"author"`
	CommentsAmount int64     `json:"comments_amount"`
	ImageURL       *string   `json:"image_url"`
	PublishedAt    time.Time `json:"published_at"`
	Slug           string    `json:"slug"`
	Tags           []TagView `json:"tags"`
	FirstTagTitle  *string   `json:"first_tag_title"` // nil for an untagged post
}

// CommentView is one comment under a post.
type CommentView struct {
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
	Author      string    `json:"author"`
}

// PostDetailView is the full projection of a single post.
type PostDetailView struct {
	Title       string        `json:"title"`
	Text        string        `json:"text"`
	TextHTML    template.HTML `json:"text_html"`
	Author      string        `json:"author"`
	Comments    []CommentView `json:"comments"`
	LikesAmount int64         `json:"likes_amount"`
	ImageURL    *string       `json:"image_url"`
	PublishedAt time.Time     `json:"published_at"`
	Slug        string        `json:"slug"`
	Tags        []TagView     `json:"tags"`
}

// Serializer maps rows to page projections. MediaURL prefixes image paths.
type Serializer struct {
	MediaURL string
}

func (s Serializer) Tag(t interfaces.TagRow) TagView {
	return TagView{Title: t.Title, PostsWithTag: t.PostsCount}
}

func (s Serializer) Tags(rows []interfaces.TagRow) []TagView {
	views := make([]TagView, len(rows))
	for i, t := range rows {
		views[i] = s.Tag(t)
	}
	return views
}

func (s Serializer) Post(p PostWithComments) PostView {
	v := PostView{
		Title:          p.Title,
		TeaserText:     Teaser(p.Text),
		Author:         p.Author.DisplayName(),
		CommentsAmount: p.CommentsCount,
		ImageURL:       s.ImageURL(p.Post),
		PublishedAt:    p.PublishedAt,
		Slug:           p.Slug,
		Tags:           s.Tags(p.Tags),
	}
	if len(p.Tags) > 0 {
		first := p.Tags[0].Title
		v.FirstTagTitle = &first
	}
	return v
}

func (s Serializer) Posts(posts []PostWithComments) []PostView {
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = s.Post(p)
	}
	return views
}

func (s Serializer) Comment(c interfaces.CommentRow) CommentView {
	return CommentView{Text: c.Text, PublishedAt: c.PublishedAt, Author: c.Author.DisplayName()}
}

// PostDetail projects a post with its comments and its tags ranked by popularity.
func (s Serializer) PostDetail(p interfaces.PostRow, comments []interfaces.CommentRow, tags []interfaces.TagRow) (PostDetailView, error) {
	textHTML, err := RenderMarkdown(p.Text)
	if err != nil {
		return PostDetailView{}, err
	}
	v := PostDetailView{
		Title:       p.Title,
		Text:        p.Text,
		TextHTML:    textHTML,
		Author:      p.Author.DisplayName(),
		Comments:    make([]CommentView, len(comments)),
		LikesAmount: p.LikesCount,
		ImageURL:    s.ImageURL(p.Post),
		PublishedAt: p.PublishedAt,
		Slug:        p.Slug,
		Tags:        s.Tags(tags),
	}
	for i, c := range comments {
		v.Comments[i] = s.Comment(c)
	}
	return v, nil
}

// ImageURL returns the public URL of the post image, or nil without one.
func (s Serializer) ImageURL(p entities.Post) *string {
	if !p.HasImage() {
		return nil
	}
	img := *p.Image
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		return &img
	}
	url := strings.TrimSuffix(s.MediaURL, "/") + "/" + strings.TrimPrefix(img, "/")
	return &url
}

// Teaser returns the first TeaserLength characters of text.
func Teaser(text string) string {
	n := 0
	for i := range text {
		if n == TeaserLength {
			return text[:i]
		}
		n++
	}
	return text
}
