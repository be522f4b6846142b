package blog

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

func TestTeaser(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short", "hello", 5},
		{"exact", strings.Repeat("a", TeaserLength), TeaserLength},
		{"long ascii", strings.Repeat("a", 500), TeaserLength},
		{"long multibyte", strings.Repeat("ж", 300), TeaserLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Teaser(tt.text)
			assert.Equal(t, tt.want, utf8.RuneCountInString(got))
			assert.True(t, utf8.ValidString(got))
			assert.True(t, strings.HasPrefix(tt.text, got))
		})
	}
}

func TestImageURL(t *testing.T) {
	s := Serializer{MediaURL: "/media/"}

	assert.Nil(t, s.ImageURL(entities.Post{}))
	assert.Nil(t, s.ImageURL(entities.Post{Image: interfaces.Ptr("")}))

	got := s.ImageURL(entities.Post{Image: interfaces.Ptr("posts/cat.jpg")})
	require.NotNil(t, got)
	assert.Equal(t, "/media/posts/cat.jpg", *got)

	got = s.ImageURL(entities.Post{Image: interfaces.Ptr("https://cdn.example.com/cat.jpg")})
	require.NotNil(t, got)
	assert.Equal(t, "https://cdn.example.com/cat.jpg", *got)
}

func TestSerializePost(t *testing.T) {
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	row := PostWithComments{
		PostRow: interfaces.PostRow{
			Post: entities.Post{
				Title:       "Hello",
				Text:        strings.Repeat("x", 300),
				Slug:        "hello",
				PublishedAt: published,
			},
			Author: entities.User{Username: "alice"},
			Tags: []interfaces.TagRow{
				{Tag: entities.Tag{Title: "go"}, PostsCount: 3},
				{Tag: entities.Tag{Title: "web"}, PostsCount: 1},
			},
		},
		CommentsCount: 4,
	}

	v := Serializer{}.Post(row)
	assert.Equal(t, "Hello", v.Title)
	assert.Len(t, v.TeaserText, TeaserLength)
	assert.Equal(t, "alice", v.Author)
	assert.EqualValues(t, 4, v.CommentsAmount)
	assert.Nil(t, v.ImageURL)
	assert.Equal(t, published, v.PublishedAt)
	assert.Equal(t, "hello", v.Slug)
	assert.Equal(t, []TagView{{Title: "go", PostsWithTag: 3}, {Title: "web", PostsWithTag: 1}}, v.Tags)
	require.NotNil(t, v.FirstTagTitle)
	assert.Equal(t, "go", *v.FirstTagTitle)
}

func TestSerializeUntaggedPost(t *testing.T) {
	v := Serializer{}.Post(PostWithComments{PostRow: interfaces.PostRow{Tags: []interfaces.TagRow{}}})
	assert.Nil(t, v.FirstTagTitle)
	assert.NotNil(t, v.Tags)
	assert.Empty(t, v.Tags)
}

func TestSerializePostDetail(t *testing.T) {
	post := interfaces.PostRow{
		Post: entities.Post{
			Title: "Detail",
			Text:  "Some *emphasis*",
			Slug:  "detail",
			Image: interfaces.Ptr("a.png"),
		},
		Author:     entities.User{Username: "bob"},
		LikesCount: 3,
	}
	comments := []interfaces.CommentRow{
		{Comment: entities.Comment{Text: "first"}, Author: entities.User{Username: "carol"}},
		{Comment: entities.Comment{Text: "second"}, Author: entities.User{Username: "dave"}},
	}
	tags := []interfaces.TagRow{{Tag: entities.Tag{Title: "go"}, PostsCount: 7}}

	v, err := Serializer{MediaURL: "/media"}.PostDetail(post, comments, tags)
	require.NoError(t, err)
	assert.Equal(t, "Detail", v.Title)
	assert.Equal(t, "Some *emphasis*", v.Text)
	assert.Contains(t, string(v.TextHTML), "<em>emphasis</em>")
	assert.Equal(t, "bob", v.Author)
	assert.EqualValues(t, 3, v.LikesAmount)
	require.NotNil(t, v.ImageURL)
	assert.Equal(t, "/media/a.png", *v.ImageURL)
	assert.Equal(t, []CommentView{{Text: "first", Author: "carol"}, {Text: "second", Author: "dave"}}, v.Comments)
	assert.Equal(t, []TagView{{Title: "go", PostsWithTag: 7}}, v.Tags)
}
