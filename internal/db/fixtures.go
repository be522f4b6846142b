package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// Sample is a small fixed blog used by tests and local development.
//
// Tag usage: go 5, python 4, django 3, travel 2, food 1, design 0.
// Likes: post-N has N-1 likes, so post-7 is the most popular.
// Comments: post-1 has 3, post-3 has 1, post-7 has 2.
type Sample struct {
	Admin   entities.User
	Readers []entities.User
	Tags    map[string]entities.Tag
	Posts   []entities.Post // newest first, Posts[i].Slug is "post-{i+1}"
}

// Post returns the sample post with the given 1-based number.
func (s *Sample) Post(n int) entities.Post {
	return s.Posts[n-1]
}

var sampleTagPosts = map[string][]int{
	"go":     {1, 2, 3, 4, 5},
	"python": {1, 2, 6, 7},
	"django": {2, 3, 6},
	"travel": {4, 7},
	"food":   {5},
	"design": {},
}

var sampleComments = map[int]int{1: 3, 3: 1, 7: 2}

// SeedSample writes the sample blog into an empty database. Post N is
// published N hours before now.
func SeedSample(ctx context.Context, db interfaces.Database, now time.Time) (*Sample, error) {
	s := &Sample{Tags: make(map[string]entities.Tag)}

	s.Admin = entities.User{Username: "admin", Email: "admin@example.com", IsStaff: true, DateJoined: now}
	if err := db.Users().Create(ctx, &s.Admin); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	for i := 1; i <= 6; i++ {
		u := entities.User{Username: fmt.Sprintf("reader%d", i), DateJoined: now}
		if err := db.Users().Create(ctx, &u); err != nil {
			return nil, fmt.Errorf("create reader: %w", err)
		}
		s.Readers = append(s.Readers, u)
	}

	for _, title := range []string{"design", "django", "food", "go", "python", "travel"} {
		t := entities.Tag{Title: title}
		if err := db.Tags().Create(ctx, &t); err != nil {
			return nil, fmt.Errorf("create tag %s: %w", title, err)
		}
		s.Tags[title] = t
	}

	for n := 1; n <= 7; n++ {
		var tagIDs []int64
		for title, posts := range sampleTagPosts {
			for _, p := range posts {
				if p == n {
					tagIDs = append(tagIDs, s.Tags[title].ID)
				}
			}
		}
		var likers []int64
		for _, r := range s.Readers[:n-1] {
			likers = append(likers, r.ID)
		}

		p := entities.Post{
			Title:       fmt.Sprintf("Post number %d", n),
			Text:        fmt.Sprintf("## Heading %d\n\nBody of **post %d**.\n", n, n),
			Slug:        fmt.Sprintf("post-%d", n),
			PublishedAt: now.Add(-time.Duration(n) * time.Hour),
			AuthorID:    s.Admin.ID,
		}
		if err := db.Posts().Create(ctx, &p, tagIDs, likers); err != nil {
			return nil, fmt.Errorf("create post %d: %w", n, err)
		}
		s.Posts = append(s.Posts, p)

		for i := 0; i < sampleComments[n]; i++ {
			c := entities.Comment{
				PostID:      p.ID,
				AuthorID:    s.Readers[i].ID,
				Text:        fmt.Sprintf("Comment %d on post %d", i+1, n),
				PublishedAt: p.PublishedAt.Add(time.Duration(i+1) * time.Minute),
			}
			if err := db.Comments().Create(ctx, &c); err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
		}
	}
	return s, nil
}

// RandomConfig sizes a generated data set
type RandomConfig struct {
	Users    int
	Posts    int
	Tags     int
	Comments int
	Seed     int64 // 0 picks a time based seed
}

// RandomSummary counts what SeedRandom created
type RandomSummary struct {
	Users, Posts, Tags, Comments int
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// SeedRandom fills the database with gofakeit generated content. The first
// user is always staff so there is an author for every post.
func SeedRandom(ctx context.Context, db interfaces.Database, cfg RandomConfig) (RandomSummary, error) {
	var sum RandomSummary
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := gofakeit.New(seed)

	var staff, everyone []int64
	for i := 0; i < max(cfg.Users, 1); i++ {
		u := entities.User{
			Username:   fmt.Sprintf("%s%d", strings.ToLower(f.Username()), i),
			Email:      f.Email(),
			IsStaff:    i == 0 || f.Number(1, 5) == 1,
			DateJoined: f.DateRange(time.Now().AddDate(-3, 0, 0), time.Now()).UTC(),
		}
		if err := db.Users().Create(ctx, &u); err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		everyone = append(everyone, u.ID)
		if u.IsStaff {
			staff = append(staff, u.ID)
		}
		sum.Users++
	}

	var tagIDs []int64
	seen := make(map[string]bool)
	for len(tagIDs) < cfg.Tags {
		title := strings.ToLower(f.Word())
		if len(title) > 16 {
			title = title[:16]
		}
		for n := 1; seen[title]; n++ {
			title = fmt.Sprintf("%.16s%d", title, n)
		}
		seen[title] = true
		t := entities.Tag{Title: title}
		if err := db.Tags().Create(ctx, &t); err != nil {
			return sum, fmt.Errorf("create tag: %w", err)
		}
		tagIDs = append(tagIDs, t.ID)
		sum.Tags++
	}

	var postIDs []int64
	for i := 0; i < cfg.Posts; i++ {
		title := strings.TrimSuffix(f.Sentence(f.Number(3, 8)), ".")
		p := entities.Post{
			Title:       title,
			Text:        f.Paragraph(f.Number(2, 5), 4, 12, "\n\n"),
			Slug:        fmt.Sprintf("%s-%d", strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-"), i+1),
			PublishedAt: f.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).UTC(),
			AuthorID:    staff[f.Number(0, len(staff)-1)],
		}
		if f.Bool() {
			img := fmt.Sprintf("posts/%s.jpg", f.UUID())
			p.Image = &img
		}
		if len(p.Slug) > 200 {
			p.Slug = p.Slug[len(p.Slug)-200:]
		}
		if err := db.Posts().Create(ctx, &p, pick(f, tagIDs, 3), pick(f, everyone, len(everyone))); err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		postIDs = append(postIDs, p.ID)
		sum.Posts++
	}

	for i := 0; i < cfg.Comments && len(postIDs) > 0; i++ {
		c := entities.Comment{
			PostID:      postIDs[f.Number(0, len(postIDs)-1)],
			AuthorID:    everyone[f.Number(0, len(everyone)-1)],
			Text:        f.Sentence(f.Number(4, 20)),
			PublishedAt: f.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).UTC(),
		}
		if err := db.Comments().Create(ctx, &c); err != nil {
			return sum, fmt.Errorf("create comment: %w", err)
		}
		sum.Comments++
	}
	return sum, nil
}

// pick returns up to n random distinct ids.
func pick(f *gofakeit.Faker, ids []int64, n int) []int64 {
	if len(ids) == 0 || n <= 0 {
		return nil
	}
	shuffled := append([]int64(nil), ids...)
	f.ShuffleAnySlice(shuffled)
	return shuffled[:f.Number(0, min(n, len(shuffled)))]
}
