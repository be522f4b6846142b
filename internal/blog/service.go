package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/metrics"
	"github.com/Michael-Zapivahin/sensive-blog/internal/store"
)

// Template names of the public pages
const (
	TemplateIndex      = "index.html"
	TemplatePostDetail = "post-details.html"
	TemplateTagFilter  = "posts-list.html"
	TemplateContacts   = "contacts.html"
	TemplateNotFound   = "404.html"
)

// Sidebar and listing sizes
const (
	PopularLimit  = 5
	FreshLimit    = 5
	TagPostsLimit = 20
)

// ErrNotFound is returned for an unknown slug or tag title.
var ErrNotFound = interfaces.ErrNotFound

// Page is a template name with the context it renders.
type Page struct {
	Template string
	Context  any
}

type IndexContext struct {
	MostPopularPosts []PostView `json:"most_popular_posts"`
	PagePosts        []PostView `json:"page_posts"`
	PopularTags      []TagView  `json:"popular_tags"`
}

type PostDetailContext struct {
	Post             PostDetailView `json:"post"`
	PopularTags      []TagView      `json:"popular_tags"`
	MostPopularPosts []PostView     `json:"most_popular_posts"`
}

type TagFilterContext struct {
	Tag              string     `json:"tag"`
	PopularTags      []TagView  `json:"popular_tags"`
	Posts            []PostView `json:"posts"`
	MostPopularPosts []PostView `json:"most_popular_posts"`
}

type ContactsContext struct{}

// Service assembles the public pages. cache and metrics may be nil.
type Service struct {
	db         interfaces.Database
	serializer Serializer
	cache      *store.PageCache
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
}

func NewService(db interfaces.Database, serializer Serializer, cache *store.PageCache, logger *zap.SugaredLogger, metrics *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		db:         db,
		serializer: serializer,
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
	}
}

// Index shows the most popular and the freshest posts with the popular tags.
func (s *Service) Index(ctx context.Context) (Page, error) {
	c, err := build(ctx, s, TemplateIndex, "index", s.buildIndex)
	if err != nil {
		return Page{}, err
	}
	return Page{Template: TemplateIndex, Context: c}, nil
}

// PostDetail shows one post by slug.
func (s *Service) PostDetail(ctx context.Context, slug string) (Page, error) {
	c, err := build(ctx, s, TemplatePostDetail, "post:"+slug, func(ctx context.Context) (PostDetailContext, error) {
		return s.buildPostDetail(ctx, slug)
	})
	if err != nil {
		return Page{}, err
	}
	return Page{Template: TemplatePostDetail, Context: c}, nil
}

// TagFilter shows the posts under a tag title. Titles are stored lowercase,
// so the lookup is too.
func (s *Service) TagFilter(ctx context.Context, title string) (Page, error) {
	title = strings.ToLower(strings.TrimSpace(title))
	c, err := build(ctx, s, TemplateTagFilter, "tag:"+title, func(ctx context.Context) (TagFilterContext, error) {
		return s.buildTagFilter(ctx, title)
	})
	if err != nil {
		return Page{}, err
	}
	return Page{Template: TemplateTagFilter, Context: c}, nil
}

func (s *Service) Contacts(ctx context.Context) (Page, error) {
	return Page{Template: TemplateContacts, Context: ContactsContext{}}, nil
}

// build runs fn through the page cache and records the outcome.
func build[T any](ctx context.Context, s *Service, template, key string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := store.Cached(ctx, s.cache, key, fn)
	s.metrics.RecordPageBuild(ctx, template, err, time.Since(start))
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Errorw("Failed to build page", "template", template, "key", key, "error", err)
	}
	return v, err
}

func (s *Service) sidebar(ctx context.Context) ([]PostView, []TagView, error) {
	popular, err := Posts(s.db).Popular().Limit(PopularLimit).FetchWithCommentsCount(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("popular posts: %w", err)
	}
	tags, err := Tags(s.db).Popular().Limit(PopularLimit).All(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("popular tags: %w", err)
	}
	return s.serializer.Posts(popular), s.serializer.Tags(tags), nil
}

func (s *Service) buildIndex(ctx context.Context) (IndexContext, error) {
	popularPosts, popularTags, err := s.sidebar(ctx)
	if err != nil {
		return IndexContext{}, err
	}
	fresh, err := Posts(s.db).Fresh().Limit(FreshLimit).FetchWithCommentsCount(ctx)
	if err != nil {
		return IndexContext{}, fmt.Errorf("fresh posts: %w", err)
	}
	return IndexContext{
		MostPopularPosts: popularPosts,
		PagePosts:        s.serializer.Posts(fresh),
		PopularTags:      popularTags,
	}, nil
}

func (s *Service) buildPostDetail(ctx context.Context, slug string) (PostDetailContext, error) {
	post, err := s.db.Posts().GetBySlug(ctx, slug)
	if err != nil {
		return PostDetailContext{}, err
	}
	comments, err := s.db.Comments().Find(ctx, &interfaces.CommentQuery{PostID: &post.ID})
	if err != nil {
		return PostDetailContext{}, fmt.Errorf("post comments: %w", err)
	}
	related, err := Tags(s.db).Popular().OfPost(post.ID).All(ctx)
	if err != nil {
		return PostDetailContext{}, fmt.Errorf("post tags: %w", err)
	}
	view, err := s.serializer.PostDetail(post, comments, related)
	if err != nil {
		return PostDetailContext{}, fmt.Errorf("render post text: %w", err)
	}

	popularPosts, popularTags, err := s.sidebar(ctx)
	if err != nil {
		return PostDetailContext{}, err
	}
	return PostDetailContext{
		Post:             view,
		PopularTags:      popularTags,
		MostPopularPosts: popularPosts,
	}, nil
}

func (s *Service) buildTagFilter(ctx context.Context, title string) (TagFilterContext, error) {
	tag, err := s.db.Tags().GetByTitle(ctx, title)
	if err != nil {
		return TagFilterContext{}, err
	}
	popularPosts, popularTags, err := s.sidebar(ctx)
	if err != nil {
		return TagFilterContext{}, err
	}
	related, err := Posts(s.db).WithTag(tag.ID).PrefetchTags().Limit(TagPostsLimit).FetchWithCommentsCount(ctx)
	if err != nil {
		return TagFilterContext{}, fmt.Errorf("tag posts: %w", err)
	}
	return TagFilterContext{
		Tag:              tag.Title,
		PopularTags:      popularTags,
		Posts:            s.serializer.Posts(related),
		MostPopularPosts: popularPosts,
	}, nil
}
