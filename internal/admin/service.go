// Package admin is the management surface over the Entity Store: validated
// CRUD for users, posts, tags and comments.
package admin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/metrics"
	"github.com/Michael-Zapivahin/sensive-blog/internal/store"
)

// Listing page sizes
const (
	DefaultPageSize  = 100
	CommentsPageSize = 50
)

const minPasswordLen = 8

// List is one page of a listing.
type List[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

type UserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsStaff  bool   `json:"is_staff"`
}

type PostInput struct {
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	Slug        string     `json:"slug"`
	Image       *string    `json:"image"`
	PublishedAt *time.Time `json:"published_at"` // defaults to now
	AuthorID    int64      `json:"author_id"`
	TagIDs      []int64    `json:"tag_ids"`
	LikeIDs     []int64    `json:"like_ids"`
}

// PostDetail is a post with both of its relation sets.
type PostDetail struct {
	entities.Post
	TagIDs  []int64 `json:"tag_ids"`
	LikeIDs []int64 `json:"like_ids"`
}

type TagInput struct {
	Title string `json:"title"`
}

type CommentInput struct {
	PostID      int64      `json:"post_id"`
	AuthorID    int64      `json:"author_id"`
	Text        string     `json:"text"`
	PublishedAt *time.Time `json:"published_at"` // defaults to now
}

// Service validates admin writes and invalidates the page cache after each one.
type Service struct {
	db      interfaces.Database
	cache   *store.PageCache
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	now      func() time.Time
	hashCost int
}

func NewService(db interfaces.Database, cache *store.PageCache, logger *zap.SugaredLogger, metrics *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		db:       db,
		cache:    cache,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
		hashCost: bcrypt.DefaultCost,
	}
}

// written records a successful write and drops every cached page.
func (s *Service) written(ctx context.Context, resource, op string, id int64) {
	s.metrics.RecordAdminWrite(ctx, resource, op)
	s.logger.Infow("Admin write", "resource", resource, "op", op, "id", id)
	if s.cache == nil {
		return
	}
	// Invalidate logs its own failure; cached pages then age out through their TTL.
	_ = s.cache.Invalidate(ctx)
}

// clampPage keeps page at least 1 and small enough that (page-1)*size fits an int.
func clampPage(page, size int) int {
	if page < 1 {
		return 1
	}
	if last := math.MaxInt / size; page > last {
		return last
	}
	return page
}

func pageBounds(page, size int) (limit, offset *int) {
	return interfaces.Ptr(size), interfaces.Ptr((page - 1) * size)
}

func invalid(field, message string) error {
	return &entities.ValidationError{Field: field, Message: message}
}

// Users

func (s *Service) ListUsers(ctx context.Context, page int) (List[entities.User], error) {
	page = clampPage(page, DefaultPageSize)
	limit, offset := pageBounds(page, DefaultPageSize)
	users, err := s.db.Users().Find(ctx, &interfaces.UserQuery{Limit: limit, Offset: offset})
	if err != nil {
		return List[entities.User]{}, err
	}
	total, err := s.db.Users().Count(ctx, &interfaces.UserQuery{})
	if err != nil {
		return List[entities.User]{}, err
	}
	return List[entities.User]{Items: users, Total: total, Page: page, PageSize: DefaultPageSize}, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (entities.User, error) {
	return s.db.Users().Get(ctx, id)
}

func (s *Service) CreateUser(ctx context.Context, in UserInput) (entities.User, error) {
	if len(in.Password) < minPasswordLen {
		return entities.User{}, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if len(in.Password) > 72 {
		return entities.User{}, invalid("password", "must be at most 72 bytes")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return entities.User{}, invalid("email", "is not a valid address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return entities.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := entities.User{
		Username:     in.Username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		IsStaff:      in.IsStaff,
		DateJoined:   s.now(),
	}
	if err := s.db.Users().Create(ctx, &u); err != nil {
		return entities.User{}, err
	}
	s.written(ctx, "users", "create", u.ID)
	return u, nil
}

// CheckPassword reports whether password matches the stored hash of the user.
func (s *Service) CheckPassword(ctx context.Context, id int64, password string) (bool, error) {
	u, err := s.db.Users().Get(ctx, id)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.db.Users().Delete(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "users", "delete", id)
	return nil
}

// Posts

func (s *Service) ListPosts(ctx context.Context, page int) (List[interfaces.PostRow], error) {
	page = clampPage(page, DefaultPageSize)
	limit, offset := pageBounds(page, DefaultPageSize)
	posts, err := s.db.Posts().Find(ctx, &interfaces.PostQuery{Limit: limit, Offset: offset, PrefetchTags: true})
	if err != nil {
		return List[interfaces.PostRow]{}, err
	}
	total, err := s.db.Posts().Count(ctx)
	if err != nil {
		return List[interfaces.PostRow]{}, err
	}
	return List[interfaces.PostRow]{Items: posts, Total: total, Page: page, PageSize: DefaultPageSize}, nil
}

func (s *Service) GetPost(ctx context.Context, id int64) (PostDetail, error) {
	p, err := s.db.Posts().Get(ctx, id)
	if err != nil {
		return PostDetail{}, err
	}
	tagIDs, err := s.db.Posts().TagIDs(ctx, id)
	if err != nil {
		return PostDetail{}, err
	}
	likeIDs, err := s.db.Posts().LikerIDs(ctx, id)
	if err != nil {
		return PostDetail{}, err
	}
	return PostDetail{Post: p, TagIDs: tagIDs, LikeIDs: likeIDs}, nil
}

// checkAuthor requires the post author to be an existing staff user.
func (s *Service) checkAuthor(ctx context.Context, authorID int64) error {
	if authorID == 0 {
		return invalid("author_id", "is required")
	}
	u, err := s.db.Users().Get(ctx, authorID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return invalid("author_id", "user does not exist")
	}
	if err != nil {
		return err
	}
	if !u.IsStaff {
		return invalid("author_id", "must be a staff user")
	}
	return nil
}

func (s *Service) postFromInput(in PostInput) entities.Post {
	published := s.now()
	if in.PublishedAt != nil {
		published = in.PublishedAt.UTC()
	}
	return entities.Post{
		Title:       in.Title,
		Text:        in.Text,
		Slug:        in.Slug,
		Image:       in.Image,
		PublishedAt: published,
		AuthorID:    in.AuthorID,
	}
}

func (s *Service) CreatePost(ctx context.Context, in PostInput) (PostDetail, error) {
	p := s.postFromInput(in)
	if err := p.Validate(); err != nil {
		return PostDetail{}, err
	}
	if err := s.checkAuthor(ctx, p.AuthorID); err != nil {
		return PostDetail{}, err
	}
	if err := s.db.Posts().Create(ctx, &p, in.TagIDs, in.LikeIDs); err != nil {
		return PostDetail{}, err
	}
	s.written(ctx, "posts", "create", p.ID)
	return s.GetPost(ctx, p.ID)
}

func (s *Service) UpdatePost(ctx context.Context, id int64, in PostInput) (PostDetail, error) {
	if _, err := s.db.Posts().Get(ctx, id); err != nil {
		return PostDetail{}, err
	}
	p := s.postFromInput(in)
	p.ID = id
	if err := p.Validate(); err != nil {
		return PostDetail{}, err
	}
	if err := s.checkAuthor(ctx, p.AuthorID); err != nil {
		return PostDetail{}, err
	}
	if err := s.db.Posts().Update(ctx, &p, in.TagIDs, in.LikeIDs); err != nil {
		return PostDetail{}, err
	}
	s.written(ctx, "posts", "update", id)
	return s.GetPost(ctx, id)
}

func (s *Service) DeletePost(ctx context.Context, id int64) error {
	if err := s.db.Posts().Delete(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "posts", "delete", id)
	return nil
}

// Tags

func (s *Service) ListTags(ctx context.Context, page int) (List[interfaces.TagRow], error) {
	page = clampPage(page, DefaultPageSize)
	limit, offset := pageBounds(page, DefaultPageSize)
	tags, err := s.db.Tags().Find(ctx, &interfaces.TagQuery{Limit: limit, Offset: offset})
	if err != nil {
		return List[interfaces.TagRow]{}, err
	}
	total, err := s.db.Tags().Count(ctx)
	if err != nil {
		return List[interfaces.TagRow]{}, err
	}
	return List[interfaces.TagRow]{Items: tags, Total: total, Page: page, PageSize: DefaultPageSize}, nil
}

func (s *Service) GetTag(ctx context.Context, id int64) (entities.Tag, error) {
	return s.db.Tags().Get(ctx, id)
}

func (s *Service) CreateTag(ctx context.Context, in TagInput) (entities.Tag, error) {
	t := entities.Tag{Title: in.Title}
	if err := s.db.Tags().Create(ctx, &t); err != nil {
		return entities.Tag{}, err
	}
	s.written(ctx, "tags", "create", t.ID)
	return t, nil
}

func (s *Service) UpdateTag(ctx context.Context, id int64, in TagInput) (entities.Tag, error) {
	t := entities.Tag{ID: id, Title: in.Title}
	if err := s.db.Tags().Update(ctx, &t); err != nil {
		return entities.Tag{}, err
	}
	s.written(ctx, "tags", "update", id)
	return t, nil
}

func (s *Service) DeleteTag(ctx context.Context, id int64) error {
	if err := s.db.Tags().Delete(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "tags", "delete", id)
	return nil
}

// Comments

// ListComments pages through comments, optionally restricted to one post.
func (s *Service) ListComments(ctx context.Context, page int, postID *int64) (List[interfaces.CommentRow], error) {
	page = clampPage(page, CommentsPageSize)
	limit, offset := pageBounds(page, CommentsPageSize)
	comments, err := s.db.Comments().Find(ctx, &interfaces.CommentQuery{PostID: postID, Limit: limit, Offset: offset})
	if err != nil {
		return List[interfaces.CommentRow]{}, err
	}
	total, err := s.db.Comments().Count(ctx, &interfaces.CommentQuery{PostID: postID})
	if err != nil {
		return List[interfaces.CommentRow]{}, err
	}
	return List[interfaces.CommentRow]{Items: comments, Total: total, Page: page, PageSize: CommentsPageSize}, nil
}

func (s *Service) GetComment(ctx context.Context, id int64) (entities.Comment, error) {
	return s.db.Comments().Get(ctx, id)
}

func (s *Service) commentFromInput(in CommentInput) entities.Comment {
	published := s.now()
	if in.PublishedAt != nil {
		published = in.PublishedAt.UTC()
	}
	return entities.Comment{
		PostID:      in.PostID,
		AuthorID:    in.AuthorID,
		Text:        in.Text,
		PublishedAt: published,
	}
}

func (s *Service) CreateComment(ctx context.Context, in CommentInput) (entities.Comment, error) {
	c := s.commentFromInput(in)
	if err := s.db.Comments().Create(ctx, &c); err != nil {
		return entities.Comment{}, err
	}
	s.written(ctx, "comments", "create", c.ID)
	return c, nil
}

func (s *Service) UpdateComment(ctx context.Context, id int64, in CommentInput) (entities.Comment, error) {
	c := s.commentFromInput(in)
	c.ID = id
	if err := s.db.Comments().Update(ctx, &c); err != nil {
		return entities.Comment{}, err
	}
	s.written(ctx, "comments", "update", id)
	return c, nil
}

func (s *Service) DeleteComment(ctx context.Context, id int64) error {
	if err := s.db.Comments().Delete(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "comments", "delete", id)
	return nil
}
