package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Michael-Zapivahin/sensive-blog/internal/metrics"
	"github.com/Michael-Zapivahin/sensive-blog/pkg/kv"
)

// ErrCacheMiss is returned by Get when no value is stored for the current generation.
var ErrCacheMiss = errors.New("cache miss")

// Cache key layout. Bumping the generation orphans every cached page at once;
// orphans expire through their TTL.
const (
	KeyGeneration = "blog:page:gen"
	keyPagePrefix = "blog:page:"
)

// BuildTimeout bounds a shared page build once it no longer follows the
// context of the request that started it.
const BuildTimeout = 30 * time.Second

// PageCache keeps JSON encoded page contexts in a kv.Store
type PageCache struct {
	store kv.Store
	ttl   time.Duration
	group singleflight.Group

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewPageCache(store kv.Store, ttl time.Duration, logger *zap.SugaredLogger, metrics *metrics.Metrics) *PageCache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PageCache{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *PageCache) generation(ctx context.Context) (int64, error) {
	raw, err := c.store.Get(ctx, KeyGeneration)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cache generation %q: %w", raw, err)
	}
	return gen, nil
}

// Key returns the storage key of a page for the current generation.
func (c *PageCache) Key(ctx context.Context, name string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d:%s", keyPagePrefix, gen, name), nil
}

func (c *PageCache) Get(ctx context.Context, name string, dest interface{}) error {
	key, err := c.Key(ctx, name)
	if err != nil {
		return fmt.Errorf("cache get error: %w", err)
	}
	return c.get(ctx, key, name, dest)
}

func (c *PageCache) get(ctx context.Context, key, name string, dest interface{}) error {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			c.metrics.RecordCacheMiss(ctx, pageKind(name))
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get error: %w", err)
	}
	c.metrics.RecordCacheHit(ctx, pageKind(name))
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *PageCache) Set(ctx context.Context, name string, value interface{}) error {
	key, err := c.Key(ctx, name)
	if err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return c.set(ctx, key, value)
}

func (c *PageCache) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Invalidate drops every cached page by moving to a new generation.
func (c *PageCache) Invalidate(ctx context.Context) error {
	gen, err := c.store.IncrBy(ctx, KeyGeneration, 1)
	if err != nil {
		c.logger.Errorw("Cache invalidation failed", "error", err)
		return fmt.Errorf("cache invalidate error: %w", err)
	}
	c.logger.Debugw("Page cache invalidated", "generation", gen)
	return nil
}

func (c *PageCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *PageCache) Close() error {
	return c.store.Close()
}

// Cached returns the page stored under name or builds and stores it.
// Concurrent misses for one page share a single build, which keeps running
// when the caller that started it goes away. A page built while
// the cache is invalidated lands in the old generation. Cache failures are
// logged and the page is built directly. A nil cache always builds.
func Cached[T any](ctx context.Context, c *PageCache, name string, build func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return build(ctx)
	}

	key, err := c.Key(ctx, name)
	if err == nil {
		var cached T
		if err = c.get(ctx, key, name, &cached); err == nil {
			return cached, nil
		}
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warnw("Page cache unavailable, building directly", "page", name, "error", err)
		return build(ctx)
	}

	// The shared build outlives the caller that started it; each caller only
	// waits as long as its own context allows.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), BuildTimeout)
		defer cancel()

		page, err := build(buildCtx)
		if err != nil {
			return nil, err
		}
		if err := c.set(buildCtx, key, page); err != nil {
			c.logger.Warnw("Failed to store page", "page", name, "error", err)
		}
		return page, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// pageKind keeps metric labels bounded: "post:some-slug" becomes "post".
func pageKind(name string) string {
	kind, _, _ := strings.Cut(name, ":")
	return kind
}
