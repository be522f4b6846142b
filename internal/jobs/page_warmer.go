package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Michael-Zapivahin/sensive-blog/internal/blog"
)

// Pages is the part of blog.Service the warmer drives.
type Pages interface {
	Index(ctx context.Context) (blog.Page, error)
	TagFilter(ctx context.Context, title string) (blog.Page, error)
}

type PageWarmerConfig struct {
	Interval time.Duration // time between passes
	Timeout  time.Duration // budget of one pass
}

// PageWarmer rebuilds the index and the popular tag pages on a ticker so a
// cache invalidation is not paid for by the next visitor. Pages that are
// still cached are left alone.
type PageWarmer struct {
	pages  Pages
	logger *zap.SugaredLogger
	config PageWarmerConfig

	mu        sync.Mutex
	cancelCtx context.CancelFunc
}

func NewPageWarmer(pages Pages, logger *zap.SugaredLogger, config PageWarmerConfig) *PageWarmer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &PageWarmer{pages: pages, logger: logger, config: config}
}

// Start warms once, then on every tick until ctx is cancelled or Stop is called.
func (w *PageWarmer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancelCtx = cancel
	w.mu.Unlock()
	defer cancel()

	w.logger.Infow("Starting page warmer", "interval", w.config.Interval)
	w.Warm(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infow("Page warmer stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			w.Warm(ctx)
		}
	}
}

func (w *PageWarmer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelCtx != nil {
		w.cancelCtx()
	}
}

// Warm runs one pass and returns the number of pages built or found cached.
func (w *PageWarmer) Warm(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	page, err := w.pages.Index(ctx)
	if err != nil {
		w.logger.Warnw("Failed to warm index page", "error", err)
		return 0
	}
	warmed := 1

	index, ok := page.Context.(blog.IndexContext)
	if !ok {
		return warmed
	}
	for _, tag := range index.PopularTags {
		if _, err := w.pages.TagFilter(ctx, tag.Title); err != nil {
			w.logger.Warnw("Failed to warm tag page", "tag", tag.Title, "error", err)
			continue
		}
		warmed++
	}
	w.logger.Debugw("Page cache warmed", "pages", warmed)
	return warmed
}
