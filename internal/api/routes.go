package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the optional surfaces mounted next to the pages.
type RouterConfig struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration

	Metrics http.Handler // mounted on /metrics when set
	Admin   http.Handler // mounted on /admin when set

	MediaURL  string // public prefix of uploaded images
	MediaRoot string // directory served under a relative MediaURL, empty disables
}

func (h *Handler) Routes(m *Middleware, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	r.Use(m.Timeout(timeout))
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(m.CORS(cfg.CORSOrigins))
	r.Use(m.RateLimit(cfg.RateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Public pages
	r.Get("/", h.Index)
	r.Get("/post/{slug}", h.PostDetail)
	r.Get("/tag/{tagTitle}", h.TagFilter)
	r.Get("/contacts", h.Contacts)
	r.Get("/contacts/", h.Contacts)

	if cfg.Admin != nil {
		r.Mount("/admin", cfg.Admin)
	}

	if cfg.MediaRoot != "" && strings.HasPrefix(cfg.MediaURL, "/") {
		prefix := "/" + strings.Trim(cfg.MediaURL, "/")
		if prefix == "/" {
			prefix = "/media"
		}
		files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.MediaRoot)))
		r.Handle(prefix+"/*", files)
	}

	r.NotFound(h.NotFound)

	return r
}
