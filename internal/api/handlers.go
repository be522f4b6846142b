package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Michael-Zapivahin/sensive-blog/internal/blog"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/render"
	"github.com/Michael-Zapivahin/sensive-blog/internal/store"
)

// ErrorResponse is the JSON body of a failed page request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthChecker reports whether the entity store is reachable.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

type Handler struct {
	pages  *blog.Service
	html   render.Renderer
	json   render.Renderer
	db     HealthChecker
	cache  *store.PageCache
	logger *zap.SugaredLogger
}

// NewHandler wires the public pages. cache may be nil.
func NewHandler(pages *blog.Service, html render.Renderer, db HealthChecker, cache *store.PageCache, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		pages:  pages,
		html:   html,
		json:   render.JSONRenderer{},
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// Page endpoints

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.Index(r.Context())
	h.writePage(w, r, page, err)
}

func (h *Handler) PostDetail(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.PostDetail(r.Context(), chi.URLParam(r, "slug"))
	h.writePage(w, r, page, err)
}

func (h *Handler) TagFilter(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.TagFilter(r.Context(), tagTitle(r))
	h.writePage(w, r, page, err)
}

// tagTitle returns the decoded tag param. chi matches on RawPath when the
// request carries one, so "/tag/ci%2Fcd" yields a param that is still escaped.
func tagTitle(r *http.Request) string {
	title := chi.URLParam(r, "tagTitle")
	if r.URL.RawPath == "" {
		return title
	}
	if unescaped, err := url.PathUnescape(title); err == nil {
		return unescaped
	}
	return title
}

func (h *Handler) Contacts(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.Contacts(r.Context())
	h.writePage(w, r, page, err)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeNotFound(w, r)
}

// Health and ops endpoints

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz checks the entity store and the page cache. A cache outage only
// degrades performance, so it is reported but does not fail readiness.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if !h.db.IsHealthy(ctx) {
		h.logger.Warnw("Readiness check failed", "component", "database")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("DATABASE UNAVAILABLE"))
		return
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warnw("Page cache unreachable", "error", err)
			w.Header().Set("X-Cache-Status", "degraded")
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// Utility methods

func (h *Handler) renderer(r *http.Request) render.Renderer {
	return render.Negotiate(r, h.html, h.json)
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, page blog.Page, err error) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		h.writeNotFound(w, r)
		return
	case err != nil:
		h.writeError(w, r, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if err := h.renderer(r).Render(w, http.StatusOK, page); err != nil {
		h.logger.Errorw("Failed to render page",
			"request_id", middleware.GetReqID(r.Context()),
			"template", page.Template,
			"error", err,
		)
		h.writeError(w, r, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (h *Handler) writeNotFound(w http.ResponseWriter, r *http.Request) {
	if render.WantsJSON(r) {
		h.writeError(w, r, http.StatusNotFound, "not_found", "page not found")
		return
	}
	if err := h.html.Render(w, http.StatusNotFound, blog.Page{Template: blog.TemplateNotFound}); err != nil {
		h.logger.Errorw("Failed to render 404 page", "error", err)
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if render.WantsJSON(r) {
		if err := h.json.Render(w, status, blog.Page{Context: ErrorResponse{Code: code, Message: message}}); err != nil {
			h.logger.Errorw("Failed to write error response", "error", err)
		}
		return
	}
	http.Error(w, message, status)
}
