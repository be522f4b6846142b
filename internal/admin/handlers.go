package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// ErrorResponse is the JSON error body. Field is set for validation failures.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type Handler struct {
	svc    *Service
	token  string
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, token string, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, token: token, logger: logger}
}

// Routes returns the admin router. Every route requires the bearer token.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.BearerAuth)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Get("/{id}", h.GetUser)
		r.Delete("/{id}", h.DeleteUser)
	})
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", h.ListPosts)
		r.Post("/", h.CreatePost)
		r.Get("/{id}", h.GetPost)
		r.Put("/{id}", h.UpdatePost)
		r.Delete("/{id}", h.DeletePost)
	})
	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.ListTags)
		r.Post("/", h.CreateTag)
		r.Get("/{id}", h.GetTag)
		r.Put("/{id}", h.UpdateTag)
		r.Delete("/{id}", h.DeleteTag)
	})
	r.Route("/comments", func(r chi.Router) {
		r.Get("/", h.ListComments)
		r.Post("/", h.CreateComment)
		r.Get("/{id}", h.GetComment)
		r.Put("/{id}", h.UpdateComment)
		r.Delete("/{id}", h.DeleteComment)
	})
	return r
}

// BearerAuth rejects requests without "Authorization: Bearer <token>".
// An empty token locks everything out.
func (h *Handler) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			h.logger.Warnw("Admin request rejected",
				"request_id", middleware.GetReqID(r.Context()),
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Users

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.svc.ListUsers)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	if !h.decode(w, r, &in) {
		return
	}
	u, err := h.svc.CreateUser(r.Context(), in)
	h.respond(w, r, http.StatusCreated, u, err)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	byID(h, w, r, h.svc.GetUser)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, h.svc.DeleteUser)
}

// Posts

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.svc.ListPosts)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in PostInput
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.svc.CreatePost(r.Context(), in)
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	byID(h, w, r, h.svc.GetPost)
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in PostInput
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.svc.UpdatePost(r.Context(), id, in)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, h.svc.DeletePost)
}

// Tags

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.svc.ListTags)
}

func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var in TagInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.svc.CreateTag(r.Context(), in)
	h.respond(w, r, http.StatusCreated, t, err)
}

func (h *Handler) GetTag(w http.ResponseWriter, r *http.Request) {
	byID(h, w, r, h.svc.GetTag)
}

func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in TagInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.svc.UpdateTag(r.Context(), id, in)
	h.respond(w, r, http.StatusOK, t, err)
}

func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, h.svc.DeleteTag)
}

// Comments

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	var postID *int64
	if raw := r.URL.Query().Get("post_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid_query", "post_id must be a positive integer")
			return
		}
		postID = &id
	}
	list(h, w, r, func(ctx context.Context, page int) (List[interfaces.CommentRow], error) {
		return h.svc.ListComments(ctx, page, postID)
	})
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var in CommentInput
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.svc.CreateComment(r.Context(), in)
	h.respond(w, r, http.StatusCreated, c, err)
}

func (h *Handler) GetComment(w http.ResponseWriter, r *http.Request) {
	byID(h, w, r, h.svc.GetComment)
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in CommentInput
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.svc.UpdateComment(r.Context(), id, in)
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, h.svc.DeleteComment)
}

// Helpers

func list[T any](h *Handler, w http.ResponseWriter, r *http.Request, fn func(context.Context, int) (List[T], error)) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid_query", "page must be a positive integer")
			return
		}
		page = n
	}
	result, err := fn(r.Context(), page)
	h.respond(w, r, http.StatusOK, result, err)
}

func byID[T any](h *Handler, w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (T, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := fn(r.Context(), id)
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

const maxBodyBytes = 1 << 20

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, status, data)
}

// writeServiceError maps store and validation errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *entities.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "validation_error", Message: verr.Message, Field: verr.Field})
	case errors.Is(err, interfaces.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, interfaces.ErrUniqueConstraint):
		h.writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, interfaces.ErrForeignKeyConstraint):
		h.writeError(w, http.StatusBadRequest, "invalid_reference", err.Error())
	case errors.Is(err, interfaces.ErrInvalidQuery):
		h.writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	default:
		h.logger.Errorw("Admin request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
