package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Michael-Zapivahin/sensive-blog/internal/admin"
	"github.com/Michael-Zapivahin/sensive-blog/internal/blog"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/metrics"
	"github.com/Michael-Zapivahin/sensive-blog/internal/render"
	"github.com/Michael-Zapivahin/sensive-blog/internal/store"
	memkv "github.com/Michael-Zapivahin/sensive-blog/pkg/kv/memory"
)

const adminToken = "test-token"

type testServer struct {
	router http.Handler
	db     interfaces.Database
	sample *db.Sample
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()

	database := db.NewInMemoryDatabase()
	require.NoError(t, db.ConnectAndMigrate(ctx, database))
	t.Cleanup(func() { _ = database.Disconnect(ctx) })
	sample, err := db.SeedSample(ctx, database, time.Now().UTC())
	require.NoError(t, err)

	m, metricsHandler, err := metrics.Setup("blog-test")
	require.NoError(t, err)

	kv := memkv.New(0)
	t.Cleanup(func() { _ = kv.Close() })
	cache := store.NewPageCache(kv, time.Minute, logger, m)

	html, err := render.NewHTMLRenderer()
	require.NoError(t, err)

	pages := blog.NewService(database, blog.Serializer{MediaURL: "/media/"}, cache, logger, m)
	adminSvc := admin.NewService(database, cache, logger, m)

	h := NewHandler(pages, html, database, cache, logger)
	mw := NewMiddleware(logger, m)
	cfg := RouterConfig{
		RequestTimeout: 5 * time.Second,
		Metrics:        metricsHandler,
		Admin:          admin.NewHandler(adminSvc, adminToken, logger).Routes(),
		MediaURL:       "/media/",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{
		router: h.Routes(mw, cfg),
		db:     database,
		sample: sample,
	}
}

func (s *testServer) get(t *testing.T, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) getJSON(t *testing.T, target string) (int, map[string]any) {
	t.Helper()
	rec := s.get(t, target, "Accept", "application/json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func slugsOf(t *testing.T, posts any) []string {
	t.Helper()
	list, ok := posts.([]any)
	require.True(t, ok)
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.(map[string]any)["slug"].(string)
	}
	return out
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `href="/post/post-1"`)
	assert.Contains(t, rec.Body.String(), `href="/tag/go"`)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestIndexJSON(t *testing.T) {
	s := newTestServer(t)

	code, body := s.getJSON(t, "/")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"post-7", "post-6", "post-5", "post-4", "post-3"}, slugsOf(t, body["most_popular_posts"]))
	assert.Equal(t, []string{"post-1", "post-2", "post-3", "post-4", "post-5"}, slugsOf(t, body["page_posts"]))
	assert.Len(t, body["popular_tags"], blog.PopularLimit)

	rec := s.get(t, "/?format=json")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestPostDetailPage(t *testing.T) {
	s := newTestServer(t)

	code, body := s.getJSON(t, "/post/post-7")
	require.Equal(t, http.StatusOK, code)
	post := body["post"].(map[string]any)
	assert.Equal(t, "post-7", post["slug"])
	assert.EqualValues(t, 6, post["likes_amount"])
	assert.Len(t, post["comments"], 2)
	assert.Contains(t, post["text_html"], "<strong>post 7</strong>")

	rec := s.get(t, "/post/post-7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>post 7</strong>")
}

func TestUnknownPostIs404(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/post/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")

	code, body := s.getJSON(t, "/post/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["code"])

	rec = s.get(t, "/no/such/route")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
}

func TestTagFilterPage(t *testing.T) {
	s := newTestServer(t)

	code, body := s.getJSON(t, "/tag/python")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "python", body["tag"])
	assert.Equal(t, []string{"post-1", "post-2", "post-6", "post-7"}, slugsOf(t, body["posts"]))

	code, body = s.getJSON(t, "/tag/Python")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "python", body["tag"])

	rec := s.get(t, "/tag/rust")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTagFilterEscapedTitles(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for _, title := range []string{"ci/cd", "100%", "c++", "ci cd"} {
		tag := entities.Tag{Title: title}
		require.NoError(t, s.db.Tags().Create(ctx, &tag), title)

		code, body := s.getJSON(t, tag.AbsoluteURL()+"?format=json")
		require.Equal(t, http.StatusOK, code, tag.AbsoluteURL())
		assert.Equal(t, title, body["tag"], tag.AbsoluteURL())
	}
}

func TestContactsPage(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/contacts", "/contacts/"} {
		rec := s.get(t, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "Contacts", path)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = s.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())

	rec = s.get(t, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, s.db.Disconnect(context.Background()))
	rec = s.get(t, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoreFailureIs500(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Disconnect(context.Background()))

	rec := s.get(t, "/post/post-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database not connected")

	code, body := s.getJSON(t, "/tag/go")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal", body["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.get(t, "/")

	rec := s.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "blog_http_requests_total")
	assert.Contains(t, body, "blog_page_builds_total")
}

func TestAdminWritesInvalidatePages(t *testing.T) {
	s := newTestServer(t)

	_, body := s.getJSON(t, "/")
	require.Contains(t, slugsOf(t, body["page_posts"]), "post-1")

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/admin/posts/%d", s.sample.Post(1).ID), nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, body = s.getJSON(t, "/")
	assert.NotContains(t, slugsOf(t, body["page_posts"]), "post-1")
}

func TestAdminRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/admin/users")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.get(t, "/admin/users", "Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminNotMountedWithoutHandler(t *testing.T) {
	s := newTestServer(t, func(c *RouterConfig) { c.Admin = nil })

	rec := s.get(t, "/admin/users", "Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.txt"), []byte("meow"), 0o644))

	s := newTestServer(t, func(c *RouterConfig) { c.MediaRoot = dir })

	rec := s.get(t, "/media/cat.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "meow", rec.Body.String())

	rec = s.get(t, "/media/dog.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDIsKept(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/healthz", "X-Request-Id", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestCompression(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestRecoverer(t *testing.T) {
	mw := NewMiddleware(zaptest.NewLogger(t).Sugar(), nil)
	h := mw.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	mw := NewMiddleware(zaptest.NewLogger(t).Sugar(), nil)
	h := mw.RateLimit(60)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[rec.Code]++
	}
	assert.Positive(t, codes[http.StatusOK])
	assert.Positive(t, codes[http.StatusTooManyRequests])
}

func TestRateLimitDisabled(t *testing.T) {
	mw := NewMiddleware(nil, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok")
	})
	h := mw.RateLimit(0)(next)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(c *RouterConfig) { c.CORSOrigins = []string{"https://blog.example.com"} })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://blog.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "https://blog.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}
