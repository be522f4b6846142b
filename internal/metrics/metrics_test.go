package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

func TestSetupExposesInstruments(t *testing.T) {
	m, handler, err := Setup("blog-test")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/", 200, 15*time.Millisecond)
	m.RecordCacheHit(ctx, "index")
	m.RecordCacheMiss(ctx, "index")
	m.RecordPageBuild(ctx, "index.html", nil, time.Millisecond)
	m.RecordPageBuild(ctx, "post-details.html", interfaces.ErrNotFound, time.Millisecond)
	m.RecordPageBuild(ctx, "posts-list.html", errors.New("boom"), time.Millisecond)
	m.RecordAdminWrite(ctx, "posts", "create")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	for _, name := range []string{
		"blog_http_requests_total",
		"blog_cache_hits_total",
		"blog_cache_misses_total",
		"blog_page_builds_total",
		"blog_admin_writes_total",
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, `outcome="not_found"`)
	assert.Contains(t, out, `outcome="error"`)
}

func TestSetupTwice(t *testing.T) {
	_, _, err := Setup("one")
	require.NoError(t, err)
	_, _, err = Setup("two")
	require.NoError(t, err, "each setup uses its own registry")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
		m.RecordCacheHit(ctx, "index")
		m.RecordCacheMiss(ctx, "index")
		m.RecordPageBuild(ctx, "index.html", nil, time.Millisecond)
		m.RecordAdminWrite(ctx, "tags", "delete")
	})
}
