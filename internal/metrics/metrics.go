package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// Metrics records blog instruments. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequests metric.Int64Counter
	HTTPDuration metric.Float64Histogram
	CacheHits    metric.Int64Counter
	CacheMisses  metric.Int64Counter
	PageBuilds   metric.Int64Counter
	PageDuration metric.Float64Histogram
	AdminWrites  metric.Int64Counter
}

// Setup builds the instruments on a private Prometheus registry and returns
// the handler that exposes it.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"blog_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"blog_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"blog_cache_hits_total",
		metric.WithDescription("Total number of page cache hits"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"blog_cache_misses_total",
		metric.WithDescription("Total number of page cache misses"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PageBuilds, err = meter.Int64Counter(
		"blog_page_builds_total",
		metric.WithDescription("Page contexts served, by template and outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PageDuration, err = meter.Float64Histogram(
		"blog_page_build_duration_seconds",
		metric.WithDescription("Time to produce a page context, cache included"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AdminWrites, err = meter.Int64Counter(
		"blog_admin_writes_total",
		metric.WithDescription("Admin create, update and delete operations"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordCacheHit(ctx context.Context, page string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("page", page)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, page string) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("page", page)))
}

// RecordPageBuild counts one page request with outcome ok, not_found or error.
func (m *Metrics) RecordPageBuild(ctx context.Context, template string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	labels := metric.WithAttributes(
		attribute.String("template", template),
		attribute.String("outcome", outcome),
	)
	m.PageBuilds.Add(ctx, 1, labels)
	m.PageDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordAdminWrite(ctx context.Context, resource, op string) {
	if m == nil {
		return
	}
	m.AdminWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("op", op),
	))
}
