package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Zero(t, cfg.Cache.WarmInterval)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/media/", cfg.Media.URL)
	assert.Equal(t, []string{"*"}, cfg.Security.CORSAllowedOrigins)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("BLOG_ENV", "prod")
	t.Setenv("BLOG_DB_TYPE", "Postgres")
	t.Setenv("BLOG_POSTGRES_DSN", "postgres://blog@localhost/blog")
	t.Setenv("BLOG_CACHE_TTL", "2m")
	t.Setenv("BLOG_ADMIN_TOKEN", "secret")
	t.Setenv("BLOG_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.AdminEnabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown db", map[string]string{"BLOG_DB_TYPE": "sqlite"}},
		{"postgres without dsn", map[string]string{"BLOG_DB_TYPE": "postgres"}},
		{"unknown kv", map[string]string{"BLOG_KV_BACKEND": "etcd"}},
		{"zero ttl", map[string]string{"BLOG_CACHE_TTL": "0s"}},
		{"negative warm interval", map[string]string{"BLOG_CACHE_WARM_INTERVAL": "-1s"}},
		{"negative rate limit", map[string]string{"BLOG_RATE_LIMIT_RPM": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// inTempDir keeps .env files of the working tree out of the test.
func inTempDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
