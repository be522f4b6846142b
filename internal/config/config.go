package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env            string        `mapstructure:"BLOG_ENV"`
	HTTPAddr       string        `mapstructure:"BLOG_HTTP_ADDR"`
	RequestTimeout time.Duration `mapstructure:"BLOG_REQUEST_TIMEOUT"`

	Database DBConfig       `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Media    MediaConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type DBConfig struct {
	Type        string `mapstructure:"BLOG_DB_TYPE"` // "memory", "postgres"
	PostgresDSN string `mapstructure:"BLOG_POSTGRES_DSN"`
	MaxConns    int    `mapstructure:"BLOG_POSTGRES_MAX_CONNS"`
}

type CacheConfig struct {
	Backend  string        `mapstructure:"BLOG_KV_BACKEND"` // "memory", "redis"
	RedisURL string        `mapstructure:"BLOG_REDIS_URL"`
	TTL      time.Duration `mapstructure:"BLOG_CACHE_TTL"`

	WarmInterval time.Duration `mapstructure:"BLOG_CACHE_WARM_INTERVAL"` // zero disables the warmer
}

type MediaConfig struct {
	URL  string `mapstructure:"BLOG_MEDIA_URL"`  // public prefix of uploaded images
	Root string `mapstructure:"BLOG_MEDIA_ROOT"` // directory served under URL, empty disables
}

type SecurityConfig struct {
	AdminToken         string   `mapstructure:"BLOG_ADMIN_TOKEN"`
	RateLimitRPM       int      `mapstructure:"BLOG_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"BLOG_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("BLOG_ENV", "dev")
	v.SetDefault("BLOG_HTTP_ADDR", ":8080")
	v.SetDefault("BLOG_REQUEST_TIMEOUT", "15s")
	v.SetDefault("BLOG_DB_TYPE", "memory")
	v.SetDefault("BLOG_POSTGRES_DSN", "")
	v.SetDefault("BLOG_POSTGRES_MAX_CONNS", 10)
	v.SetDefault("BLOG_KV_BACKEND", "memory")
	v.SetDefault("BLOG_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("BLOG_CACHE_TTL", "30s")
	v.SetDefault("BLOG_CACHE_WARM_INTERVAL", "0s")
	v.SetDefault("BLOG_MEDIA_URL", "/media/")
	v.SetDefault("BLOG_MEDIA_ROOT", "")
	v.SetDefault("BLOG_ADMIN_TOKEN", "")
	v.SetDefault("BLOG_RATE_LIMIT_RPM", 600)
	v.SetDefault("BLOG_CORS_ALLOWED_ORIGINS", "*")

	// Handle array parsing for comma-separated values
	if origins := v.GetString("BLOG_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("BLOG_CORS_ALLOWED_ORIGINS", splitList(origins))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "memory":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("BLOG_POSTGRES_DSN is required when BLOG_DB_TYPE is postgres")
		}
	default:
		return fmt.Errorf("invalid BLOG_DB_TYPE %q (must be memory or postgres)", c.Database.Type)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("BLOG_REDIS_URL is required when BLOG_KV_BACKEND is redis")
		}
	default:
		return fmt.Errorf("invalid BLOG_KV_BACKEND %q (must be memory or redis)", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("BLOG_CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.WarmInterval < 0 {
		return fmt.Errorf("BLOG_CACHE_WARM_INTERVAL must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("BLOG_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.Security.RateLimitRPM < 0 {
		return fmt.Errorf("BLOG_RATE_LIMIT_RPM must not be negative")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// AdminEnabled reports whether the admin API is mounted.
func (c *Config) AdminEnabled() bool {
	return c.Security.AdminToken != ""
}
