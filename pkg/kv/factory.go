package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// LogFunc matches zap.SugaredLogger.Warnw.
type LogFunc func(msg string, keysAndValues ...interface{})

// Config holds configuration for creating a Store instance
type Config struct {
	// Backend specifies which storage backend to use
	Backend Backend

	// RedisURL is the connection string for Redis (required when Backend is "redis")
	// Format: redis://localhost:6379/0 or redis://:password@localhost:6379/1
	RedisURL string

	// JanitorInterval controls how often the in-memory store cleans up expired keys.
	// Default: 30 seconds
	JanitorInterval time.Duration

	// FallbackToMemory returns an in-memory store when Redis cannot be
	// reached at startup instead of failing.
	FallbackToMemory bool

	// StartupProbeTimeout controls how long to wait for Redis at startup
	// Default: 1 second
	StartupProbeTimeout time.Duration

	// Logger is used for logging fallback events. If nil, no logging occurs.
	Logger LogFunc
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

// factories holds registered store factories
var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration
func NewStoreFromConfig(cfg Config) (Store, error) {
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = 30 * time.Second
	}
	if cfg.StartupProbeTimeout == 0 {
		cfg.StartupProbeTimeout = time.Second
	}

	switch cfg.Backend {
	case BackendMemory:
		return create(BackendMemory, cfg)
	case BackendRedis:
		return createRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func create(backend Backend, cfg Config) (Store, error) {
	factory, exists := factories[backend]
	if !exists {
		return nil, fmt.Errorf("%s backend not registered", backend)
	}
	return factory(cfg)
}

// createRedis connects to Redis and probes it once.
func createRedis(cfg Config) (Store, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
	}

	store, err := create(BackendRedis, cfg)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
		err = store.Ping(ctx)
		cancel()
		if err != nil {
			store.Close()
		}
	}
	if err == nil {
		return store, nil
	}

	if !cfg.FallbackToMemory {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if cfg.Logger != nil {
		cfg.Logger("Redis unavailable at startup; using in-memory store", "error", err.Error())
	}
	return create(BackendMemory, cfg)
}
