package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/backends/memory"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/backends/postgres"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// Supported backend types
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
)

// Config holds database configuration
type Config struct {
	Type     string // "memory" or "postgres"
	DSN      string // Postgres connection string
	MaxConns int    // Maximum pool size (postgres only)
}

// NewDatabase creates a new database instance based on configuration.
// The returned database is not connected yet.
func NewDatabase(config *Config, logger *zap.SugaredLogger) (interfaces.Database, error) {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	switch config.Type {
	case "", TypeMemory:
		logger.Infow("Using in-memory database")
		return memory.NewDatabase(), nil
	case TypePostgres:
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres database requires a DSN")
		}
		logger.Infow("Using postgres database", "max_conns", config.MaxConns)
		return postgres.NewDatabase(config.DSN, config.MaxConns, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// MustNewDatabase creates a new database instance and panics on error
func MustNewDatabase(config *Config, logger *zap.SugaredLogger) interfaces.Database {
	db, err := NewDatabase(config, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create database: %v", err))
	}
	return db
}

// NewInMemoryDatabase creates a new in-memory database instance
func NewInMemoryDatabase() interfaces.Database {
	return memory.NewDatabase()
}

// ConnectAndMigrate connects to the database and runs migrations
func ConnectAndMigrate(ctx context.Context, db interfaces.Database) error {
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if !db.IsHealthy(ctx) {
		return fmt.Errorf("database health check failed")
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
