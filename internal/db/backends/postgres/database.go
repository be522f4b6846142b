// Package postgres implements the entity store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/migrations"
)

// Database implements interfaces.Database on a pgx connection pool
type Database struct {
	dsn      string
	maxConns int32
	logger   *zap.SugaredLogger

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewDatabase creates an unconnected database. maxConns <= 0 keeps the pgx default.
func NewDatabase(dsn string, maxConns int, logger *zap.SugaredLogger) *Database {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Database{dsn: dsn, maxConns: int32(maxConns), logger: logger}
}

func (db *Database) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(db.dsn)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}
	if db.maxConns > 0 {
		cfg.MaxConns = db.maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	db.mu.Lock()
	db.pool = pool
	db.mu.Unlock()

	db.logger.Infow("Connected to postgres", "max_conns", cfg.MaxConns)
	return nil
}

func (db *Database) Disconnect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	return nil
}

func (db *Database) IsHealthy(ctx context.Context) bool {
	pool, err := db.getPool()
	if err != nil {
		return false
	}
	return pool.Ping(ctx) == nil
}

// Migrate applies the embedded goose migrations.
func (db *Database) Migrate(ctx context.Context) error {
	pool, err := db.getPool()
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (db *Database) Users() interfaces.UserRepository       { return &userRepository{db: db} }
func (db *Database) Posts() interfaces.PostRepository       { return &postRepository{db: db} }
func (db *Database) Tags() interfaces.TagRepository         { return &tagRepository{db: db} }
func (db *Database) Comments() interfaces.CommentRepository { return &commentRepository{db: db} }

// Truncate empties every table and resets the id sequences (for testing).
func (db *Database) Truncate(ctx context.Context) error {
	pool, err := db.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `TRUNCATE comments, post_likes, post_tags, tags, posts, users RESTART IDENTITY CASCADE`)
	return mapError("truncate", err)
}

func (db *Database) getPool() (*pgxpool.Pool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}
	return db.pool, nil
}

// mapError translates driver errors into the interfaces error set.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", interfaces.ErrUniqueConstraint, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", interfaces.ErrForeignKeyConstraint, pgErr.ConstraintName)
		}
	}
	return interfaces.Wrap(op, err)
}

// sqlArgs collects positional parameters.
type sqlArgs []any

func (a *sqlArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// orderClause renders orderBy through the column map, falling back to
// defaults, and always ends on the id column so ties are stable.
func orderClause(orderBy, defaults []interfaces.OrderBy, columns map[string]string) string {
	if len(orderBy) == 0 {
		orderBy = defaults
	}
	parts := make([]string, 0, len(orderBy)+1)
	hasID := false
	for _, o := range orderBy {
		if o.Field == interfaces.FieldID {
			hasID = true
		}
		parts = append(parts, columns[o.Field]+" "+strings.ToUpper(o.Direction))
	}
	if !hasID {
		parts = append(parts, columns[interfaces.FieldID]+" ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func pageClause(a *sqlArgs, limit, offset *int) string {
	var b strings.Builder
	if limit != nil {
		l := *limit
		if l < 0 {
			l = 0
		}
		b.WriteString(" LIMIT " + a.add(l))
	}
	if offset != nil && *offset > 0 {
		b.WriteString(" OFFSET " + a.add(*offset))
	}
	return b.String()
}

// exists reports whether a row with the id is present in table.
func exists(ctx context.Context, pool *pgxpool.Pool, table string, id int64) (bool, error) {
	var ok bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
