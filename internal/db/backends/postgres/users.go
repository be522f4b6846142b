package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

const userColumns = `id, username, email, password_hash, is_staff, date_joined`

type userRepository struct {
	db *Database
}

func scanUser(row pgx.CollectableRow) (entities.User, error) {
	var u entities.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsStaff, &u.DateJoined)
	return u, err
}

func userFilter(q *interfaces.UserQuery) string {
	if q.StaffOnly {
		return " WHERE is_staff"
	}
	return ""
}

func (r *userRepository) Find(ctx context.Context, q *interfaces.UserQuery) ([]entities.User, error) {
	if q == nil {
		q = &interfaces.UserQuery{}
	}
	pool, err := r.db.getPool()
	if err != nil {
		return nil, err
	}
	var args sqlArgs
	sql := `SELECT ` + userColumns + ` FROM users` + userFilter(q) + ` ORDER BY id ASC` +
		pageClause(&args, q.Limit, q.Offset)

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("find users", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, mapError("scan users", err)
	}
	return users, nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (entities.User, error) {
	pool, err := r.db.getPool()
	if err != nil {
		return entities.User{}, err
	}
	rows, err := pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return entities.User{}, mapError("get user", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return entities.User{}, mapError("get user", err)
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, u *entities.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	err = pool.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, is_staff, date_joined)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, u.Username, u.Email, u.PasswordHash, u.IsStaff, u.DateJoined).Scan(&u.ID)
	return mapError("create user", err)
}

// Delete relies on ON DELETE CASCADE for posts, comments and likes.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	pool, err := r.db.getPool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *userRepository) Count(ctx context.Context, q *interfaces.UserQuery) (int64, error) {
	if q == nil {
		q = &interfaces.UserQuery{}
	}
	pool, err := r.db.getPool()
	if err != nil {
		return 0, err
	}
	var n int64
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+userFilter(q)).Scan(&n)
	return n, mapError("count users", err)
}
