package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/query"
)

var userBuilder = query.NewBuilder(func(u entities.User, field string) interface{} {
	if field == interfaces.FieldID {
		return u.ID
	}
	return nil
})

type userRepository struct {
	db *Database
}

// filtered must be called with the read lock held. Result is ordered by id.
func (r *userRepository) filtered(q *interfaces.UserQuery) []entities.User {
	users := make([]entities.User, 0, len(r.db.users))
	for _, id := range sortedIDs(r.db.users) {
		u := r.db.users[id]
		if q.StaffOnly && !u.IsStaff {
			continue
		}
		users = append(users, u)
	}
	return users
}

func (r *userRepository) Find(ctx context.Context, q *interfaces.UserQuery) ([]entities.User, error) {
	if q == nil {
		q = &interfaces.UserQuery{}
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return nil, err
	}
	return userBuilder.ApplyPagination(r.filtered(q), q.Limit, q.Offset), nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (entities.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return entities.User{}, err
	}
	u, ok := r.db.users[id]
	if !ok {
		return entities.User{}, interfaces.ErrNotFound
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, u *entities.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	for _, existing := range r.db.users {
		if existing.Username == u.Username {
			return fmt.Errorf("%w: field 'username' value '%s'", interfaces.ErrUniqueConstraint, u.Username)
		}
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	u.ID = r.db.nextID("users")
	r.db.users[u.ID] = *u
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkConnected(); err != nil {
		return err
	}
	if _, ok := r.db.users[id]; !ok {
		return interfaces.ErrNotFound
	}

	for postID, p := range r.db.posts {
		if p.AuthorID == id {
			r.db.deletePostLocked(postID)
		}
	}
	for commentID, c := range r.db.comments {
		if c.AuthorID == id {
			delete(r.db.comments, commentID)
		}
	}
	for postID, likers := range r.db.postLikes {
		r.db.postLikes[postID] = removeID(likers, id)
	}
	delete(r.db.users, id)
	return nil
}

func (r *userRepository) Count(ctx context.Context, q *interfaces.UserQuery) (int64, error) {
	if q == nil {
		q = &interfaces.UserQuery{}
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if err := r.db.checkConnected(); err != nil {
		return 0, err
	}
	return int64(len(r.filtered(q))), nil
}
