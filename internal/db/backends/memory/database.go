package memory

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/entities"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
	"github.com/Michael-Zapivahin/sensive-blog/internal/db/query"
)

// Database implements the Database interface for in-memory storage
type Database struct {
	mu        sync.RWMutex
	connected bool

	users     map[int64]entities.User
	posts     map[int64]entities.Post
	tags      map[int64]entities.Tag
	comments  map[int64]entities.Comment
	postTags  map[int64][]int64 // post id -> tag ids
	postLikes map[int64][]int64 // post id -> user ids
	seq       map[string]int64
}

// NewDatabase creates a new in-memory database
func NewDatabase() *Database {
	db := &Database{}
	db.reset()
	return db
}

func (db *Database) reset() {
	db.users = make(map[int64]entities.User)
	db.posts = make(map[int64]entities.Post)
	db.tags = make(map[int64]entities.Tag)
	db.comments = make(map[int64]entities.Comment)
	db.postTags = make(map[int64][]int64)
	db.postLikes = make(map[int64][]int64)
	db.seq = make(map[string]int64)
}

// Connect establishes a connection to the database
func (db *Database) Connect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.connected = true
	log.Println("Connected to in-memory database")
	return nil
}

// Disconnect drops every table and closes the database
func (db *Database) Disconnect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.connected = false
	db.reset()
	log.Println("Disconnected from in-memory database")
	return nil
}

// IsHealthy checks if the database connection is healthy
func (db *Database) IsHealthy(ctx context.Context) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.connected
}

// Migrate is a no-op beyond the connection check; tables exist from construction.
func (db *Database) Migrate(ctx context.Context) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.connected {
		return interfaces.ErrDatabaseNotConnected
	}
	return nil
}

func (db *Database) Users() interfaces.UserRepository       { return &userRepository{db: db} }
func (db *Database) Posts() interfaces.PostRepository       { return &postRepository{db: db} }
func (db *Database) Tags() interfaces.TagRepository         { return &tagRepository{db: db} }
func (db *Database) Comments() interfaces.CommentRepository { return &commentRepository{db: db} }

// Clear removes all data but keeps the connection (for testing)
func (db *Database) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.reset()
}

// nextID must be called with the write lock held.
func (db *Database) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

func (db *Database) checkConnected() error {
	if !db.connected {
		return interfaces.ErrDatabaseNotConnected
	}
	return nil
}

// The helpers below must be called with at least the read lock held.

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (db *Database) postRow(p entities.Post) interfaces.PostRow {
	return interfaces.PostRow{
		Post:       clonePost(p),
		Author:     db.users[p.AuthorID],
		LikesCount: int64(len(db.postLikes[p.ID])),
	}
}

func (db *Database) tagRow(t entities.Tag) interfaces.TagRow {
	var n int64
	for _, tagIDs := range db.postTags {
		if query.ContainsID(tagIDs, t.ID) {
			n++
		}
	}
	return interfaces.TagRow{Tag: t, PostsCount: n}
}

// tagRowsOf returns the tags of a post in default tag order.
func (db *Database) tagRowsOf(postID int64) []interfaces.TagRow {
	rows := make([]interfaces.TagRow, 0, len(db.postTags[postID]))
	for _, id := range db.postTags[postID] {
		if t, ok := db.tags[id]; ok {
			rows = append(rows, db.tagRow(t))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Title < rows[j].Title })
	return rows
}

// deletePostLocked cascades to comments and relation links.
func (db *Database) deletePostLocked(id int64) {
	for cid, c := range db.comments {
		if c.PostID == id {
			delete(db.comments, cid)
		}
	}
	delete(db.postTags, id)
	delete(db.postLikes, id)
	delete(db.posts, id)
}

func clonePost(p entities.Post) entities.Post {
	if p.Image != nil {
		img := *p.Image
		p.Image = &img
	}
	return p
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !query.ContainsID(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
