package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Michael-Zapivahin/sensive-blog/internal/db/interfaces"
)

// ErrMissingCommentsCount means the grouped count skipped a post it was asked about.
var ErrMissingCommentsCount = errors.New("comments count missing for post")

// PostWithComments is a post row with its comment count attached.
type PostWithComments struct {
	interfaces.PostRow
	CommentsCount int64 `json:"comments_count"`
}

// CommentCounter runs the grouped comment count.
type CommentCounter interface {
	CommentCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error)
}

// FetchWithCommentsCount attaches comment counts to posts with a single
// aggregate query. Order and length of posts are preserved.
func FetchWithCommentsCount(ctx context.Context, counter CommentCounter, posts []interfaces.PostRow) ([]PostWithComments, error) {
	out := make([]PostWithComments, len(posts))
	if len(posts) == 0 {
		return out, nil
	}

	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	counts, err := counter.CommentCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}

	for i, p := range posts {
		n, ok := counts[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: post %d", ErrMissingCommentsCount, p.ID)
		}
		out[i] = PostWithComments{PostRow: p, CommentsCount: n}
	}
	return out, nil
}
