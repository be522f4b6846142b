package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Michael-Zapivahin/sensive-blog/internal/blog"
)

type mockPages struct {
	mock.Mock
}

func (m *mockPages) Index(ctx context.Context) (blog.Page, error) {
	args := m.Called(ctx)
	return args.Get(0).(blog.Page), args.Error(1)
}

func (m *mockPages) TagFilter(ctx context.Context, title string) (blog.Page, error) {
	args := m.Called(ctx, title)
	return args.Get(0).(blog.Page), args.Error(1)
}

func indexWithTags(titles ...string) blog.Page {
	c := blog.IndexContext{}
	for _, t := range titles {
		c.PopularTags = append(c.PopularTags, blog.TagView{Title: t})
	}
	return blog.Page{Template: blog.TemplateIndex, Context: c}
}

func TestWarmBuildsIndexAndTagPages(t *testing.T) {
	pages := new(mockPages)
	pages.On("Index", mock.Anything).Return(indexWithTags("go", "python"), nil)
	pages.On("TagFilter", mock.Anything, "go").Return(blog.Page{}, nil)
	pages.On("TagFilter", mock.Anything, "python").Return(blog.Page{}, errors.New("boom"))

	w := NewPageWarmer(pages, zaptest.NewLogger(t).Sugar(), PageWarmerConfig{Interval: time.Minute})
	assert.Equal(t, 2, w.Warm(context.Background()))
	pages.AssertExpectations(t)
}

func TestWarmStopsWhenIndexFails(t *testing.T) {
	pages := new(mockPages)
	pages.On("Index", mock.Anything).Return(blog.Page{}, errors.New("store down"))

	w := NewPageWarmer(pages, zaptest.NewLogger(t).Sugar(), PageWarmerConfig{Interval: time.Minute})
	assert.Zero(t, w.Warm(context.Background()))
	pages.AssertNotCalled(t, "TagFilter", mock.Anything, mock.Anything)
}

func TestStartRunsUntilStopped(t *testing.T) {
	var passes atomic.Int32
	pages := new(mockPages)
	pages.On("Index", mock.Anything).
		Run(func(mock.Arguments) { passes.Add(1) }).
		Return(indexWithTags(), nil)

	w := NewPageWarmer(pages, zaptest.NewLogger(t).Sugar(), PageWarmerConfig{Interval: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return passes.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	w.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("warmer did not stop")
	}
}
