// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-Zapivahin/sensive-blog/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing. Keys used by the
// tests start with "kvtest:" and are removed before each case.
type StoreFactory func(t *testing.T) kv.Store

var keys = []string{"kvtest:a", "kvtest:b", "kvtest:ttl", "kvtest:counter", "kvtest:text"}

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"Overwrite", testOverwrite},
		{"Del", testDel},
		{"TTL", testTTL},
		{"IncrBy", testIncrBy},
		{"IncrByNonInteger", testIncrByNonInteger},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			_, err := store.Del(context.Background(), keys...)
			require.NoError(t, err)
			tt.test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "kvtest:a", []byte("hello world"), 0))

	got, err := store.Get(ctx, "kvtest:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "kvtest:a")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func testOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "kvtest:a", []byte("one"), time.Hour))
	require.NoError(t, store.Set(ctx, "kvtest:a", []byte("two"), 0))

	got, err := store.Get(ctx, "kvtest:a")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "kvtest:a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "kvtest:b", []byte("2"), 0))

	n, err := store.Del(ctx, "kvtest:a", "kvtest:b", "kvtest:text")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = store.Get(ctx, "kvtest:a")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	n, err = store.Del(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "kvtest:ttl", []byte("short"), 50*time.Millisecond))

	_, err := store.Get(ctx, "kvtest:ttl")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "kvtest:ttl")
		return err == kv.ErrNotFound
	}, 2*time.Second, 20*time.Millisecond)
}

func testIncrBy(t *testing.T, store kv.Store) {
	ctx := context.Background()

	v, err := store.IncrBy(ctx, "kvtest:counter", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	v, err = store.IncrBy(ctx, "kvtest:counter", 5)
	require.NoError(t, err)
	assert.EqualValues(t, 6, v)

	v, err = store.IncrBy(ctx, "kvtest:counter", -2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, v)

	raw, err := store.Get(ctx, "kvtest:counter")
	require.NoError(t, err)
	assert.Equal(t, "4", string(raw))
}

func testIncrByNonInteger(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "kvtest:text", []byte("abc"), 0))

	_, err := store.IncrBy(ctx, "kvtest:text", 1)
	assert.Error(t, err)
}

func testPing(t *testing.T, store kv.Store) {
	assert.NoError(t, store.Ping(context.Background()))
}
