package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-Zapivahin/sensive-blog/pkg/kv"
	"github.com/Michael-Zapivahin/sensive-blog/pkg/kv/kvtest"
)

func TestMemoryStore(t *testing.T) {
	factory := func(t *testing.T) kv.Store {
		return New(0) // no janitor, expiry is checked on read
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestMemoryStoreWithJanitor(t *testing.T) {
	store := New(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:janitor", []byte("test"), 20*time.Millisecond))

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		_, present := store.entries["test:janitor"]
		return !present
	}, time.Second, 10*time.Millisecond, "janitor should evict the key without a read")
}

func TestGetReturnsCopy(t *testing.T) {
	store := New(0)
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestCloseTwice(t *testing.T) {
	store := New(time.Millisecond)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestFactoryFallsBackToMemory(t *testing.T) {
	var logged string
	store, err := kv.NewStoreFromConfig(kv.Config{
		Backend:             kv.BackendRedis,
		RedisURL:            "redis://127.0.0.1:1/0",
		FallbackToMemory:    true,
		StartupProbeTimeout: 200 * time.Millisecond,
		Logger:              func(msg string, _ ...interface{}) { logged = msg },
	})
	// the redis backend is not imported in this package, so creation fails
	// before any dial and the memory store is used
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &Store{}, store)
	assert.NotEmpty(t, logged)

	_, err = kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis, RedisURL: "redis://127.0.0.1:1/0"})
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)

	_, err = kv.NewStoreFromConfig(kv.Config{Backend: "etcd"})
	assert.Error(t, err)
}
