// Package kv provides a small key-value store abstraction with in-memory
// and Redis-backed implementations.
//
// Backends register themselves on import:
//
//	import (
//		"github.com/Michael-Zapivahin/sensive-blog/pkg/kv"
//		_ "github.com/Michael-Zapivahin/sensive-blog/pkg/kv/memory"
//		_ "github.com/Michael-Zapivahin/sensive-blog/pkg/kv/redis"
//	)
//
//	store, err := kv.NewStoreFromConfig(kv.Config{
//		Backend:          kv.BackendRedis,
//		RedisURL:         "redis://localhost:6379/0",
//		FallbackToMemory: true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
package kv
