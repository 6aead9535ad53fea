// Package cache provides a small key/value cache interface with an LRU
// implementation and a no-op one.
//
// Lookup indexes sit a [LRU] in front of their remote key/value store:
//
//	lru := cache.NewLRU(cache.LRUOpts{Size: 4096, TTL: time.Minute})
//	defer lru.Close()
//	ids := cache.NewTyped[string](lru)
//	ids.Put("main:user:login:jo", id)
//
// Expired entries are evicted lazily on access.
package cache
