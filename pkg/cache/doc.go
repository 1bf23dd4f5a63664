// Package cache provides generic, thread-safe in-memory caches.
//
// Sharded is an LRU with optional per-entry TTL. Keys are spread over
// independently locked shards chosen with hash/maphash, so goroutines reading
// different keys rarely meet on a mutex. The decision engine keeps its
// short-lived result cache here.
//
//	c := cache.NewSharded[string, Decision](10_000)
//	c.Set("new-ui|4f1c", decision, 30*time.Second)
//	if d, ok := c.Get("new-ui|4f1c"); ok {
//		return d
//	}
//
// Expired entries are removed lazily when they are read or pushed out by
// capacity pressure.
package cache
