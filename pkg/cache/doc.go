// Package cache stores upstream responses so repeated runs over the same
// keys do not hit the source again.
//
// Entries are keyed by request method, normalized URL and a hash of the
// request body, so GraphQL lookups for different users never collide even
// though they share one URL. Every entry carries an absolute expiry; Redis
// drops the key when it expires.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.NewKey(http.MethodPost, "https://leetcode.com/graphql", body)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the source, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(status, contentType, data, ttl))
//	}
//
// Tests and single-shot runs can use NewMemoryStore instead of Redis.
//
// # Metrics
//
//   - lcfetch_cache_hits_total{layer} - Cache hits
//   - lcfetch_cache_misses_total - Cache misses
//   - lcfetch_cache_size_bytes{layer} - Bytes written to the cache
//   - lcfetch_cache_errors_total{operation} - Cache operation errors
//
// Only successful (2xx) responses are cached; failures and not-found answers
// are always fetched again.
package cache
