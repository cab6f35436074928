// Package cache stores listing pages in Redis so that an interrupted run can
// replay its pagination walk without hitting the listing endpoint again.
//
// Pages are keyed by endpoint, root ID, page size and page token. Entries
// carry their own expiry and Redis drops them at the same moment.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	pages := cache.NewManager(redisClient, 6*time.Hour)
//
//	key := cache.PageKey{Endpoint: "/api/list", RootID: "42", PageSize: 50}
//	entry, err := pages.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch the page, then
//		_ = pages.Put(ctx, key, body)
//	}
//
// After a complete run the caller purges the listing so the next run sees
// new items:
//
//	_, _ = pages.Purge(ctx, "/api/list", "42")
//
// # Metrics
//
//   - bulkfetch_page_cache_hits_total
//   - bulkfetch_page_cache_misses_total
//   - bulkfetch_page_cache_written_bytes_total
//   - bulkfetch_page_cache_errors_total{operation}
package cache
