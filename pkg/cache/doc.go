// Package cache provides two-tier caching for upstream market data with
// a stale-while-revalidate refresh policy.
//
// The manager combines a process-local memory tier with an optional
// Redis-backed distributed tier:
//
//   - Reads try Redis first and backfill the memory tier on a hit.
//   - Writes go memory-first, then Redis, so a same-process reader
//     always observes its own write.
//   - Every distributed-tier failure is absorbed and degrades to a miss;
//     callers cannot tell a cache failure from a cache miss.
//
// # Freshness model
//
// Each entry carries three timestamps: RefreshedAt (last upstream
// fetch), RefreshAt (background refresh due) and ExpiresAt (stop
// serving). Between RefreshAt and ExpiresAt an entry is stale-but-usable:
// it is still served, and NeedsRefresh tells the caller to trigger a
// fire-and-forget upstream refresh.
//
// # Basic Usage
//
//	manager := cache.NewManager(cache.Config{
//		Store:      cache.NewRedisStore(redisClient), // optional
//		Namespace:  "market",
//		DefaultTTL: 5 * time.Minute,
//	})
//
//	key := cache.NewKey("simple-price", map[string]string{
//		"ids": "bitcoin",
//		"vs":  "usd",
//	})
//
//	if prices, ok := cache.GetAs[map[string]float64](ctx, manager, key); ok {
//		if manager.NeedsRefresh(ctx, key) {
//			go refresh() // unawaited; failure only logged
//		}
//		return prices
//	}
//
//	// miss: fetch upstream synchronously, then
//	_ = manager.Set(ctx, key, fetched, cache.Options{
//		TTL:             2 * time.Minute,
//		RefreshInterval: 1 * time.Minute,
//	})
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - market_cache_hits_total{tier} - Cache hits by tier
//   - market_cache_misses_total - Cache misses
//   - market_cache_errors_total{operation} - Absorbed tier errors
//   - market_cache_stale_serves_total - Reads served stale-but-usable
//   - market_cache_evictions_total - Memory tier capacity evictions
//
// # Limitations
//
// Clear cannot selectively drop a namespace: it warns and clears
// everything. The memory tier evicts oldest-inserted-first, which is a
// bounded-memory safeguard rather than a tuned eviction policy.
package cache
