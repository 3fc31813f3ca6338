// Package metrics provides the centralized Prometheus registry reference
// for the market cache. Metrics are defined in the packages they
// instrument (cache, client, retry, dedup, ratelimit) to keep ownership
// local and avoid circular dependencies; this package documents the
// catalog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer. All metrics are
// registered automatically via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache metrics (pkg/cache):
//   - market_cache_hits_total{tier} (Counter): Cache hits by tier (memory, redis)
//   - market_cache_misses_total (Counter): Cache misses
//   - market_cache_errors_total{operation} (Counter): Absorbed tier errors
//   - market_cache_stale_serves_total (Counter): Reads served from stale-but-usable entries
//   - market_cache_evictions_total (Counter): Memory tier capacity evictions
//
// Request metrics (pkg/client):
//   - market_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and status
//   - market_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//   - market_background_refreshes_total{result} (Counter): Fire-and-forget refresh outcomes
//
// Retry metrics (pkg/retry):
//   - market_retries_total{reason} (Counter): Retry attempts by HTTP status or error code
//   - market_retry_exhausted_total (Counter): Operations that exhausted all attempts
//
// Deduplication metrics (pkg/dedup):
//   - market_dedup_hits_total (Counter): Calls that joined an in-flight operation
//
// Rate limit metrics (pkg/ratelimit):
//   - market_rate_limit_blocks_total (Counter): Requests blocked by an active cooldown
//   - market_rate_limit_cooldowns_total (Counter): Cooldowns entered after 429 responses
//   - market_rate_limit_cooldown_seconds (Gauge): Remaining cooldown
//
// Example Prometheus Queries:
//
//   # Cache hit rate
//   sum(rate(market_cache_hits_total[5m])) /
//   (sum(rate(market_cache_hits_total[5m])) + sum(rate(market_cache_misses_total[5m])))
//
//   # Share of reads served stale
//   rate(market_cache_stale_serves_total[5m]) / sum(rate(market_cache_hits_total[5m]))
//
//   # Upstream error rate
//   sum(rate(market_requests_total{status=~"5..|429"}[5m]))
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(market_request_duration_seconds_bucket[5m]))
