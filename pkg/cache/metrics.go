package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by tier (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors tracks absorbed cache tier errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_errors_total",
			Help: "Total number of cache operation errors (absorbed, not propagated)",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear", "has", "connect"
	)

	// StaleServes tracks reads answered with stale-but-usable entries
	StaleServes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_cache_stale_serves_total",
			Help: "Total number of reads served from stale-but-usable entries",
		},
	)

	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_cache_evictions_total",
			Help: "Total number of entries evicted from the memory tier at capacity",
		},
	)
)
