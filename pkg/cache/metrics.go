package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageCacheHits tracks listing pages served from Redis
	PageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_page_cache_hits_total",
			Help: "Total number of listing pages served from cache",
		},
	)

	// PageCacheMisses tracks listing pages not found in Redis
	PageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_page_cache_misses_total",
			Help: "Total number of listing page cache misses",
		},
	)

	// PageCacheBytes tracks bytes written to the page cache
	PageCacheBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_page_cache_written_bytes_total",
			Help: "Total bytes of listing pages written to cache",
		},
	)

	// PageCacheErrors tracks cache operation errors
	PageCacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkfetch_page_cache_errors_total",
			Help: "Total number of page cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
