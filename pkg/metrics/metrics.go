// Package metrics exposes the Prometheus metrics of the crawler over HTTP.
// All metrics are defined in their respective packages (client, ratelimit,
// cache, pagination, fetch, summary) and registered via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the crawler.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry served on /metrics.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - bulkfetch_ratelimit_interval_seconds{limiter} (Gauge): Current spacing between requests
//   - bulkfetch_ratelimit_penalties_total{limiter} (Counter): Pacing cursor pushed forward
//   - bulkfetch_ratelimit_throttles_total{limiter} (Counter): Interval raised after 429
//   - bulkfetch_ratelimit_wait_seconds{limiter} (Histogram): Time blocked in Wait
//
// Request Metrics (pkg/client):
//   - bulkfetch_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - bulkfetch_request_duration_seconds{endpoint} (Histogram): Attempt duration
//   - bulkfetch_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - bulkfetch_retries_total{error_class} (Counter): Retry attempts
//   - bulkfetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - bulkfetch_retry_exhausted_total{error_class} (Counter): Calls that used every attempt
//
// Page Cache Metrics (pkg/cache):
//   - bulkfetch_page_cache_hits_total (Counter)
//   - bulkfetch_page_cache_misses_total (Counter)
//   - bulkfetch_page_cache_written_bytes_total (Counter)
//   - bulkfetch_page_cache_errors_total{operation} (Counter)
//
// Listing Metrics (pkg/pagination):
//   - bulkfetch_listing_pages_total{source} (Counter): Pages from network or cache
//   - bulkfetch_listing_items_total (Counter): Items before deduplication
//
// Fetch Metrics (pkg/fetch):
//   - bulkfetch_items_fetched_total (Counter)
//   - bulkfetch_items_skipped_total (Counter)
//   - bulkfetch_items_missing (Gauge): Targets not yet persisted
//   - bulkfetch_item_duration_seconds (Histogram)
//   - bulkfetch_fetch_passes_total (Counter)
//
// Summary Metrics (pkg/summary):
//   - bulkfetch_summary_rows_written_total{sink} (Counter)
//
// Example Prometheus Queries:
//
//   # Fetch throughput
//   rate(bulkfetch_items_fetched_total[1m])
//
//   # Throttled limiters
//   bulkfetch_ratelimit_interval_seconds > 1
//
//   # Request Error Rate
//   rate(bulkfetch_errors_total[5m])
//
//   # P95 item latency
//   histogram_quantile(0.95, rate(bulkfetch_item_duration_seconds_bucket[5m]))
