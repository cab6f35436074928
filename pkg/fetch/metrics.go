package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// itemsFetched counts items fetched and persisted
	itemsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_items_fetched_total",
			Help: "Total number of items fetched and persisted",
		},
	)

	// itemsSkipped counts items already present in the store
	itemsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_items_skipped_total",
			Help: "Total number of items skipped because they were already persisted",
		},
	)

	// itemsMissing is the pending set size at the start of each pass and after the last
	itemsMissing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulkfetch_items_missing",
			Help: "Number of target items not yet persisted",
		},
	)

	// itemDuration tracks fetch+persist time per item
	itemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulkfetch_item_duration_seconds",
			Help:    "Time to fetch and persist one item, including rate limiting and retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// passesTotal counts reconciliation passes that had work to do
	passesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_fetch_passes_total",
			Help: "Total number of fetch passes run",
		},
	)
)
