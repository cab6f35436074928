package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesTotal counts listing pages by where they came from
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkfetch_listing_pages_total",
			Help: "Total number of listing pages consumed",
		},
		[]string{"source"}, // "network", "cache"
	)

	// itemsListed counts raw listing items before deduplication
	itemsListed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_listing_items_total",
			Help: "Total number of listing items received before deduplication",
		},
	)
)
