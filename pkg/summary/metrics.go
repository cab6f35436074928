package summary

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// rowsWritten counts summary rows handed to each sink
var rowsWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bulkfetch_summary_rows_written_total",
		Help: "Total number of summary rows written",
	},
	[]string{"sink"}, // "csv", "postgres"
)
