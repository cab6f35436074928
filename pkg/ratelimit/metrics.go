package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for request pacing.
var (
	intervalSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bulkfetch_ratelimit_interval_seconds",
		Help: "Current minimum spacing between requests by limiter",
	}, []string{"limiter"})

	penaltiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkfetch_ratelimit_penalties_total",
		Help: "Total number of times the pacing cursor was pushed forward",
	}, []string{"limiter"})

	throttlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkfetch_ratelimit_throttles_total",
		Help: "Total number of times the request interval was raised",
	}, []string{"limiter"})

	waitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bulkfetch_ratelimit_wait_seconds",
		Help:    "Time callers spent blocked in Wait by limiter",
		Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 30, 120, 600},
	}, []string{"limiter"})
)
