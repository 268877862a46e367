package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Ingestion metrics
	ItemsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsroom_items_merged_total",
			Help: "Items added or updated by merge operations",
		},
		[]string{"source", "kind"},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsroom_fetch_failures_total",
			Help: "Per-source fetch failures",
		},
		[]string{"source"},
	)

	ItemsFlagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsroom_items_flagged_total",
			Help: "Items flagged by the quality filter",
		},
		[]string{"source", "reason"},
	)

	ItemsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsroom_items_published_total",
			Help: "Items materialized into the published store",
		},
		[]string{"source", "language"},
	)

	// Application health metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"service", "version"},
	)
)

// Init seeds metrics with default values.
func Init(serviceName, version string) {
	ApplicationInfo.WithLabelValues(serviceName, version).Set(1)
}
