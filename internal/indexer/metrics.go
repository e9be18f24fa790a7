package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_indexer_queries_total",
		Help: "Total GraphQL queries sent to the indexer by status",
	}, []string{"status"})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molt_indexer_query_duration_seconds",
		Help:    "Indexer query round-trip time (seconds)",
		Buckets: prometheus.DefBuckets,
	})
)
