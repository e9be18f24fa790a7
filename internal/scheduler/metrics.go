package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// JobRunsTotal counts scheduled runs by result.
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_scheduler_runs_total",
		Help: "Scheduled runs by result",
	}, []string{"result"})

	// RunningJobs is 1 while a run is in flight.
	RunningJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_scheduler_running",
		Help: "Scheduled runs currently in flight",
	})

	// JobDuration observes run wall time.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molt_scheduler_run_duration_seconds",
		Help:    "Scheduled run duration (seconds)",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// LastRunTimestamp is the start time of the latest run.
	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_scheduler_last_run_timestamp",
		Help: "Unix timestamp of the latest scheduled run",
	})
)
