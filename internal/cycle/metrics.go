package cycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// CyclesTotal counts completed cycles by mode.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_cycles_total",
		Help: "Total claim-buyback-restake cycles run",
	}, []string{"mode"})

	// StageOutcomesTotal counts stage outcomes.
	StageOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_cycle_stage_outcomes_total",
		Help: "Pipeline stage outcomes by stage and status",
	}, []string{"stage", "status"})

	// ReadFailuresTotal counts best-effort reads that fell back to zero.
	ReadFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_cycle_read_failures_total",
		Help: "Chain reads that failed and defaulted to zero",
	}, []string{"read"})

	// TokensMovedTotal accumulates whole-token amounts by flow.
	TokensMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_cycle_tokens_total",
		Help: "Tokens claimed, swapped and staked (whole tokens)",
	}, []string{"flow"})

	// LastCycleUSD is the valuation of the latest cycle.
	LastCycleUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_cycle_last_usd_value",
		Help: "USD value of the most recent cycle",
	})

	// LastCycleTimestamp is the start time of the latest cycle.
	LastCycleTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_cycle_last_timestamp",
		Help: "Unix timestamp of the most recent cycle start",
	})

	// CycleDuration observes wall time per cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molt_cycle_duration_seconds",
		Help:    "Cycle wall time (seconds)",
		Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
	})
)
