package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// BreakerEnabled indicates whether the breaker lets cycles run.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_gas_breaker_enabled",
		Help: "Whether the gas breaker allows cycles to run (1=enabled, 0=disabled)",
	})

	// BreakerBalance tracks the last checked BNB balance.
	BreakerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_gas_breaker_balance_bnb",
		Help: "Last BNB balance seen by the gas breaker",
	})

	// BreakerDisableThreshold is the balance below which cycles stop.
	BreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_gas_breaker_disable_threshold_bnb",
		Help: "BNB balance below which cycles are paused (dynamically calculated)",
	})

	// BreakerEnableThreshold is the balance at which cycles resume.
	BreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_gas_breaker_enable_threshold_bnb",
		Help: "BNB balance at which paused cycles resume (with hysteresis)",
	})

	// BreakerAvgSpend tracks the rolling average gas spend per cycle.
	BreakerAvgSpend = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_gas_breaker_avg_cycle_spend_bnb",
		Help: "Rolling average BNB spent on gas per cycle",
	})

	// BreakerStateChanges counts open and close transitions.
	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molt_gas_breaker_state_changes_total",
		Help: "Total number of times the gas breaker changed state",
	})

	// BreakerCheckDuration tracks balance check latency.
	BreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molt_gas_breaker_check_duration_seconds",
		Help:    "Time taken to check the BNB balance",
		Buckets: prometheus.DefBuckets,
	})
)
