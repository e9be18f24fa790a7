package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RPCCallsTotal counts contract reads by method and outcome.
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_chain_calls_total",
		Help: "Total contract view calls by method and status",
	}, []string{"method", "status"})

	// TxSentTotal counts submitted transactions by label and outcome.
	TxSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "molt_chain_tx_total",
		Help: "Total transactions submitted by label and status",
	}, []string{"label", "status"})

	// TxGasUsed observes gas used by mined transactions.
	TxGasUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "molt_chain_tx_gas_used",
		Help:    "Gas used by mined transactions",
		Buckets: prometheus.ExponentialBuckets(25_000, 2, 8),
	}, []string{"label"})

	// TxConfirmDuration observes the time from send to receipt.
	TxConfirmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "molt_chain_tx_confirm_seconds",
		Help:    "Time from broadcast to receipt (seconds)",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 30, 60, 120},
	}, []string{"label"})
)
