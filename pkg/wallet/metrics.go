package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// NativeBalance tracks the BNB balance available for gas.
	NativeBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_wallet_bnb_balance",
		Help: "Current BNB balance in wallet (native units)",
	})

	// PrimaryBalance tracks the unstaked $MOLT balance.
	PrimaryBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_wallet_molt_balance",
		Help: "Current unstaked MOLT balance in wallet",
	})

	// SecondaryBalance tracks the USD1 balance awaiting buyback.
	SecondaryBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_wallet_usd1_balance",
		Help: "Current USD1 balance in wallet",
	})

	// StakedBalance tracks MOLT staked in the staking contract.
	StakedBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_wallet_staked_balance",
		Help: "MOLT staked by the treasury wallet",
	})

	// ClaimablePrimary tracks unclaimed MOLT rewards.
	ClaimablePrimary = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_wallet_claimable_molt",
		Help: "Unclaimed MOLT staking rewards",
	})

	// ClaimableSecondary tracks unclaimed USD1 rewards.
	ClaimableSecondary = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_wallet_claimable_usd1",
		Help: "Unclaimed USD1 staking rewards",
	})

	// StakingAPR tracks the staking contract's advertised APR.
	StakingAPR = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_staking_apr_percent",
		Help: "Staking APR reported by the staking contract (percent)",
	})

	// UpdateErrorsTotal tracks the number of failed update attempts.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "molt_wallet_update_errors_total",
		Help: "Total number of failed wallet update attempts",
	})

	// UpdateDuration tracks the time taken to fetch wallet data.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "molt_wallet_update_duration_seconds",
		Help:    "Time taken to fetch wallet data (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp tracks the Unix timestamp of the last successful update.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "molt_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful wallet update",
	})
)
