package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Tracker periodically fetches the treasury balance sheet and updates Prometheus metrics.
type Tracker struct {
	fetcher      BalanceFetcher
	address      common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// Config holds tracker configuration.
type Config struct {
	Fetcher      BalanceFetcher
	Address      common.Address
	PollInterval time.Duration
	Logger       *zap.Logger
}

// New creates a new wallet tracker.
func New(cfg *Config) (t *Tracker, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Fetcher == nil {
		return nil, errors.New("balance fetcher cannot be nil")
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	tracker := &Tracker{
		fetcher:      cfg.Fetcher,
		address:      cfg.Address,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}

	return tracker, nil
}

// Run starts the tracker polling loop (blocking).
func (t *Tracker) Run(ctx context.Context) (err error) {
	t.logger.Info("wallet-tracker-starting",
		zap.Duration("poll-interval", t.pollInterval),
		zap.String("address", t.address.Hex()))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	pollErr := t.poll(ctx)
	if pollErr != nil {
		t.logger.Error("initial-poll-failed", zap.Error(pollErr))
		UpdateErrorsTotal.Inc()
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("wallet-tracker-stopping")
			return ctx.Err()
		case <-ticker.C:
			pollErr = t.poll(ctx)
			if pollErr != nil {
				t.logger.Error("poll-failed", zap.Error(pollErr))
				UpdateErrorsTotal.Inc()
			}
		}
	}
}

// poll performs a single polling cycle.
func (t *Tracker) poll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	balCtx, balCancel := context.WithTimeout(ctx, 15*time.Second)
	defer balCancel()

	balances, err := t.fetcher.GetBalances(balCtx, t.address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	t.updateMetrics(balances)
	LastUpdateTimestamp.Set(float64(time.Now().Unix()))

	t.logger.Debug("poll-complete",
		zap.Float64("bnb", ToFloat(balances.Native, 18)),
		zap.Float64("staked", ToFloat(balances.Staked, balances.Decimals)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// updateMetrics updates Prometheus gauges with the balance sheet.
func (t *Tracker) updateMetrics(balances *Balances) {
	NativeBalance.Set(ToFloat(balances.Native, 18))
	PrimaryBalance.Set(ToFloat(balances.Primary, balances.Decimals))
	SecondaryBalance.Set(ToFloat(balances.Secondary, balances.Decimals))
	StakedBalance.Set(ToFloat(balances.Staked, balances.Decimals))
	ClaimablePrimary.Set(ToFloat(balances.ClaimablePrimary, balances.Decimals))
	ClaimableSecondary.Set(ToFloat(balances.ClaimableSecondary, balances.Decimals))

	// bps -> percent
	StakingAPR.Set(ToFloat(balances.APRBps, 2))
}
