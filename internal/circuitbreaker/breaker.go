// Package circuitbreaker pauses scheduled cycles while the wallet cannot
// afford their gas.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/pkg/wallet"
)

// spendWindow is how many recent cycles feed the average gas spend.
const spendWindow = 20

// NativeReader reads an account's native (BNB) balance in wei.
type NativeReader interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// GasBreaker monitors the wallet's BNB balance and gates cycle execution.
// Thresholds follow the rolling average gas spent per cycle, with hysteresis
// so the breaker does not flap around a single value.
type GasBreaker struct {
	enabled atomic.Bool

	checkInterval   time.Duration
	reader          NativeReader
	address         common.Address
	logger          *zap.Logger
	spendMultiplier float64 // disable below multiplier * average spend
	minAbsolute     float64 // BNB floor for the disable threshold
	hysteresisRatio float64 // re-enable at ratio * disable threshold

	mu               sync.RWMutex
	lastBalance      float64
	lastCheck        time.Time
	recentSpends     []float64
	disableThreshold float64
	enableThreshold  float64
}

// Config holds breaker configuration. MinAbsolute is in BNB.
type Config struct {
	CheckInterval   time.Duration
	SpendMultiplier float64
	MinAbsolute     float64
	HysteresisRatio float64
	Reader          NativeReader
	Address         common.Address
	Logger          *zap.Logger
}

// Status is a point-in-time view of the breaker.
type Status struct {
	Enabled          bool
	LastBalance      float64
	LastCheck        time.Time
	DisableThreshold float64
	EnableThreshold  float64
	AvgSpend         float64
	RecentCycles     int
}

// New creates a breaker that starts enabled.
func New(cfg *Config) (breaker *GasBreaker, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, errors.New("check interval must be positive")
	}
	if cfg.SpendMultiplier <= 0 {
		return nil, errors.New("spend multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, errors.New("min absolute must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, errors.New("hysteresis ratio must be >= 1.0")
	}

	breaker = &GasBreaker{
		checkInterval:    cfg.CheckInterval,
		reader:           cfg.Reader,
		address:          cfg.Address,
		logger:           cfg.Logger,
		spendMultiplier:  cfg.SpendMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		recentSpends:     make([]float64, 0, spendWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}

	breaker.enabled.Store(true)

	BreakerEnabled.Set(1)
	BreakerDisableThreshold.Set(breaker.disableThreshold)
	BreakerEnableThreshold.Set(breaker.enableThreshold)
	BreakerAvgSpend.Set(0)

	return breaker, nil
}

// IsEnabled reports whether cycles may run. Lock-free.
func (b *GasBreaker) IsEnabled() (enabled bool) {
	return b.enabled.Load()
}

// RecordSpend adds one cycle's gas spend in BNB to the rolling window and
// recalculates thresholds.
func (b *GasBreaker) RecordSpend(bnb float64) {
	if bnb <= 0 {
		b.logger.Debug("gas-spend-ignored", zap.Float64("bnb", bnb))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentSpends = append(b.recentSpends, bnb)
	if len(b.recentSpends) > spendWindow {
		b.recentSpends = b.recentSpends[1:]
	}

	avg := average(b.recentSpends)

	b.disableThreshold = math.Max(avg*b.spendMultiplier, b.minAbsolute)
	b.enableThreshold = b.disableThreshold * b.hysteresisRatio

	BreakerAvgSpend.Set(avg)
	BreakerDisableThreshold.Set(b.disableThreshold)
	BreakerEnableThreshold.Set(b.enableThreshold)

	b.logger.Debug("gas-thresholds-updated",
		zap.Float64("avg-spend", avg),
		zap.Int("cycles", len(b.recentSpends)),
		zap.Float64("disable-threshold", b.disableThreshold),
		zap.Float64("enable-threshold", b.enableThreshold))
}

// CheckBalance reads the BNB balance and updates the enabled state. A failed
// read leaves the state unchanged.
func (b *GasBreaker) CheckBalance(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		BreakerCheckDuration.Observe(time.Since(start).Seconds())
	}()

	wei, err := b.reader.NativeBalance(ctx, b.address)
	if err != nil {
		b.logger.Error("gas-balance-check-failed",
			zap.Error(err),
			zap.String("address", b.address.Hex()))
		return fmt.Errorf("get native balance: %w", err)
	}

	balance := wallet.ToFloat(wei, 18)

	b.mu.Lock()
	b.lastBalance = balance
	b.lastCheck = time.Now()
	disableThreshold := b.disableThreshold
	enableThreshold := b.enableThreshold
	b.mu.Unlock()

	BreakerBalance.Set(balance)

	currentlyEnabled := b.enabled.Load()
	shouldDisable := currentlyEnabled && balance < disableThreshold
	shouldEnable := !currentlyEnabled && balance >= enableThreshold

	switch {
	case shouldDisable:
		b.enabled.Store(false)
		BreakerEnabled.Set(0)
		BreakerStateChanges.Inc()

		b.logger.Warn("gas-breaker-open",
			zap.Float64("bnb", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	case shouldEnable:
		b.enabled.Store(true)
		BreakerEnabled.Set(1)
		BreakerStateChanges.Inc()

		b.logger.Info("gas-breaker-closed",
			zap.Float64("bnb", balance),
			zap.Float64("disable-threshold", disableThreshold),
			zap.Float64("enable-threshold", enableThreshold))
	default:
		b.logger.Debug("gas-balance-checked",
			zap.Float64("bnb", balance),
			zap.Bool("enabled", currentlyEnabled))
	}

	return nil
}

// Run checks the balance immediately and then every check interval until
// ctx is cancelled.
func (b *GasBreaker) Run(ctx context.Context) error {
	b.logger.Info("gas-breaker-started",
		zap.Duration("check-interval", b.checkInterval),
		zap.Float64("spend-multiplier", b.spendMultiplier),
		zap.Float64("min-absolute", b.minAbsolute),
		zap.Float64("hysteresis-ratio", b.hysteresisRatio))

	_ = b.CheckBalance(ctx)

	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("gas-breaker-stopped")
			return ctx.Err()
		case <-ticker.C:
			_ = b.CheckBalance(ctx)
		}
	}
}

// Status returns the current breaker state.
func (b *GasBreaker) Status() (status Status) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Status{
		Enabled:          b.enabled.Load(),
		LastBalance:      b.lastBalance,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgSpend:         average(b.recentSpends),
		RecentCycles:     len(b.recentSpends),
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
