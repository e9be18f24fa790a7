package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run starts the application and blocks until ctx is cancelled, a shutdown
// signal arrives or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application-starting",
		zap.String("wallet", a.chain.Identity.Address().Hex()),
		zap.String("schedule", a.spec),
		zap.String("announce-mode", a.cfg.AnnounceMode),
		zap.String("history-mode", a.cfg.HistoryMode),
		zap.String("log-level", a.cfg.LogLevel))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.httpServer.Start)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return ignoreCanceled(a.tracker.Run(gctx))
	})

	if a.breaker != nil {
		g.Go(func() error {
			return ignoreCanceled(a.breaker.Run(gctx))
		})
	}

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Time("next-cycle", a.scheduler.Next()))

	err := g.Wait()
	a.Shutdown()

	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// runCycle is the scheduled job. An open gas breaker skips the cycle
// without recording it, so readiness goes stale until gas is topped up.
func (a *App) runCycle(ctx context.Context) error {
	before, measured := a.gasBalance(ctx)

	if a.breaker != nil && !a.breaker.IsEnabled() {
		status := a.breaker.Status()
		a.logger.Warn("cycle-skipped-low-gas",
			zap.Float64("bnb", status.LastBalance),
			zap.Float64("enable-threshold", status.EnableThreshold))
		return nil
	}

	_, err := a.pipeline.Run(ctx)
	a.healthChecker.RecordCycle(time.Now(), err)
	if measured {
		a.recordGasSpend(ctx, before)
	}
	return err
}

// gasBalance polls the breaker right before a cycle and returns the BNB
// balance it read.
func (a *App) gasBalance(ctx context.Context) (float64, bool) {
	if a.breaker == nil {
		return 0, false
	}
	if err := a.breaker.CheckBalance(ctx); err != nil {
		return 0, false
	}
	return a.breaker.Status().LastBalance, true
}

// recordGasSpend feeds the BNB the cycle spent into the breaker's rolling
// average.
func (a *App) recordGasSpend(ctx context.Context, before float64) {
	if err := a.breaker.CheckBalance(ctx); err != nil {
		return
	}
	a.breaker.RecordSpend(before - a.breaker.Status().LastBalance)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
