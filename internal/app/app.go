// Package app wires the treasury components and runs the long-lived daemon.
package app

import (
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/circuitbreaker"
	"github.com/moltbot/molt-treasury/internal/cycle"
	"github.com/moltbot/molt-treasury/internal/history"
	"github.com/moltbot/molt-treasury/internal/scheduler"
	"github.com/moltbot/molt-treasury/pkg/config"
	"github.com/moltbot/molt-treasury/pkg/healthprobe"
	"github.com/moltbot/molt-treasury/pkg/httpserver"
	"github.com/moltbot/molt-treasury/pkg/wallet"
)

// App is the serve-mode orchestrator: HTTP surface, wallet tracker and the
// cycle schedule.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	chain         *Chain
	history       history.Sink
	pipeline      *cycle.Pipeline
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	tracker       *wallet.Tracker
	breaker       *circuitbreaker.GasBreaker // nil when disabled
	scheduler     *scheduler.Scheduler
	spec          string
}

// Options holds serve-mode options.
type Options struct {
	Schedule   string // cron spec; empty uses the configured schedule
	RunOnStart bool
	DryRun     bool
}
