package cycle

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moltbot/molt-treasury/internal/runstate"
	"github.com/moltbot/molt-treasury/internal/units"
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages in execution order.
const (
	StagePreflight Stage = "preflight"
	StageRead      Stage = "read"
	StageClaim     Stage = "claim"
	StageSwap      Stage = "swap"
	StageStake     Stage = "stake"
	StageValue     Stage = "value"
	StageAnnounce  Stage = "announce"
	StagePersist   Stage = "persist"
)

// Status is how a stage ended.
type Status string

// Stage statuses.
const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Skip reasons shared by several stages.
const (
	ReasonDryRun             = "dry-run"
	ReasonInsufficientGas    = "insufficient-gas"
	ReasonBalanceUnavailable = "balance-unavailable"
	ReasonUnavailable        = "unavailable"
)

// StageOutcome records a stage's status and, unless it succeeded, why.
type StageOutcome struct {
	Stage  Stage
	Status Status
	Reason string
}

// Plan holds what a dry run would have submitted.
type Plan struct {
	ClaimPrimary   *big.Int
	ClaimSecondary *big.Int
	SwapIn         *big.Int
	Stake          *big.Int
}

// Result is the in-memory record of one cycle. Amounts are in smallest units.
type Result struct {
	RunID     string
	StartedAt time.Time
	DryRun    bool

	ClaimedPrimary   *big.Int
	ClaimedSecondary *big.Int
	SecondaryIn      *big.Int
	PrimaryOut       *big.Int
	Staked           *big.Int

	APR      float64
	PriceUSD decimal.Decimal
	TotalUSD decimal.Decimal
	Tweeted  bool
	PostID   string

	Plan   Plan
	Stages []StageOutcome
}

func newResult(runID string, startedAt time.Time, dryRun bool) *Result {
	return &Result{
		RunID:            runID,
		StartedAt:        startedAt,
		DryRun:           dryRun,
		ClaimedPrimary:   new(big.Int),
		ClaimedSecondary: new(big.Int),
		SecondaryIn:      new(big.Int),
		PrimaryOut:       new(big.Int),
		Staked:           new(big.Int),
		PriceUSD:         decimal.Zero,
		TotalUSD:         decimal.Zero,
		Plan: Plan{
			ClaimPrimary:   new(big.Int),
			ClaimSecondary: new(big.Int),
			SwapIn:         new(big.Int),
			Stake:          new(big.Int),
		},
	}
}

func (r *Result) record(stage Stage, status Status, reason string) {
	r.Stages = append(r.Stages, StageOutcome{Stage: stage, Status: status, Reason: reason})
	StageOutcomesTotal.WithLabelValues(string(stage), string(status)).Inc()
}

// Outcome returns the recorded outcome of stage.
func (r *Result) Outcome(stage Stage) (StageOutcome, bool) {
	for _, o := range r.Stages {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// Snapshot converts the result into its persisted form.
func (r *Result) Snapshot(decimals int) *runstate.Snapshot {
	stages := make([]runstate.Stage, 0, len(r.Stages))
	for _, o := range r.Stages {
		stages = append(stages, runstate.Stage{
			Name:   string(o.Stage),
			Status: string(o.Status),
			Reason: o.Reason,
		})
	}

	return &runstate.Snapshot{
		RunID:   r.RunID,
		LastRun: runstate.FormatTimestamp(r.StartedAt),
		Claimed: runstate.Claimed{
			Primary:   units.Format(r.ClaimedPrimary, decimals),
			Secondary: units.Format(r.ClaimedSecondary, decimals),
		},
		Buyback: runstate.Buyback{
			SecondaryIn: units.Format(r.SecondaryIn, decimals),
			PrimaryOut:  units.Format(r.PrimaryOut, decimals),
		},
		Restaked:      units.Format(r.Staked, decimals),
		TotalUSDValue: r.TotalUSD.StringFixed(4),
		APR:           r.APR,
		Tweeted:       r.Tweeted,
		Stages:        stages,
	}
}
