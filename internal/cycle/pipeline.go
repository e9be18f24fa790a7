// Package cycle runs the claim, buyback and restake pipeline.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/announce"
	"github.com/moltbot/molt-treasury/internal/chain"
	"github.com/moltbot/molt-treasury/internal/runstate"
	"github.com/moltbot/molt-treasury/internal/swap"
	"github.com/moltbot/molt-treasury/internal/units"
)

// DefaultAnnounceThresholdUSD is the minimum cycle value that gets announced.
const DefaultAnnounceThresholdUSD = 10

// Ledger is the read side of the chain.
type Ledger interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	ClaimableRewards(ctx context.Context, staking, account, token common.Address) (*big.Int, error)
	APRBps(ctx context.Context, staking common.Address) (*big.Int, error)
}

// Staker submits the staking contract transactions.
type Staker interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error)
	ClaimRewards(ctx context.Context, staking common.Address, tokens []common.Address, to common.Address) (*types.Receipt, error)
	Stake(ctx context.Context, staking common.Address, amount *big.Int) (*types.Receipt, error)
}

// Swapper executes an exact-input pool swap.
type Swapper interface {
	SwapExactIn(
		ctx context.Context,
		key swap.PoolKey,
		zeroForOne bool,
		amountIn, amountOutMin *big.Int,
	) (*types.Receipt, error)
}

// PriceOracle quotes a token's USD price.
type PriceOracle interface {
	TokenPriceUSD(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

// StateWriter persists the latest snapshot.
type StateWriter interface {
	Save(ctx context.Context, snap *runstate.Snapshot) error
}

// HistoryRecorder appends a snapshot to cycle history.
type HistoryRecorder interface {
	RecordCycle(ctx context.Context, snap *runstate.Snapshot) error
}

// Config holds the addresses and policy for a pipeline.
type Config struct {
	Wallet    common.Address
	Primary   common.Address
	Secondary common.Address
	Staking   common.Address

	PrimarySymbol   string
	SecondarySymbol string
	Decimals        int

	AnnounceThresholdUSD decimal.Decimal
	// MinGasBalance in wei. Nil or zero disables the preflight.
	MinGasBalance *big.Int
	DryRun        bool
}

// Deps are the collaborators a pipeline drives. Publisher and History may be nil.
type Deps struct {
	Ledger    Ledger
	Staker    Staker
	Swapper   Swapper
	Pools     swap.Resolver
	Prices    PriceOracle
	Publisher announce.Publisher
	State     StateWriter
	History   HistoryRecorder
	Logger    *zap.Logger
}

// Pipeline runs one cycle per Run call.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// New validates cfg and deps and returns a pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deps.Staker == nil {
		return nil, errors.New("staker is required")
	}
	if deps.Swapper == nil {
		return nil, errors.New("swapper is required")
	}
	if deps.Pools == nil {
		return nil, errors.New("pool resolver is required")
	}
	if deps.Prices == nil {
		return nil, errors.New("price oracle is required")
	}
	if deps.State == nil {
		return nil, errors.New("state writer is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Wallet == (common.Address{}) {
		return nil, errors.New("wallet address is required")
	}
	if cfg.Primary == (common.Address{}) || cfg.Secondary == (common.Address{}) {
		return nil, errors.New("primary and secondary token addresses are required")
	}
	if cfg.Primary == cfg.Secondary {
		return nil, errors.New("primary and secondary tokens must differ")
	}
	if cfg.Staking == (common.Address{}) {
		return nil, errors.New("staking address is required")
	}
	if cfg.Decimals <= 0 {
		cfg.Decimals = 18
	}
	if cfg.AnnounceThresholdUSD.IsZero() {
		cfg.AnnounceThresholdUSD = decimal.NewFromInt(DefaultAnnounceThresholdUSD)
	}

	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Run executes one cycle. Stage failures are recorded on the result; only a
// failure to persist the snapshot is returned as an error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.now()
	res := newResult(p.newID(), start.UTC(), p.cfg.DryRun)
	logger := p.logger.With(zap.String("run-id", res.RunID), zap.Bool("dry-run", p.cfg.DryRun))

	logger.Info("cycle-started",
		zap.String("wallet", p.cfg.Wallet.Hex()),
		zap.String("staking", p.cfg.Staking.Hex()))

	defer func() {
		mode := "live"
		if p.cfg.DryRun {
			mode = "dry-run"
		}
		CyclesTotal.WithLabelValues(mode).Inc()
		CycleDuration.Observe(time.Since(start).Seconds())
		LastCycleTimestamp.Set(float64(start.Unix()))
	}()

	canTransact := p.preflight(ctx, logger, res)

	var unavailable []string
	readOrNote := func(name string, fn func(context.Context) (*big.Int, error)) *big.Int {
		v, ok := p.read(ctx, logger, name, fn)
		if !ok {
			unavailable = append(unavailable, name)
		}
		return v
	}

	claimablePrimary := readOrNote("claimable-primary", func(ctx context.Context) (*big.Int, error) {
		return p.deps.Ledger.ClaimableRewards(ctx, p.cfg.Staking, p.cfg.Wallet, p.cfg.Primary)
	})
	claimableSecondary := readOrNote("claimable-secondary", func(ctx context.Context) (*big.Int, error) {
		return p.deps.Ledger.ClaimableRewards(ctx, p.cfg.Staking, p.cfg.Wallet, p.cfg.Secondary)
	})
	aprBps := readOrNote("apr", func(ctx context.Context) (*big.Int, error) {
		return p.deps.Ledger.APRBps(ctx, p.cfg.Staking)
	})
	res.APR, _ = new(big.Float).Quo(new(big.Float).SetInt(aprBps), big.NewFloat(100)).Float64()
	if len(unavailable) > 0 {
		// Unread values count as zero and the cycle continues.
		res.record(StageRead, StatusFailed, ReasonUnavailable+": "+strings.Join(unavailable, ","))
	} else {
		res.record(StageRead, StatusOK, "")
	}

	logger.Info("balances-read",
		zap.String("claimable-primary", p.format(claimablePrimary)),
		zap.String("claimable-secondary", p.format(claimableSecondary)),
		zap.Float64("apr", res.APR))

	p.claim(ctx, logger, res, canTransact, claimablePrimary, claimableSecondary)
	p.buyback(ctx, logger, res, canTransact)
	p.restake(ctx, logger, res, canTransact)
	p.value(ctx, logger, res)
	p.announce(ctx, logger, res)

	if err := p.persist(ctx, logger, res); err != nil {
		return res, err
	}

	logger.Info("cycle-finished",
		zap.String("claimed-primary", p.format(res.ClaimedPrimary)),
		zap.String("claimed-secondary", p.format(res.ClaimedSecondary)),
		zap.String("secondary-in", p.format(res.SecondaryIn)),
		zap.String("primary-out", p.format(res.PrimaryOut)),
		zap.String("staked", p.format(res.Staked)),
		zap.String("total-usd", res.TotalUSD.StringFixed(4)),
		zap.Bool("tweeted", res.Tweeted),
		zap.Duration("took", time.Since(start)))

	return res, nil
}

// preflight reports whether the wallet holds enough native balance for gas.
// An unreadable balance does not block transactions.
func (p *Pipeline) preflight(ctx context.Context, logger *zap.Logger, res *Result) bool {
	if p.cfg.MinGasBalance == nil || p.cfg.MinGasBalance.Sign() <= 0 {
		res.record(StagePreflight, StatusSkipped, "disabled")
		return true
	}

	native, err := p.deps.Ledger.NativeBalance(ctx, p.cfg.Wallet)
	if err != nil || native == nil {
		ReadFailuresTotal.WithLabelValues("native").Inc()
		logger.Warn("gas-balance-unavailable", zap.Error(err))
		res.record(StagePreflight, StatusSkipped, "native-balance-unavailable")
		return true
	}

	if native.Cmp(p.cfg.MinGasBalance) < 0 {
		logger.Warn("insufficient-gas-balance",
			zap.String("native", units.Format(native, 18)),
			zap.String("min", units.Format(p.cfg.MinGasBalance, 18)))
		res.record(StagePreflight, StatusFailed, ReasonInsufficientGas)
		return false
	}

	res.record(StagePreflight, StatusOK, "")
	return true
}

// claim claims every tracked reward token when any is claimable and measures
// what arrived by balance difference.
func (p *Pipeline) claim(
	ctx context.Context,
	logger *zap.Logger,
	res *Result,
	canTransact bool,
	claimablePrimary, claimableSecondary *big.Int,
) {
	if claimablePrimary.Sign() <= 0 && claimableSecondary.Sign() <= 0 {
		res.record(StageClaim, StatusSkipped, "nothing-claimable")
		return
	}
	if p.cfg.DryRun {
		res.Plan.ClaimPrimary = claimablePrimary
		res.Plan.ClaimSecondary = claimableSecondary
		logger.Info("would-claim",
			zap.String("primary", p.format(claimablePrimary)),
			zap.String("secondary", p.format(claimableSecondary)))
		res.record(StageClaim, StatusSkipped, ReasonDryRun)
		return
	}
	if !canTransact {
		res.record(StageClaim, StatusSkipped, ReasonInsufficientGas)
		return
	}

	primaryBefore, primaryOK := p.balance(ctx, logger, p.cfg.Primary, "primary-before-claim")
	secondaryBefore, secondaryOK := p.balance(ctx, logger, p.cfg.Secondary, "secondary-before-claim")

	tokens := []common.Address{p.cfg.Primary, p.cfg.Secondary}
	receipt, err := p.deps.Staker.ClaimRewards(ctx, p.cfg.Staking, tokens, p.cfg.Wallet)
	if err != nil {
		logger.Error("claim-failed", zap.Error(err))
		res.record(StageClaim, StatusFailed, err.Error())
		return
	}

	primaryAfter, primaryAfterOK := p.balance(ctx, logger, p.cfg.Primary, "primary-after-claim")
	secondaryAfter, secondaryAfterOK := p.balance(ctx, logger, p.cfg.Secondary, "secondary-after-claim")

	if primaryOK && primaryAfterOK {
		res.ClaimedPrimary = diff(primaryAfter, primaryBefore)
	}
	if secondaryOK && secondaryAfterOK {
		res.ClaimedSecondary = diff(secondaryAfter, secondaryBefore)
	}

	TokensMovedTotal.WithLabelValues("claimed-primary").Add(p.float(res.ClaimedPrimary))
	TokensMovedTotal.WithLabelValues("claimed-secondary").Add(p.float(res.ClaimedSecondary))

	logger.Info("rewards-claimed",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.String("primary", p.format(res.ClaimedPrimary)),
		zap.String("secondary", p.format(res.ClaimedSecondary)))
	res.record(StageClaim, StatusOK, "")
}

// buyback swaps the whole secondary balance into the primary token.
func (p *Pipeline) buyback(ctx context.Context, logger *zap.Logger, res *Result, canTransact bool) {
	secondaryBalance, ok := p.balance(ctx, logger, p.cfg.Secondary, "secondary")
	if !ok {
		res.record(StageSwap, StatusSkipped, ReasonBalanceUnavailable)
		return
	}
	if p.cfg.DryRun {
		// Rewards the claim would have moved into the wallet are swapped too.
		planned := new(big.Int).Add(secondaryBalance, res.Plan.ClaimSecondary)
		if planned.Sign() <= 0 {
			res.record(StageSwap, StatusSkipped, "no-secondary-balance")
			return
		}
		res.Plan.SwapIn = planned
		logger.Info("would-swap", zap.String("secondary-in", p.format(planned)))
		res.record(StageSwap, StatusSkipped, ReasonDryRun)
		return
	}
	if secondaryBalance.Sign() <= 0 {
		res.record(StageSwap, StatusSkipped, "no-secondary-balance")
		return
	}
	if !canTransact {
		res.record(StageSwap, StatusSkipped, ReasonInsufficientGas)
		return
	}

	// Committed to a buyback attempt: the amount is reported even if the swap fails.
	res.SecondaryIn = secondaryBalance

	key, err := p.deps.Pools.ResolvePool(ctx, p.cfg.Primary)
	if err != nil {
		logger.Warn("pool-unavailable", zap.Error(err))
		if errors.Is(err, swap.ErrPoolNotFound) {
			res.record(StageSwap, StatusSkipped, "pool-not-found")
		} else {
			res.record(StageSwap, StatusSkipped, "pool-unavailable: "+err.Error())
		}
		return
	}

	zeroForOne, err := key.ZeroForOne(p.cfg.Primary)
	if err != nil {
		logger.Error("swap-direction-failed", zap.Stringer("pool", key), zap.Error(err))
		res.record(StageSwap, StatusFailed, err.Error())
		return
	}
	if tokenIn, _ := key.Tokens(zeroForOne); tokenIn != p.cfg.Secondary {
		err = fmt.Errorf("pool %s does not pair %s", key, p.cfg.Secondary.Hex())
		logger.Error("swap-pool-mismatch", zap.Error(err))
		res.record(StageSwap, StatusFailed, err.Error())
		return
	}

	primaryBefore, beforeOK := p.balance(ctx, logger, p.cfg.Primary, "primary-before-swap")

	receipt, err := p.deps.Swapper.SwapExactIn(ctx, key, zeroForOne, secondaryBalance, new(big.Int))
	if err != nil {
		logger.Error("swap-failed", zap.Stringer("pool", key), zap.Error(err))
		res.record(StageSwap, StatusFailed, err.Error())
		return
	}

	primaryAfter, afterOK := p.balance(ctx, logger, p.cfg.Primary, "primary-after-swap")
	if beforeOK && afterOK {
		res.PrimaryOut = diff(primaryAfter, primaryBefore)
	}

	TokensMovedTotal.WithLabelValues("swapped-in").Add(p.float(res.SecondaryIn))
	TokensMovedTotal.WithLabelValues("bought-back").Add(p.float(res.PrimaryOut))

	logger.Info("buyback-complete",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Bool("zero-for-one", zeroForOne),
		zap.String("secondary-in", p.format(res.SecondaryIn)),
		zap.String("primary-out", p.format(res.PrimaryOut)))
	res.record(StageSwap, StatusOK, "")
}

// restake stakes the full primary balance, approving the staking contract first when needed.
func (p *Pipeline) restake(ctx context.Context, logger *zap.Logger, res *Result, canTransact bool) {
	balance, ok := p.balance(ctx, logger, p.cfg.Primary, "primary")
	if !ok {
		res.record(StageStake, StatusSkipped, ReasonBalanceUnavailable)
		return
	}
	if p.cfg.DryRun {
		// The planned stake adds claimable primary but not swap output, which
		// is unknown until the swap executes.
		planned := new(big.Int).Add(balance, res.Plan.ClaimPrimary)
		if planned.Sign() <= 0 {
			res.record(StageStake, StatusSkipped, "no-primary-balance")
			return
		}
		res.Plan.Stake = planned
		logger.Info("would-stake", zap.String("amount", p.format(planned)))
		res.record(StageStake, StatusSkipped, ReasonDryRun)
		return
	}
	if balance.Sign() <= 0 {
		res.record(StageStake, StatusSkipped, "no-primary-balance")
		return
	}
	if !canTransact {
		res.record(StageStake, StatusSkipped, ReasonInsufficientGas)
		return
	}

	allowance, _ := p.read(ctx, logger, "staking-allowance", func(ctx context.Context) (*big.Int, error) {
		return p.deps.Ledger.Allowance(ctx, p.cfg.Primary, p.cfg.Wallet, p.cfg.Staking)
	})
	if allowance.Cmp(balance) < 0 {
		receipt, err := p.deps.Staker.Approve(ctx, p.cfg.Primary, p.cfg.Staking, chain.MaxUint256())
		if err != nil {
			logger.Error("staking-approve-failed", zap.Error(err))
			res.record(StageStake, StatusFailed, "approve: "+err.Error())
			return
		}
		logger.Info("staking-approved", zap.String("tx", receipt.TxHash.Hex()))
	}

	receipt, err := p.deps.Staker.Stake(ctx, p.cfg.Staking, balance)
	if err != nil {
		logger.Error("stake-failed", zap.String("amount", p.format(balance)), zap.Error(err))
		res.record(StageStake, StatusFailed, err.Error())
		return
	}

	res.Staked = new(big.Int).Set(balance)
	TokensMovedTotal.WithLabelValues("staked").Add(p.float(res.Staked))

	logger.Info("restaked",
		zap.String("tx", receipt.TxHash.Hex()),
		zap.String("amount", p.format(res.Staked)))
	res.record(StageStake, StatusOK, "")
}

// value prices the cycle. The secondary token counts at face value.
func (p *Pipeline) value(ctx context.Context, logger *zap.Logger, res *Result) {
	price, err := p.deps.Prices.TokenPriceUSD(ctx, p.cfg.Primary)
	status, reason := StatusOK, ""
	if err != nil {
		logger.Warn("price-unavailable", zap.Error(err))
		price = decimal.Zero
		status, reason = StatusFailed, "price-unavailable"
	}
	res.PriceUSD = price

	primaryTotal := new(big.Int).Add(res.ClaimedPrimary, res.PrimaryOut)
	res.TotalUSD = p.tokens(primaryTotal).Mul(price).Add(p.tokens(res.SecondaryIn))

	total, _ := res.TotalUSD.Float64()
	LastCycleUSD.Set(total)

	logger.Info("cycle-valued",
		zap.String("price-usd", price.String()),
		zap.String("total-usd", res.TotalUSD.StringFixed(4)))
	res.record(StageValue, status, reason)
}

// announce publishes the summary when the cycle is worth it and something was staked.
func (p *Pipeline) announce(ctx context.Context, logger *zap.Logger, res *Result) {
	switch {
	case p.cfg.DryRun:
		res.record(StageAnnounce, StatusSkipped, ReasonDryRun)
		return
	case p.deps.Publisher == nil:
		res.record(StageAnnounce, StatusSkipped, "disabled")
		return
	case res.TotalUSD.LessThan(p.cfg.AnnounceThresholdUSD):
		res.record(StageAnnounce, StatusSkipped, "below-threshold")
		return
	case res.Staked.Sign() <= 0:
		res.record(StageAnnounce, StatusSkipped, "nothing-staked")
		return
	}

	text := announce.Compose(announce.Summary{
		PrimarySymbol:   p.cfg.PrimarySymbol,
		SecondarySymbol: p.cfg.SecondarySymbol,
		ClaimedPrimary:  p.tokens(res.ClaimedPrimary),
		SecondaryIn:     p.tokens(res.SecondaryIn),
		PrimaryOut:      p.tokens(res.PrimaryOut),
		Staked:          p.tokens(res.Staked),
		TotalUSD:        res.TotalUSD,
		APR:             res.APR,
	})

	postID, err := p.deps.Publisher.Publish(ctx, text)
	if err != nil {
		logger.Warn("announce-failed", zap.Error(err))
		res.record(StageAnnounce, StatusFailed, err.Error())
		return
	}

	res.Tweeted = true
	res.PostID = postID
	logger.Info("cycle-announced", zap.String("post-id", postID))
	res.record(StageAnnounce, StatusOK, "")
}

// persist overwrites the run-state file and, if configured, appends history.
func (p *Pipeline) persist(ctx context.Context, logger *zap.Logger, res *Result) error {
	if p.cfg.DryRun {
		res.record(StagePersist, StatusSkipped, ReasonDryRun)
		return nil
	}

	res.record(StagePersist, StatusOK, "")
	snap := res.Snapshot(p.cfg.Decimals)

	if err := p.deps.State.Save(ctx, snap); err != nil {
		res.Stages[len(res.Stages)-1] = StageOutcome{Stage: StagePersist, Status: StatusFailed, Reason: err.Error()}
		logger.Error("state-save-failed", zap.Error(err))
		return fmt.Errorf("save run state: %w", err)
	}

	if p.deps.History != nil {
		if err := p.deps.History.RecordCycle(ctx, snap); err != nil {
			logger.Warn("history-record-failed", zap.Error(err))
		}
	}

	return nil
}

// read runs a best-effort chain read; failures yield zero and false.
func (p *Pipeline) read(
	ctx context.Context,
	logger *zap.Logger,
	name string,
	fn func(context.Context) (*big.Int, error),
) (*big.Int, bool) {
	v, err := fn(ctx)
	if err != nil || v == nil {
		ReadFailuresTotal.WithLabelValues(name).Inc()
		logger.Warn("read-failed", zap.String("read", name), zap.Error(err))
		return new(big.Int), false
	}
	return v, true
}

// balance reads the wallet's token balance and whether the read succeeded.
func (p *Pipeline) balance(ctx context.Context, logger *zap.Logger, token common.Address, name string) (*big.Int, bool) {
	v, err := p.deps.Ledger.BalanceOf(ctx, token, p.cfg.Wallet)
	if err != nil || v == nil {
		ReadFailuresTotal.WithLabelValues(name).Inc()
		logger.Warn("read-failed", zap.String("read", name), zap.Error(err))
		return new(big.Int), false
	}
	return v, true
}

func (p *Pipeline) tokens(amount *big.Int) decimal.Decimal {
	return units.ToDecimal(amount, p.cfg.Decimals)
}

func (p *Pipeline) format(amount *big.Int) string {
	return units.Format(amount, p.cfg.Decimals)
}

func (p *Pipeline) float(amount *big.Int) float64 {
	f, _ := p.tokens(amount).Float64()
	return f
}

// diff returns after-before, floored at zero.
func diff(after, before *big.Int) *big.Int {
	d := new(big.Int).Sub(after, before)
	if d.Sign() < 0 {
		return new(big.Int)
	}
	return d
}
