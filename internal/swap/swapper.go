package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/chain"
)

const defaultDeadline = 20 * time.Minute

// ChainReader is the read surface the swapper needs.
type ChainReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error)
}

// Sender submits transactions from the treasury wallet.
type Sender interface {
	From() common.Address
	Send(ctx context.Context, label string, to common.Address, data []byte) (*types.Receipt, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error)
}

// Config holds swapper configuration.
type Config struct {
	Router   common.Address
	Permit2  common.Address
	Deadline time.Duration
}

// Swapper executes single-pool exact-input swaps through the Universal Router.
type Swapper struct {
	reader ChainReader
	sender Sender
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewSwapper creates a Swapper.
func NewSwapper(reader ChainReader, sender Sender, cfg Config, logger *zap.Logger) (*Swapper, error) {
	if reader == nil || sender == nil {
		return nil, errors.New("reader and sender are required")
	}

	if cfg.Router == (common.Address{}) || cfg.Permit2 == (common.Address{}) {
		return nil, errors.New("router and permit2 addresses are required")
	}

	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Swapper{
		reader: reader,
		sender: sender,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

func maxUint(bits uint) *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))
}

// SwapExactIn swaps amountIn of the pool's input side for at least amountOutMin.
func (s *Swapper) SwapExactIn(
	ctx context.Context,
	key PoolKey,
	zeroForOne bool,
	amountIn, amountOutMin *big.Int,
) (receipt *types.Receipt, err error) {
	tokenIn, tokenOut := key.Tokens(zeroForOne)
	if tokenIn == (common.Address{}) {
		return nil, errors.New("native currency input is not supported")
	}

	err = s.ensurePermit2(ctx, tokenIn, amountIn)
	if err != nil {
		return nil, fmt.Errorf("permit2 allowance: %w", err)
	}

	deadline := big.NewInt(s.now().Add(s.cfg.Deadline).Unix())

	data, err := EncodeExecute(&SwapRequest{
		Key:          key,
		ZeroForOne:   zeroForOne,
		AmountIn:     amountIn,
		AmountOutMin: amountOutMin,
		Deadline:     deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("encode swap: %w", err)
	}

	s.logger.Info("swap-submitting",
		zap.String("pool", key.String()),
		zap.String("token-in", tokenIn.Hex()),
		zap.String("token-out", tokenOut.Hex()),
		zap.Bool("zero-for-one", zeroForOne),
		zap.String("amount-in", amountIn.String()))

	return s.sender.Send(ctx, "swap", s.cfg.Router, data)
}

// ensurePermit2 tops up the ERC-20 allowance to Permit2 and the Permit2
// allowance to the router when either cannot cover amount.
func (s *Swapper) ensurePermit2(ctx context.Context, token common.Address, amount *big.Int) (err error) {
	owner := s.sender.From()

	erc20Allowance, err := s.reader.Allowance(ctx, token, owner, s.cfg.Permit2)
	if err != nil {
		return fmt.Errorf("read token allowance: %w", err)
	}

	if erc20Allowance.Cmp(amount) < 0 {
		s.logger.Info("permit2-token-approval",
			zap.String("token", token.Hex()),
			zap.String("current", erc20Allowance.String()))

		_, err = s.sender.Approve(ctx, token, s.cfg.Permit2, chain.MaxUint256())
		if err != nil {
			return fmt.Errorf("approve permit2: %w", err)
		}
	}

	out, err := s.reader.Call(ctx, Permit2ABI, s.cfg.Permit2, "allowance", owner, token, s.cfg.Router)
	if err != nil {
		return fmt.Errorf("read permit2 allowance: %w", err)
	}

	if len(out) < 2 {
		return errors.New("read permit2 allowance: short result")
	}

	permitAmount, ok1 := out[0].(*big.Int)
	expiration, ok2 := out[1].(*big.Int)
	if !ok1 || !ok2 {
		return errors.New("read permit2 allowance: unexpected result types")
	}

	if permitAmount.Cmp(amount) >= 0 && expiration.Int64() > s.now().Unix() {
		return nil
	}

	s.logger.Info("permit2-router-approval",
		zap.String("token", token.Hex()),
		zap.String("current", permitAmount.String()),
		zap.Int64("expiration", expiration.Int64()))

	data, err := Permit2ABI.Pack("approve", token, s.cfg.Router, maxUint(160), maxUint(48))
	if err != nil {
		return fmt.Errorf("pack permit2 approve: %w", err)
	}

	_, err = s.sender.Send(ctx, "permit2-approve", s.cfg.Permit2, data)
	if err != nil {
		return fmt.Errorf("permit2 approve router: %w", err)
	}

	return nil
}
