package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const (
	// fallbackGasLimit is used when estimation fails, matching what a
	// staking or router call needs with headroom.
	fallbackGasLimit = uint64(500_000)

	defaultTxTimeout = 2 * time.Minute
)

// Signer signs transactions on behalf of a single account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// TransactorConfig holds transactor configuration.
type TransactorConfig struct {
	ChainID int64         // 0 queries the backend
	Timeout time.Duration // receipt wait budget per transaction
}

// Transactor builds, signs, sends and confirms transactions one at a time.
type Transactor struct {
	backend Backend
	signer  Signer
	chainID *big.Int
	timeout time.Duration
	logger  *zap.Logger

	mu sync.Mutex // serializes nonce allocation through receipt
}

// NewTransactor creates a Transactor.
func NewTransactor(
	ctx context.Context,
	backend Backend,
	signer Signer,
	cfg TransactorConfig,
	logger *zap.Logger,
) (t *Transactor, err error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}

	if signer == nil {
		return nil, errors.New("signer cannot be nil")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("get chain id: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}

	return &Transactor{
		backend: backend,
		signer:  signer,
		chainID: chainID,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// From returns the sending account.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// Send submits a call to `to` with the given calldata and waits for its receipt.
// A mined-but-failed transaction returns the receipt together with ErrReverted.
func (t *Transactor) Send(
	ctx context.Context,
	label string,
	to common.Address,
	data []byte,
) (receipt *types.Receipt, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		TxSentTotal.WithLabelValues(label, status).Inc()
	}()

	from := t.signer.Address()

	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, estimateErr := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     data,
	})
	if estimateErr != nil {
		t.logger.Warn("gas-estimate-failed",
			zap.String("label", label),
			zap.Uint64("fallback-gas", fallbackGasLimit),
			zap.Error(estimateErr))
		gasLimit = fallbackGasLimit
	} else {
		gasLimit = gasLimit * 12 / 10
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := t.signer.SignTx(tx, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	err = t.backend.SendTransaction(ctx, signedTx)
	if err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	sentAt := time.Now()
	t.logger.Info("tx-sent",
		zap.String("label", label),
		zap.String("tx-hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas-limit", gasLimit))

	waitCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	receipt, err = bind.WaitMined(waitCtx, t.backend, signedTx)
	if err != nil {
		return nil, fmt.Errorf("wait for tx %s: %w", signedTx.Hash().Hex(), err)
	}

	TxConfirmDuration.WithLabelValues(label).Observe(time.Since(sentAt).Seconds())
	TxGasUsed.WithLabelValues(label).Observe(float64(receipt.GasUsed))

	if receipt.Status != types.ReceiptStatusSuccessful {
		t.logger.Warn("tx-reverted",
			zap.String("label", label),
			zap.String("tx-hash", receipt.TxHash.Hex()))
		return receipt, fmt.Errorf("%s %s: %w", label, receipt.TxHash.Hex(), ErrReverted)
	}

	t.logger.Info("tx-confirmed",
		zap.String("label", label),
		zap.String("tx-hash", receipt.TxHash.Hex()),
		zap.Uint64("gas-used", receipt.GasUsed))

	return receipt, nil
}

// Approve grants spender an ERC-20 allowance of amount.
func (t *Transactor) Approve(
	ctx context.Context,
	token, spender common.Address,
	amount *big.Int,
) (*types.Receipt, error) {
	data, err := ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return t.Send(ctx, "approve", token, data)
}

// ClaimRewards claims every listed reward token from the staking contract to `to`.
func (t *Transactor) ClaimRewards(
	ctx context.Context,
	staking common.Address,
	tokens []common.Address,
	to common.Address,
) (*types.Receipt, error) {
	data, err := StakingABI.Pack("claimRewards", tokens, to)
	if err != nil {
		return nil, fmt.Errorf("pack claimRewards: %w", err)
	}
	return t.Send(ctx, "claim", staking, data)
}

// Stake stakes amount of the staking contract's underlying token.
func (t *Transactor) Stake(ctx context.Context, staking common.Address, amount *big.Int) (*types.Receipt, error) {
	data, err := StakingABI.Pack("stake", amount)
	if err != nil {
		return nil, fmt.Errorf("pack stake: %w", err)
	}
	return t.Send(ctx, "stake", staking, data)
}
