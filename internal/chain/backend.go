// Package chain wraps the JSON-RPC surface used by the treasury: token and
// staking reads, and signed transaction submission with receipt waiting.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const endpointCheckTimeout = 10 * time.Second

// Backend is the subset of *ethclient.Client the treasury relies on.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (client *ethclient.Client, err error) {
	client, err = ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	return client, nil
}

// CheckEndpoint confirms the node answers and, when expected is non-zero,
// that it serves that chain. Dialing an HTTP endpoint never contacts the node.
func CheckEndpoint(ctx context.Context, backend Backend, expected int64) error {
	ctx, cancel := context.WithTimeout(ctx, endpointCheckTimeout)
	defer cancel()

	id, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if expected != 0 && id.Cmp(big.NewInt(expected)) != 0 {
		return fmt.Errorf("%w: node serves %s, configured %d", ErrChainMismatch, id, expected)
	}
	return nil
}

// MaxUint256 returns 2^256-1, the conventional unlimited allowance.
func MaxUint256() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}
