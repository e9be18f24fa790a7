package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/pkg/cache"
)

// Reader performs read-only contract calls against the latest block.
type Reader struct {
	backend Backend
	cache   cache.Cache
	logger  *zap.Logger
}

// NewReader creates a Reader. The cache may be nil, in which case token
// metadata is fetched on every call.
func NewReader(backend Backend, metadata cache.Cache, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		backend: backend,
		cache:   metadata,
		logger:  logger,
	}
}

// Call packs, executes and unpacks a view method of any ABI.
func (r *Reader) Call(
	ctx context.Context,
	parsed abi.ABI,
	to common.Address,
	method string,
	args ...interface{},
) (out []interface{}, err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		RPCCallsTotal.WithLabelValues(method, status).Inc()
	}()

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err = parsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}

	return out, nil
}

func (r *Reader) callUint(
	ctx context.Context,
	parsed abi.ABI,
	to common.Address,
	method string,
	args ...interface{},
) (*big.Int, error) {
	out, err := r.Call(ctx, parsed, to, method, args...)
	if err != nil {
		return nil, err
	}

	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}

	return value, nil
}

// BalanceOf returns the ERC-20 balance of owner.
func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return r.callUint(ctx, ERC20ABI, token, "balanceOf", owner)
}

// Allowance returns the ERC-20 allowance owner has granted spender.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return r.callUint(ctx, ERC20ABI, token, "allowance", owner, spender)
}

// NativeBalance returns the account's BNB balance in wei.
func (r *Reader) NativeBalance(ctx context.Context, account common.Address) (balance *big.Int, err error) {
	balance, err = r.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		RPCCallsTotal.WithLabelValues("eth_getBalance", "error").Inc()
		return nil, fmt.Errorf("get native balance: %w", err)
	}
	RPCCallsTotal.WithLabelValues("eth_getBalance", "ok").Inc()
	return balance, nil
}

// ClaimableRewards returns the unclaimed reward of token accrued to account.
func (r *Reader) ClaimableRewards(ctx context.Context, staking, account, token common.Address) (*big.Int, error) {
	return r.callUint(ctx, StakingABI, staking, "claimableRewards", account, token)
}

// APRBps returns the staking APR in basis points.
func (r *Reader) APRBps(ctx context.Context, staking common.Address) (*big.Int, error) {
	return r.callUint(ctx, StakingABI, staking, "aprBps")
}

// TotalStaked returns the total amount staked across all accounts.
func (r *Reader) TotalStaked(ctx context.Context, staking common.Address) (*big.Int, error) {
	return r.callUint(ctx, StakingABI, staking, "totalStaked")
}

// StakedBalance returns the amount account has staked.
func (r *Reader) StakedBalance(ctx context.Context, staking, account common.Address) (*big.Int, error) {
	return r.callUint(ctx, StakingABI, staking, "stakedBalanceOf", account)
}

func metadataKey(kind string, token common.Address) string {
	return kind + ":" + strings.ToLower(token.Hex())
}

// Decimals returns the token's decimals. Results are cached indefinitely.
func (r *Reader) Decimals(ctx context.Context, token common.Address) (decimals uint8, err error) {
	key := metadataKey("decimals", token)
	if r.cache != nil {
		if v, found := r.cache.Get(key); found {
			if d, ok := v.(uint8); ok {
				return d, nil
			}
		}
	}

	out, err := r.Call(ctx, ERC20ABI, token, "decimals")
	if err != nil {
		return 0, err
	}

	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected result type %T", out[0])
	}

	if r.cache != nil {
		r.cache.Set(key, decimals, 0)
	}

	return decimals, nil
}

// Symbol returns the token's symbol. Results are cached indefinitely.
func (r *Reader) Symbol(ctx context.Context, token common.Address) (symbol string, err error) {
	key := metadataKey("symbol", token)
	if r.cache != nil {
		if v, found := r.cache.Get(key); found {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
	}

	out, err := r.Call(ctx, ERC20ABI, token, "symbol")
	if err != nil {
		return "", err
	}

	symbol, ok := out[0].(string)
	if !ok {
		return "", errors.New("symbol: unexpected result type")
	}

	if r.cache != nil {
		r.cache.Set(key, symbol, 0)
	}

	return symbol, nil
}
