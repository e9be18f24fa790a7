package cycle

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/moltbot/molt-treasury/internal/runstate"
	"github.com/moltbot/molt-treasury/internal/swap"
)

var (
	walletAddr    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	primaryAddr   = common.HexToAddress("0x8ecE0a50a025A7E13398212a5BEd2ded11959949")
	secondaryAddr = common.HexToAddress("0x8d0D000Ee44948FC98c9B98A4FA4921476f08B0d")
	stakingAddr   = common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")

	errBoom = errors.New("boom")
)

// wei converts whole tokens to 18-decimal smallest units.
func wei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// weiOf parses a decimal token amount into 18-decimal smallest units.
func weiOf(s string) *big.Int {
	return decimal.RequireFromString(s).Shift(18).BigInt()
}

// fakeChain is an in-memory wallet, staking contract and pool.
type fakeChain struct {
	mu sync.Mutex

	balances  map[common.Address]*big.Int
	claimable map[common.Address]*big.Int
	native    *big.Int
	allowance *big.Int
	aprBps    *big.Int
	staked    *big.Int

	// swapOut is credited in the primary token per swap.
	swapOut *big.Int

	claimErr   error
	swapErr    error
	approveErr error
	stakeErr   error
	readErr    error
	nativeErr  error

	claims    int
	swaps     int
	approvals int
	stakes    int
	lastSwap  struct {
		key        swap.PoolKey
		zeroForOne bool
		amountIn   *big.Int
		minOut     *big.Int
	}
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:  map[common.Address]*big.Int{},
		claimable: map[common.Address]*big.Int{},
		native:    wei(1),
		allowance: new(big.Int),
		aprBps:    big.NewInt(4250),
		staked:    new(big.Int),
		swapOut:   new(big.Int),
	}
}

func (f *fakeChain) get(m map[common.Address]*big.Int, token common.Address) *big.Int {
	if v, ok := m[token]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (f *fakeChain) add(m map[common.Address]*big.Int, token common.Address, amount *big.Int) {
	m[token] = new(big.Int).Add(f.get(m, token), amount)
}

func (f *fakeChain) receipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: common.BigToHash(big.NewInt(int64(f.claims + f.swaps + f.approvals + f.stakes)))}
}

func (f *fakeChain) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	if owner != walletAddr {
		return new(big.Int), nil
	}
	return f.get(f.balances, token), nil
}

func (f *fakeChain) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nativeErr != nil {
		return nil, f.nativeErr
	}
	return new(big.Int).Set(f.native), nil
}

func (f *fakeChain) ClaimableRewards(_ context.Context, _, _, token common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.get(f.claimable, token), nil
}

func (f *fakeChain) APRBps(_ context.Context, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return new(big.Int).Set(f.aprBps), nil
}

func (f *fakeChain) ClaimRewards(_ context.Context, _ common.Address, tokens []common.Address, _ common.Address) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	for _, token := range tokens {
		f.add(f.balances, token, f.get(f.claimable, token))
		f.claimable[token] = new(big.Int)
	}
	return f.receipt(), nil
}

func (f *fakeChain) Approve(_ context.Context, _, _ common.Address, amount *big.Int) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals++
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.allowance = new(big.Int).Set(amount)
	return f.receipt(), nil
}

func (f *fakeChain) Stake(_ context.Context, _ common.Address, amount *big.Int) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stakes++
	if f.stakeErr != nil {
		return nil, f.stakeErr
	}
	if f.allowance.Cmp(amount) < 0 {
		return nil, errors.New("insufficient allowance")
	}
	bal := f.get(f.balances, primaryAddr)
	if bal.Cmp(amount) < 0 {
		return nil, errors.New("insufficient balance")
	}
	f.balances[primaryAddr] = bal.Sub(bal, amount)
	f.staked.Add(f.staked, amount)
	return f.receipt(), nil
}

func (f *fakeChain) SwapExactIn(
	_ context.Context,
	key swap.PoolKey,
	zeroForOne bool,
	amountIn, amountOutMin *big.Int,
) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swaps++
	f.lastSwap.key = key
	f.lastSwap.zeroForOne = zeroForOne
	f.lastSwap.amountIn = amountIn
	f.lastSwap.minOut = amountOutMin
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	tokenIn, tokenOut := key.Tokens(zeroForOne)
	f.balances[tokenIn] = new(big.Int).Sub(f.get(f.balances, tokenIn), amountIn)
	f.add(f.balances, tokenOut, f.swapOut)
	return f.receipt(), nil
}

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f *fakePrices) TokenPriceUSD(context.Context, common.Address) (decimal.Decimal, error) {
	return f.price, f.err
}

type fakePublisher struct {
	posts []string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, text string) (string, error) {
	f.posts = append(f.posts, text)
	if f.err != nil {
		return "", f.err
	}
	return "post-1", nil
}

type fakeState struct {
	saved []*runstate.Snapshot
	err   error
}

func (f *fakeState) Save(_ context.Context, snap *runstate.Snapshot) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, snap)
	return nil
}

func (f *fakeState) last() *runstate.Snapshot {
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

type fakeHistory struct {
	recorded []*runstate.Snapshot
	err      error
}

func (f *fakeHistory) RecordCycle(_ context.Context, snap *runstate.Snapshot) error {
	f.recorded = append(f.recorded, snap)
	return f.err
}

type failingResolver struct{ err error }

func (f failingResolver) ResolvePool(context.Context, common.Address) (swap.PoolKey, error) {
	return swap.PoolKey{}, f.err
}
