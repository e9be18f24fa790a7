package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/testutil"
	"github.com/moltbot/molt-treasury/pkg/cache"
)

var (
	moltAddr    = common.HexToAddress("0x8ECa9C65055b42f77fab74cF8265c831585AFB07")
	usd1Addr    = common.HexToAddress("0x8d0D000Ee44948FC98c9B98A4FA4921476f08B0d")
	stakingAddr = common.HexToAddress("0x10cf2944b727841730b4d4680b74d7cb6967035e")
	ownerAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newLedgerBackend() *testutil.FakeBackend {
	backend := testutil.NewFakeBackend()

	balances := map[common.Address]*big.Int{
		moltAddr: units(1200),
		usd1Addr: units(42),
	}

	backend.Handle(ERC20ABI.Methods["balanceOf"], func(to common.Address, _ []interface{}) ([]interface{}, error) {
		return []interface{}{balances[to]}, nil
	})
	backend.Handle(ERC20ABI.Methods["allowance"], func(_ common.Address, args []interface{}) ([]interface{}, error) {
		if args[1].(common.Address) == stakingAddr {
			return []interface{}{units(5)}, nil
		}
		return []interface{}{new(big.Int)}, nil
	})
	backend.Handle(StakingABI.Methods["claimableRewards"], func(_ common.Address, args []interface{}) ([]interface{}, error) {
		if args[1].(common.Address) == moltAddr {
			return []interface{}{units(3)}, nil
		}
		return []interface{}{units(7)}, nil
	})
	backend.Handle(StakingABI.Methods["aprBps"], func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(1250)}, nil
	})
	backend.Handle(StakingABI.Methods["totalStaked"], func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{units(1_000_000)}, nil
	})
	backend.Handle(StakingABI.Methods["stakedBalanceOf"], func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{units(50_000)}, nil
	})
	backend.SetNative(ownerAddr, big.NewInt(5e16))

	return backend
}

func TestReader_Reads(t *testing.T) {
	ctx := context.Background()
	reader := NewReader(newLedgerBackend(), nil, zap.NewNop())

	tests := []struct {
		name string
		read func() (*big.Int, error)
		want *big.Int
	}{
		{"balance_molt", func() (*big.Int, error) { return reader.BalanceOf(ctx, moltAddr, ownerAddr) }, units(1200)},
		{"balance_usd1", func() (*big.Int, error) { return reader.BalanceOf(ctx, usd1Addr, ownerAddr) }, units(42)},
		{"allowance_staking", func() (*big.Int, error) { return reader.Allowance(ctx, moltAddr, ownerAddr, stakingAddr) }, units(5)},
		{"allowance_other", func() (*big.Int, error) { return reader.Allowance(ctx, moltAddr, ownerAddr, usd1Addr) }, big.NewInt(0)},
		{"claimable_molt", func() (*big.Int, error) { return reader.ClaimableRewards(ctx, stakingAddr, ownerAddr, moltAddr) }, units(3)},
		{"claimable_usd1", func() (*big.Int, error) { return reader.ClaimableRewards(ctx, stakingAddr, ownerAddr, usd1Addr) }, units(7)},
		{"apr", func() (*big.Int, error) { return reader.APRBps(ctx, stakingAddr) }, big.NewInt(1250)},
		{"total_staked", func() (*big.Int, error) { return reader.TotalStaked(ctx, stakingAddr) }, units(1_000_000)},
		{"staked", func() (*big.Int, error) { return reader.StakedBalance(ctx, stakingAddr, ownerAddr) }, units(50_000)},
		{"native", func() (*big.Int, error) { return reader.NativeBalance(ctx, ownerAddr) }, big.NewInt(5e16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.read()
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestReader_CallError(t *testing.T) {
	backend := newLedgerBackend()
	backend.CallErr = testutil.ErrRPC
	reader := NewReader(backend, nil, zap.NewNop())

	_, err := reader.BalanceOf(context.Background(), moltAddr, ownerAddr)
	assert.True(t, errors.Is(err, testutil.ErrRPC))

	_, err = reader.NativeBalance(context.Background(), ownerAddr)
	assert.True(t, errors.Is(err, testutil.ErrRPC))
}

func TestReader_UnknownMethodFails(t *testing.T) {
	reader := NewReader(testutil.NewFakeBackend(), nil, zap.NewNop())

	_, err := reader.APRBps(context.Background(), stakingAddr)
	assert.Error(t, err)
}

func TestReader_MetadataIsCached(t *testing.T) {
	backend := testutil.NewFakeBackend()

	var decimalsCalls, symbolCalls atomic.Int32
	backend.Handle(ERC20ABI.Methods["decimals"], func(common.Address, []interface{}) ([]interface{}, error) {
		decimalsCalls.Add(1)
		return []interface{}{uint8(18)}, nil
	})
	backend.Handle(ERC20ABI.Methods["symbol"], func(common.Address, []interface{}) ([]interface{}, error) {
		symbolCalls.Add(1)
		return []interface{}{"MOLT"}, nil
	})

	metadata, err := cache.NewRistrettoCache(cache.DefaultMetadataConfig(zap.NewNop()))
	require.NoError(t, err)
	defer metadata.Close()

	reader := NewReader(backend, metadata, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decimals, err := reader.Decimals(ctx, moltAddr)
		require.NoError(t, err)
		assert.Equal(t, uint8(18), decimals)

		symbol, err := reader.Symbol(ctx, moltAddr)
		require.NoError(t, err)
		assert.Equal(t, "MOLT", symbol)
	}

	assert.Equal(t, int32(1), decimalsCalls.Load())
	assert.Equal(t, int32(1), symbolCalls.Load())
}

func TestBalanceSheet_GetBalances(t *testing.T) {
	sheet := &BalanceSheet{
		Reader:    NewReader(newLedgerBackend(), nil, zap.NewNop()),
		Primary:   moltAddr,
		Secondary: usd1Addr,
		Staking:   stakingAddr,
		Decimals:  18,
	}

	balances, err := sheet.GetBalances(context.Background(), ownerAddr)
	require.NoError(t, err)

	assert.Equal(t, 0, balances.Native.Cmp(big.NewInt(5e16)))
	assert.Equal(t, 0, balances.Primary.Cmp(units(1200)))
	assert.Equal(t, 0, balances.Secondary.Cmp(units(42)))
	assert.Equal(t, 0, balances.Staked.Cmp(units(50_000)))
	assert.Equal(t, 0, balances.ClaimablePrimary.Cmp(units(3)))
	assert.Equal(t, 0, balances.ClaimableSecondary.Cmp(units(7)))
	assert.Equal(t, 0, balances.APRBps.Cmp(big.NewInt(1250)))
	assert.Equal(t, 18, balances.Decimals)
}

func TestBalanceSheet_PartialFailure(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SetNative(ownerAddr, big.NewInt(7))

	sheet := &BalanceSheet{
		Reader:    NewReader(backend, nil, zap.NewNop()),
		Primary:   moltAddr,
		Secondary: usd1Addr,
		Staking:   stakingAddr,
		Decimals:  18,
	}

	balances, err := sheet.GetBalances(context.Background(), ownerAddr)
	require.Error(t, err)
	require.NotNil(t, balances)
	assert.Equal(t, 0, balances.Native.Cmp(big.NewInt(7)))
	assert.Equal(t, 0, balances.Primary.Sign())
}
