package swap

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/chain"
	"github.com/moltbot/molt-treasury/internal/testutil"
	"github.com/moltbot/molt-treasury/pkg/wallet"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	routerAddr  = common.HexToAddress("0x1906c1d672b88cd1b9ac7593301ca990f94eae07")
	permit2Addr = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
)

// permitLedger tracks the approvals a swap depends on.
type permitLedger struct {
	mu              sync.Mutex
	erc20ToPermit2  *big.Int
	permit2Amount   *big.Int
	permit2Expiry   *big.Int
	labelsByAddress []common.Address
}

func newSwapHarness(t *testing.T, ledger *permitLedger) (*Swapper, *testutil.FakeBackend) {
	t.Helper()

	backend := testutil.NewFakeBackend()

	backend.Handle(chain.ERC20ABI.Methods["allowance"], func(common.Address, []interface{}) ([]interface{}, error) {
		ledger.mu.Lock()
		defer ledger.mu.Unlock()
		return []interface{}{new(big.Int).Set(ledger.erc20ToPermit2)}, nil
	})
	backend.Handle(Permit2ABI.Methods["allowance"], func(common.Address, []interface{}) ([]interface{}, error) {
		ledger.mu.Lock()
		defer ledger.mu.Unlock()
		return []interface{}{ledger.permit2Amount, ledger.permit2Expiry, big.NewInt(0)}, nil
	})

	backend.OnSend = func(tx *types.Transaction) uint64 {
		ledger.mu.Lock()
		defer ledger.mu.Unlock()

		ledger.labelsByAddress = append(ledger.labelsByAddress, *tx.To())

		if method, err := chain.ERC20ABI.MethodById(tx.Data()[:4]); err == nil && method.Name == "approve" {
			args, _ := method.Inputs.Unpack(tx.Data()[4:])
			ledger.erc20ToPermit2 = args[1].(*big.Int)
		}
		if *tx.To() == permit2Addr {
			args, _ := Permit2ABI.Methods["approve"].Inputs.Unpack(tx.Data()[4:])
			ledger.permit2Amount = args[2].(*big.Int)
			ledger.permit2Expiry = args[3].(*big.Int)
		}
		return types.ReceiptStatusSuccessful
	}

	id, err := wallet.FromHex(testKeyHex)
	require.NoError(t, err)

	transactor, err := chain.NewTransactor(context.Background(), backend, id, chain.TransactorConfig{}, zap.NewNop())
	require.NoError(t, err)

	swapper, err := NewSwapper(chain.NewReader(backend, nil, zap.NewNop()), transactor, Config{
		Router:  routerAddr,
		Permit2: permit2Addr,
	}, zap.NewNop())
	require.NoError(t, err)

	swapper.now = func() time.Time { return time.Unix(1_800_000_000, 0) }

	return swapper, backend
}

func TestSwapper_FirstSwapApprovesBoth(t *testing.T) {
	ledger := &permitLedger{
		erc20ToPermit2: big.NewInt(0),
		permit2Amount:  big.NewInt(0),
		permit2Expiry:  big.NewInt(0),
	}
	swapper, backend := newSwapHarness(t, ledger)

	amount := big.NewInt(500)
	_, err := swapper.SwapExactIn(context.Background(), testKey(), true, amount, big.NewInt(0))
	require.NoError(t, err)

	require.Equal(t, 3, backend.SentCount())
	assert.Equal(t, []common.Address{
		common.HexToAddress(usd1Hex), // erc20 approve
		permit2Addr,                  // permit2 approve
		routerAddr,                   // execute
	}, ledger.labelsByAddress)

	execute := backend.Sent[2]
	args, err := RouterABI.Methods["execute"].Inputs.Unpack(execute.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(1_800_000_000+int64(defaultDeadline.Seconds())), args[2].(*big.Int).Int64())
}

func TestSwapper_SkipsApprovalsWhenSufficient(t *testing.T) {
	ledger := &permitLedger{
		erc20ToPermit2: chain.MaxUint256(),
		permit2Amount:  maxUint(160),
		permit2Expiry:  maxUint(48),
	}
	swapper, backend := newSwapHarness(t, ledger)

	_, err := swapper.SwapExactIn(context.Background(), testKey(), true, big.NewInt(500), nil)
	require.NoError(t, err)

	require.Equal(t, 1, backend.SentCount())
	assert.Equal(t, routerAddr, *backend.Sent[0].To())
}

func TestSwapper_ExpiredPermitIsRenewed(t *testing.T) {
	ledger := &permitLedger{
		erc20ToPermit2: chain.MaxUint256(),
		permit2Amount:  maxUint(160),
		permit2Expiry:  big.NewInt(1_700_000_000),
	}
	swapper, backend := newSwapHarness(t, ledger)

	_, err := swapper.SwapExactIn(context.Background(), testKey(), true, big.NewInt(500), nil)
	require.NoError(t, err)

	require.Equal(t, 2, backend.SentCount())
	assert.Equal(t, permit2Addr, *backend.Sent[0].To())
}

func TestSwapper_NativeInputRejected(t *testing.T) {
	swapper, backend := newSwapHarness(t, &permitLedger{
		erc20ToPermit2: big.NewInt(0),
		permit2Amount:  big.NewInt(0),
		permit2Expiry:  big.NewInt(0),
	})

	key := testKey()
	key.Currency0 = common.Address{}

	_, err := swapper.SwapExactIn(context.Background(), key, true, big.NewInt(1), nil)
	assert.Error(t, err)
	assert.Equal(t, 0, backend.SentCount())
}

func TestNewSwapper_Validation(t *testing.T) {
	_, err := NewSwapper(nil, nil, Config{}, nil)
	assert.Error(t, err)
}
