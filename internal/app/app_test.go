package app

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/announce"
	"github.com/moltbot/molt-treasury/internal/chain"
	"github.com/moltbot/molt-treasury/internal/history"
	"github.com/moltbot/molt-treasury/internal/runstate"
	"github.com/moltbot/molt-treasury/internal/swap"
	"github.com/moltbot/molt-treasury/pkg/config"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// emptyWalletRPC serves BSC mainnet, reports a zero BNB balance and fails
// every other call.
func emptyWalletRPC(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.ID) == 0 {
			req.ID = json.RawMessage("1")
		}

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_chainId":
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x38"}`, req.ID)
			return
		case "eth_getBalance":
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x0"}`, req.ID)
			return
		}
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":"unavailable"}}`, req.ID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// drainingWalletRPC starts the wallet at 1 BNB and drops its balance by
// 0.001 BNB on every balance read.
func drainingWalletRPC(t *testing.T) *httptest.Server {
	t.Helper()
	var reads atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.ID) == 0 {
			req.ID = json.RawMessage("1")
		}

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_chainId":
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x38"}`, req.ID)
		case "eth_getBalance":
			n := reads.Add(1) - 1
			wei := new(big.Int).Sub(big.NewInt(1e18), new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15)))
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%x"}`, req.ID, wei)
		default:
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":"unavailable"}}`, req.ID)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// unavailable answers every request with an error, like a node that is down.
func unavailable(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"unavailable"}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	rpc := emptyWalletRPC(t)
	idx := unavailable(t)

	return &config.Config{
		LogLevel:             "info",
		HTTPPort:             "0",
		RPCURL:               rpc.URL,
		ChainID:              56,
		TxTimeout:            time.Second,
		WalletPrivateKey:     testKey,
		PrimaryToken:         "0x8ECa9C65055b42f77fab74cF8265c831585AFB07",
		PrimarySymbol:        "MOLT",
		SecondaryToken:       "0x8d0D000Ee44948FC98c9B98A4FA4921476f08B0d",
		SecondarySymbol:      "USD1",
		TokenDecimals:        18,
		StakingContract:      "0x10cf2944b727841730b4d4680b74d7cb6967035e",
		UniversalRouter:      "0x1906c1d672b88cd1b9ac7593301ca990f94eae07",
		Permit2:              "0x000000000022D473030F116dDEE9F6B43aC78BA3",
		IndexerURL:           idx.URL,
		PoolFee:              config.DynamicFeeFlag,
		PoolTickSpacing:      200,
		AnnounceMode:         config.AnnounceOff,
		AnnounceThresholdUSD: 10,
		RunStatePath:         filepath.Join(t.TempDir(), "state.json"),
		HistoryMode:          config.HistoryOff,
		CycleSchedule:        "@every 1h",
		CycleTimeout:         time.Minute,
		WalletPollInterval:   time.Hour,
	}
}

func TestSetupResolver(t *testing.T) {
	cfg := testConfig(t)

	_, ok := SetupResolver(cfg, nil).(*swap.IndexerResolver)
	assert.True(t, ok, "expected indexer resolver without a static pool")

	cfg.PoolCurrency0 = cfg.SecondaryToken
	cfg.PoolCurrency1 = cfg.PrimaryToken
	cfg.PoolHooks = "0x0000000000000000000000000000000000000000"
	cfg.PoolFee = 3000
	cfg.PoolTickSpacing = 60

	static, ok := SetupResolver(cfg, nil).(*swap.StaticResolver)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(cfg.SecondaryToken), static.Key.Currency0)
	assert.Equal(t, uint32(3000), static.Key.Fee)
	assert.Equal(t, int32(60), static.Key.TickSpacing)
}

func TestSetupPublisher(t *testing.T) {
	cfg := testConfig(t)
	logger := zap.NewNop()

	pub, err := SetupPublisher(cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, pub)

	cfg.AnnounceMode = config.AnnounceConsole
	pub, err = SetupPublisher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &announce.ConsolePublisher{}, pub)

	cfg.AnnounceMode = config.AnnounceTwitter
	_, err = SetupPublisher(cfg, logger)
	assert.Error(t, err, "incomplete credentials")

	cfg.TwitterAPIURL = "http://127.0.0.1"
	cfg.TwitterConsumerKey, cfg.TwitterConsumerSecret = "ck", "cs"
	cfg.TwitterAccessToken, cfg.TwitterAccessSecret = "at", "as"
	pub, err = SetupPublisher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &announce.TwitterPublisher{}, pub)
}

func TestSetupHistory(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	sink, err := SetupHistory(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, sink)

	cfg.HistoryMode = config.HistoryConsole
	sink, err = SetupHistory(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &history.ConsoleSink{}, sink)
}

func TestSetupChain_MissingWallet(t *testing.T) {
	cfg := testConfig(t)
	cfg.WalletPrivateKey = ""
	cfg.WalletFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := SetupChain(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(context.Background(), testConfig(t), zap.NewNop(), &Options{Schedule: "every tuesday"})
	assert.Error(t, err)
}

func TestSetupChain_UnreachableNodeIsFatal(t *testing.T) {
	cfg := testConfig(t)
	down := httptest.NewServer(http.NotFoundHandler())
	cfg.RPCURL = down.URL
	down.Close()

	previous := []byte(`{"runId":"previous-good","restaked":"500"}`)
	require.NoError(t, os.WriteFile(cfg.RunStatePath, previous, 0o600))

	_, err := SetupChain(context.Background(), cfg, zap.NewNop())
	require.ErrorIs(t, err, chain.ErrUnreachable)

	_, err = New(context.Background(), cfg, zap.NewNop(), nil)
	require.ErrorIs(t, err, chain.ErrUnreachable)

	data, err := os.ReadFile(cfg.RunStatePath)
	require.NoError(t, err)
	assert.Equal(t, previous, data)
}

func TestSetupChain_WrongChainIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChainID = 97

	_, err := SetupChain(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, chain.ErrChainMismatch)
}

func TestRunCycle_FailingReadsPersistZeros(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer a.Shutdown()

	require.NoError(t, a.runCycle(context.Background()))

	snap, err := runstate.NewFileStore(cfg.RunStatePath, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", snap.Claimed.Primary)
	assert.Equal(t, "0", snap.Restaked)
	assert.Equal(t, "0.0000", snap.TotalUSDValue)
	assert.False(t, snap.Tweeted)
	assert.NotEmpty(t, snap.RunID)
}

func TestRunCycle_DryRunDoesNotPersist(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(context.Background(), cfg, zap.NewNop(), &Options{DryRun: true})
	require.NoError(t, err)
	defer a.Shutdown()

	require.NoError(t, a.runCycle(context.Background()))

	_, err = os.Stat(cfg.RunStatePath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunCycle_OpenGasBreakerSkips(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinGasBalance = 0.01
	cfg.GasBreakerInterval = time.Hour
	cfg.GasBreakerMultiplier = 3
	cfg.GasBreakerHysteresis = 1.5

	a, err := New(context.Background(), cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer a.Shutdown()
	require.NotNil(t, a.breaker)

	require.NoError(t, a.breaker.CheckBalance(context.Background()))
	require.False(t, a.breaker.IsEnabled())

	require.NoError(t, a.runCycle(context.Background()))

	_, err = os.Stat(cfg.RunStatePath)
	assert.True(t, os.IsNotExist(err), "skipped cycle must not write state")
}

func TestRunCycle_RecordsGasSpentDuringCycle(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPCURL = drainingWalletRPC(t).URL
	cfg.MinGasBalance = 0.0005
	cfg.GasBreakerInterval = time.Hour
	cfg.GasBreakerMultiplier = 3
	cfg.GasBreakerHysteresis = 1.5

	a, err := New(context.Background(), cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer a.Shutdown()
	require.NotNil(t, a.breaker)

	require.NoError(t, a.runCycle(context.Background()))

	// The first read of the cycle saw 1 BNB.
	status := a.breaker.Status()
	assert.Equal(t, 1, status.RecentCycles)
	assert.Greater(t, status.AvgSpend, 0.0)
	assert.InDelta(t, 1.0-status.LastBalance, status.AvgSpend, 1e-9)
	assert.True(t, status.Enabled)
}

func TestNew_GasBreakerDisabledWithoutMinimum(t *testing.T) {
	cfg := testConfig(t)
	cfg.GasBreakerInterval = time.Hour

	a, err := New(context.Background(), cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer a.Shutdown()

	assert.Nil(t, a.breaker)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
