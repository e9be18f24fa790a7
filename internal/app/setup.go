package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/announce"
	"github.com/moltbot/molt-treasury/internal/chain"
	"github.com/moltbot/molt-treasury/internal/circuitbreaker"
	"github.com/moltbot/molt-treasury/internal/cycle"
	"github.com/moltbot/molt-treasury/internal/history"
	"github.com/moltbot/molt-treasury/internal/indexer"
	"github.com/moltbot/molt-treasury/internal/runstate"
	"github.com/moltbot/molt-treasury/internal/scheduler"
	"github.com/moltbot/molt-treasury/internal/swap"
	"github.com/moltbot/molt-treasury/pkg/cache"
	"github.com/moltbot/molt-treasury/pkg/config"
	"github.com/moltbot/molt-treasury/pkg/healthprobe"
	"github.com/moltbot/molt-treasury/pkg/httpserver"
	"github.com/moltbot/molt-treasury/pkg/wallet"
)

// Chain holds the wallet-bound chain collaborators shared by every command.
type Chain struct {
	Identity   *wallet.Identity
	Client     *ethclient.Client
	Metadata   cache.Cache
	Reader     *chain.Reader
	Transactor *chain.Transactor
	Balances   *chain.BalanceSheet

	Primary   common.Address
	Secondary common.Address
	Staking   common.Address
}

// SetupChain loads the wallet, dials and checks the RPC endpoint, and builds the reader
// and transactor.
func SetupChain(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Chain, error) {
	identity, err := wallet.Load(cfg.WalletFile, cfg.WalletPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	if err = chain.CheckEndpoint(ctx, client, cfg.ChainID); err != nil {
		client.Close()
		return nil, err
	}

	metadata, err := cache.NewRistrettoCache(cache.DefaultMetadataConfig(logger))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	reader := chain.NewReader(client, metadata, logger)

	transactor, err := chain.NewTransactor(ctx, client, identity, chain.TransactorConfig{
		ChainID: cfg.ChainID,
		Timeout: cfg.TxTimeout,
	}, logger)
	if err != nil {
		metadata.Close()
		client.Close()
		return nil, fmt.Errorf("setup transactor: %w", err)
	}

	c := &Chain{
		Identity:   identity,
		Client:     client,
		Metadata:   metadata,
		Reader:     reader,
		Transactor: transactor,
		Primary:    common.HexToAddress(cfg.PrimaryToken),
		Secondary:  common.HexToAddress(cfg.SecondaryToken),
		Staking:    common.HexToAddress(cfg.StakingContract),
	}
	c.Balances = &chain.BalanceSheet{
		Reader:    reader,
		Primary:   c.Primary,
		Secondary: c.Secondary,
		Staking:   c.Staking,
		Decimals:  cfg.TokenDecimals,
	}

	logger.Info("chain-ready",
		zap.String("wallet", identity.Address().Hex()),
		zap.Int64("chain-id", cfg.ChainID))

	return c, nil
}

// CheckTokens compares on-chain token metadata with the configured decimals
// and symbols. Read failures and mismatches are logged, never fatal.
func (c *Chain) CheckTokens(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	tokens := []struct {
		name   string
		addr   common.Address
		symbol string
	}{
		{name: "primary", addr: c.Primary, symbol: cfg.PrimarySymbol},
		{name: "secondary", addr: c.Secondary, symbol: cfg.SecondarySymbol},
	}

	for _, t := range tokens {
		decimals, err := c.Reader.Decimals(ctx, t.addr)
		if err != nil {
			logger.Warn("token-metadata-unavailable",
				zap.String("token", t.name),
				zap.Error(err))
			continue
		}
		if int(decimals) != cfg.TokenDecimals {
			logger.Warn("token-decimals-mismatch",
				zap.String("token", t.name),
				zap.Uint8("on-chain", decimals),
				zap.Int("configured", cfg.TokenDecimals))
		}

		symbol, err := c.Reader.Symbol(ctx, t.addr)
		if err == nil && !strings.EqualFold(symbol, t.symbol) {
			logger.Warn("token-symbol-mismatch",
				zap.String("token", t.name),
				zap.String("on-chain", symbol),
				zap.String("configured", t.symbol))
		}
	}
}

// Close releases the cache and the RPC connection.
func (c *Chain) Close() {
	c.Metadata.Close()
	c.Client.Close()
}

// SetupHistory returns the configured history sink, or nil when history is off.
func SetupHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (history.Sink, error) {
	switch cfg.HistoryMode {
	case config.HistoryPostgres:
		sink, err := history.NewPostgresSink(ctx, &history.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres history: %w", err)
		}
		return sink, nil
	case config.HistoryConsole:
		return history.NewConsoleSink(logger), nil
	default:
		return nil, nil
	}
}

// SetupPublisher returns the configured announcer, or nil when announcing is off.
func SetupPublisher(cfg *config.Config, logger *zap.Logger) (announce.Publisher, error) {
	switch cfg.AnnounceMode {
	case config.AnnounceTwitter:
		publisher, err := announce.NewTwitterPublisher(cfg.TwitterAPIURL, announce.TwitterCredentials{
			ConsumerKey:    cfg.TwitterConsumerKey,
			ConsumerSecret: cfg.TwitterConsumerSecret,
			AccessToken:    cfg.TwitterAccessToken,
			AccessSecret:   cfg.TwitterAccessSecret,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create twitter publisher: %w", err)
		}
		return publisher, nil
	case config.AnnounceConsole:
		return &announce.ConsolePublisher{Out: os.Stdout}, nil
	default:
		return nil, nil
	}
}

// SetupResolver returns the static pool when one is configured, otherwise
// an indexer lookup.
func SetupResolver(cfg *config.Config, finder swap.PoolFinder) swap.Resolver {
	if cfg.HasStaticPool() {
		return &swap.StaticResolver{Key: swap.PoolKey{
			Currency0:   common.HexToAddress(cfg.PoolCurrency0),
			Currency1:   common.HexToAddress(cfg.PoolCurrency1),
			Fee:         uint32(cfg.PoolFee),
			TickSpacing: int32(cfg.PoolTickSpacing),
			Hooks:       common.HexToAddress(cfg.PoolHooks),
		}}
	}
	return &swap.IndexerResolver{Finder: finder}
}

// PipelineOptions are per-invocation pipeline switches.
type PipelineOptions struct {
	DryRun bool
}

// SetupPipeline wires a cycle pipeline over c. sink may be nil.
func SetupPipeline(
	cfg *config.Config,
	logger *zap.Logger,
	c *Chain,
	sink history.Sink,
	opts PipelineOptions,
) (*cycle.Pipeline, error) {
	swapper, err := swap.NewSwapper(c.Reader, c.Transactor, swap.Config{
		Router:  common.HexToAddress(cfg.UniversalRouter),
		Permit2: common.HexToAddress(cfg.Permit2),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setup swapper: %w", err)
	}

	publisher, err := SetupPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}

	idx := indexer.NewClient(cfg.IndexerURL, logger)

	deps := cycle.Deps{
		Ledger:    c.Reader,
		Staker:    c.Transactor,
		Swapper:   swapper,
		Pools:     SetupResolver(cfg, idx),
		Prices:    idx,
		Publisher: publisher,
		State:     runstate.NewFileStore(cfg.RunStatePath, logger),
		Logger:    logger,
	}
	if sink != nil {
		deps.History = sink
	}

	pipeline, err := cycle.New(cycle.Config{
		Wallet:               c.Identity.Address(),
		Primary:              c.Primary,
		Secondary:            c.Secondary,
		Staking:              c.Staking,
		PrimarySymbol:        cfg.PrimarySymbol,
		SecondarySymbol:      cfg.SecondarySymbol,
		Decimals:             cfg.TokenDecimals,
		AnnounceThresholdUSD: decimal.NewFromFloat(cfg.AnnounceThresholdUSD),
		MinGasBalance:        decimal.NewFromFloat(cfg.MinGasBalance).Shift(18).BigInt(),
		DryRun:               opts.DryRun,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("setup pipeline: %w", err)
	}

	return pipeline, nil
}

// New builds the serve-mode application.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	spec := opts.Schedule
	if spec == "" {
		spec = cfg.CycleSchedule
	}
	_, err := scheduler.ParseSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	c, err := SetupChain(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.CheckTokens(ctx, cfg, logger)

	sink, err := SetupHistory(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	pipeline, err := SetupPipeline(cfg, logger, c, sink, PipelineOptions{DryRun: opts.DryRun})
	if err != nil {
		closeSink(sink, logger)
		c.Close()
		return nil, err
	}

	tracker, err := wallet.New(&wallet.Config{
		Fetcher:      c.Balances,
		Address:      c.Identity.Address(),
		PollInterval: cfg.WalletPollInterval,
		Logger:       logger,
	})
	if err != nil {
		closeSink(sink, logger)
		c.Close()
		return nil, fmt.Errorf("setup wallet tracker: %w", err)
	}

	breaker, err := setupGasBreaker(cfg, logger, c)
	if err != nil {
		closeSink(sink, logger)
		c.Close()
		return nil, err
	}

	healthChecker := setupHealthChecker(cfg)

	a := &App{
		cfg:           cfg,
		logger:        logger,
		chain:         c,
		history:       sink,
		pipeline:      pipeline,
		healthChecker: healthChecker,
		httpServer:    setupHTTPServer(cfg, logger, healthChecker, sink),
		tracker:       tracker,
		breaker:       breaker,
		spec:          spec,
	}

	a.scheduler, err = scheduler.New(scheduler.Config{
		Spec:       spec,
		Timeout:    cfg.CycleTimeout,
		RunOnStart: opts.RunOnStart,
		Logger:     logger,
	}, a.runCycle)
	if err != nil {
		closeSink(sink, logger)
		c.Close()
		return nil, fmt.Errorf("setup scheduler: %w", err)
	}

	return a, nil
}

// setupGasBreaker returns nil when the breaker is disabled.
func setupGasBreaker(cfg *config.Config, logger *zap.Logger, c *Chain) (*circuitbreaker.GasBreaker, error) {
	if !cfg.GasBreakerEnabled() {
		return nil, nil
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		CheckInterval:   cfg.GasBreakerInterval,
		SpendMultiplier: cfg.GasBreakerMultiplier,
		MinAbsolute:     cfg.MinGasBalance,
		HysteresisRatio: cfg.GasBreakerHysteresis,
		Reader:          c.Reader,
		Address:         c.Identity.Address(),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup gas breaker: %w", err)
	}

	return breaker, nil
}

func setupHealthChecker(cfg *config.Config) *healthprobe.HealthChecker {
	hc := healthprobe.New()
	hc.SetMaxStaleness(cfg.ReadyMaxStaleness)
	return hc
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	sink history.Sink,
) *httpserver.Server {
	serverCfg := &httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		State:         runstate.NewFileStore(cfg.RunStatePath, logger),
	}

	// Only the postgres sink can list past cycles.
	if reader, ok := sink.(httpserver.HistoryReader); ok {
		serverCfg.History = reader
	}

	return httpserver.New(serverCfg)
}

func closeSink(sink history.Sink, logger *zap.Logger) {
	if sink == nil {
		return
	}
	err := sink.Close()
	if err != nil {
		logger.Error("history-close-error", zap.Error(err))
	}
}
