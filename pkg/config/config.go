package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Announce modes.
const (
	AnnounceTwitter = "twitter"
	AnnounceConsole = "console"
	AnnounceOff     = "off"
)

// History modes.
const (
	HistoryOff      = "off"
	HistoryConsole  = "console"
	HistoryPostgres = "postgres"
)

// DynamicFeeFlag marks a v4 pool whose fee is set by its hook.
const DynamicFeeFlag = 0x800000

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain
	RPCURL        string
	ChainID       int64
	TxTimeout     time.Duration
	MinGasBalance float64 // native units (BNB)

	// Wallet. WalletPrivateKey is only used when WalletFile does not exist.
	WalletFile       string
	WalletPrivateKey string

	// Tokens and contracts
	PrimaryToken    string
	PrimarySymbol   string
	SecondaryToken  string
	SecondarySymbol string
	TokenDecimals   int
	StakingContract string
	UniversalRouter string
	Permit2         string

	// Pool descriptor. When all of currency0, currency1 and hooks are set the
	// descriptor is used as-is, otherwise it is looked up on the indexer.
	IndexerURL      string
	PoolCurrency0   string
	PoolCurrency1   string
	PoolFee         int
	PoolTickSpacing int
	PoolHooks       string

	// Announcement
	AnnounceMode          string
	AnnounceThresholdUSD  float64
	TwitterAPIURL         string
	TwitterConsumerKey    string
	TwitterConsumerSecret string
	TwitterAccessToken    string
	TwitterAccessSecret   string

	// Run state and history
	RunStatePath string
	HistoryMode  string
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Serve mode
	CycleSchedule      string
	CycleTimeout       time.Duration
	ReadyMaxStaleness  time.Duration // zero disables the readiness staleness check
	WalletPollInterval time.Duration

	// Gas breaker. A zero interval or MinGasBalance disables it.
	GasBreakerInterval   time.Duration
	GasBreakerMultiplier float64
	GasBreakerHysteresis float64
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	env := &envParser{}
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Chain defaults (BNB Smart Chain mainnet)
		RPCURL:        getEnvOrDefault("BSC_RPC_URL", "https://bsc-dataseed.binance.org/"),
		ChainID:       int64(env.getIntOrDefault("CHAIN_ID", 56)),
		TxTimeout:     env.getDurationOrDefault("TX_TIMEOUT", 2*time.Minute),
		MinGasBalance: env.getFloat64OrDefault("MIN_GAS_BALANCE", 0.0005),

		WalletFile:       getEnvOrDefault("WALLET_FILE", ".wallet.json"),
		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),

		// $MOLT / USD1 defaults
		PrimaryToken:    getEnvOrDefault("PRIMARY_TOKEN", "0x8ECa9C65055b42f77fab74cF8265c831585AFB07"),
		PrimarySymbol:   getEnvOrDefault("PRIMARY_SYMBOL", "MOLT"),
		SecondaryToken:  getEnvOrDefault("SECONDARY_TOKEN", "0x8d0D000Ee44948FC98c9B98A4FA4921476f08B0d"),
		SecondarySymbol: getEnvOrDefault("SECONDARY_SYMBOL", "USD1"),
		TokenDecimals:   env.getIntOrDefault("TOKEN_DECIMALS", 18),
		StakingContract: getEnvOrDefault("STAKING_CONTRACT", "0x10cf2944b727841730b4d4680b74d7cb6967035e"),
		UniversalRouter: getEnvOrDefault("UNIVERSAL_ROUTER", "0x1906c1d672b88cd1b9ac7593301ca990f94eae07"),
		Permit2:         getEnvOrDefault("PERMIT2", "0x000000000022D473030F116dDEE9F6B43aC78BA3"),

		IndexerURL:      getEnvOrDefault("INDEXER_URL", "https://indexer.hyperindex.xyz/2b6b55b/v1/graphql"),
		PoolCurrency0:   os.Getenv("POOL_CURRENCY0"),
		PoolCurrency1:   os.Getenv("POOL_CURRENCY1"),
		PoolFee:         env.getIntOrDefault("POOL_FEE", DynamicFeeFlag),
		PoolTickSpacing: env.getIntOrDefault("POOL_TICK_SPACING", 200),
		PoolHooks:       os.Getenv("POOL_HOOKS"),

		AnnounceMode:          getEnvOrDefault("ANNOUNCE_MODE", AnnounceConsole),
		AnnounceThresholdUSD:  env.getFloat64OrDefault("ANNOUNCE_THRESHOLD_USD", 10.0),
		TwitterAPIURL:         getEnvOrDefault("TWITTER_API_URL", "https://api.twitter.com"),
		TwitterConsumerKey:    os.Getenv("TWITTER_CONSUMER_KEY"),
		TwitterConsumerSecret: os.Getenv("TWITTER_CONSUMER_SECRET"),
		TwitterAccessToken:    os.Getenv("TWITTER_ACCESS_TOKEN"),
		TwitterAccessSecret:   os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),

		RunStatePath: getEnvOrDefault("RUN_STATE_PATH", "memory/stake-automation-state.json"),
		HistoryMode:  getEnvOrDefault("HISTORY_MODE", HistoryOff),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "molt"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "molt"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "molt_treasury"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		CycleSchedule:      getEnvOrDefault("CYCLE_SCHEDULE", "0 */6 * * *"),
		CycleTimeout:       env.getDurationOrDefault("CYCLE_TIMEOUT", 10*time.Minute),
		ReadyMaxStaleness:  env.getDurationOrDefault("READY_MAX_STALENESS", 13*time.Hour),
		WalletPollInterval: env.getDurationOrDefault("WALLET_POLL_INTERVAL", 1*time.Minute),

		GasBreakerInterval:   env.getDurationOrDefault("GAS_BREAKER_INTERVAL", 5*time.Minute),
		GasBreakerMultiplier: env.getFloat64OrDefault("GAS_BREAKER_MULTIPLIER", 3.0),
		GasBreakerHysteresis: env.getFloat64OrDefault("GAS_BREAKER_HYSTERESIS", 1.5),
	}

	err := env.err()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("BSC_RPC_URL cannot be empty")
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}

	if c.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT must be positive, got %s", c.TxTimeout)
	}

	if c.MinGasBalance < 0 {
		return fmt.Errorf("MIN_GAS_BALANCE must be non-negative, got %f", c.MinGasBalance)
	}

	addresses := []struct {
		key   string
		value string
	}{
		{"PRIMARY_TOKEN", c.PrimaryToken},
		{"SECONDARY_TOKEN", c.SecondaryToken},
		{"STAKING_CONTRACT", c.StakingContract},
		{"UNIVERSAL_ROUTER", c.UniversalRouter},
		{"PERMIT2", c.Permit2},
	}
	for _, a := range addresses {
		if !common.IsHexAddress(a.value) {
			return fmt.Errorf("%s must be a 0x-prefixed 20-byte hex address, got %q", a.key, a.value)
		}
	}

	if strings.EqualFold(c.PrimaryToken, c.SecondaryToken) {
		return fmt.Errorf("PRIMARY_TOKEN and SECONDARY_TOKEN must differ")
	}

	if c.TokenDecimals < 0 || c.TokenDecimals > 36 {
		return fmt.Errorf("TOKEN_DECIMALS must be between 0 and 36, got %d", c.TokenDecimals)
	}

	for _, a := range []struct {
		key   string
		value string
	}{
		{"POOL_CURRENCY0", c.PoolCurrency0},
		{"POOL_CURRENCY1", c.PoolCurrency1},
		{"POOL_HOOKS", c.PoolHooks},
	} {
		if a.value != "" && !common.IsHexAddress(a.value) {
			return fmt.Errorf("%s must be a 0x-prefixed 20-byte hex address, got %q", a.key, a.value)
		}
	}

	if c.PoolFee < 0 || (c.PoolFee > 1_000_000 && c.PoolFee != DynamicFeeFlag) {
		return fmt.Errorf("POOL_FEE must be between 0 and 1000000 or the dynamic fee flag, got %d", c.PoolFee)
	}

	if c.PoolTickSpacing < 1 || c.PoolTickSpacing > 32767 {
		return fmt.Errorf("POOL_TICK_SPACING must be between 1 and 32767, got %d", c.PoolTickSpacing)
	}

	if !c.HasStaticPool() && c.IndexerURL == "" {
		return fmt.Errorf("INDEXER_URL cannot be empty without a static pool descriptor")
	}

	switch c.AnnounceMode {
	case AnnounceTwitter:
		if c.TwitterConsumerKey == "" || c.TwitterConsumerSecret == "" ||
			c.TwitterAccessToken == "" || c.TwitterAccessSecret == "" {
			return fmt.Errorf("ANNOUNCE_MODE=twitter requires TWITTER_CONSUMER_KEY, TWITTER_CONSUMER_SECRET, " +
				"TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_TOKEN_SECRET")
		}
	case AnnounceConsole, AnnounceOff:
	default:
		return fmt.Errorf("ANNOUNCE_MODE must be 'twitter', 'console' or 'off', got %q", c.AnnounceMode)
	}

	if c.AnnounceThresholdUSD <= 0 {
		return fmt.Errorf("ANNOUNCE_THRESHOLD_USD must be positive, got %f", c.AnnounceThresholdUSD)
	}

	if c.RunStatePath == "" {
		return fmt.Errorf("RUN_STATE_PATH cannot be empty")
	}

	if c.HistoryMode != HistoryOff && c.HistoryMode != HistoryConsole && c.HistoryMode != HistoryPostgres {
		return fmt.Errorf("HISTORY_MODE must be 'off', 'console' or 'postgres', got %q", c.HistoryMode)
	}

	if c.CycleTimeout <= 0 {
		return fmt.Errorf("CYCLE_TIMEOUT must be positive, got %s", c.CycleTimeout)
	}

	if c.ReadyMaxStaleness < 0 {
		return fmt.Errorf("READY_MAX_STALENESS must be non-negative, got %s", c.ReadyMaxStaleness)
	}

	if c.WalletPollInterval <= 0 {
		return fmt.Errorf("WALLET_POLL_INTERVAL must be positive, got %s", c.WalletPollInterval)
	}

	if c.GasBreakerInterval < 0 {
		return fmt.Errorf("GAS_BREAKER_INTERVAL must be non-negative, got %s", c.GasBreakerInterval)
	}

	if c.GasBreakerEnabled() {
		if c.GasBreakerMultiplier <= 0 {
			return fmt.Errorf("GAS_BREAKER_MULTIPLIER must be positive, got %f", c.GasBreakerMultiplier)
		}
		if c.GasBreakerHysteresis < 1 {
			return fmt.Errorf("GAS_BREAKER_HYSTERESIS must be >= 1, got %f", c.GasBreakerHysteresis)
		}
	}

	return nil
}

// GasBreakerEnabled reports whether serve mode should gate cycles on the
// BNB balance.
func (c *Config) GasBreakerEnabled() bool {
	return c.GasBreakerInterval > 0 && c.MinGasBalance > 0
}

// HasStaticPool reports whether a complete pool descriptor was configured.
func (c *Config) HasStaticPool() bool {
	return c.PoolCurrency0 != "" && c.PoolCurrency1 != "" && c.PoolHooks != ""
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// envParser reads typed values, collecting every malformed one.
type envParser struct {
	errs []error
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}

func (p *envParser) getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}

	return intVal
}

func (p *envParser) getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, value))
		return defaultValue
	}

	return floatVal
}

func (p *envParser) getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}

	return duration
}
