package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "molt-treasury",
	Short: "$MOLT treasury automation",
	Long: `Treasury automation for the $MOLT staking wallet on BNB Chain.

Each cycle claims staking rewards, swaps the secondary reward token into
$MOLT through the Uniswap v4 Universal Router, restakes the whole $MOLT
balance, announces the result when it is worth announcing and records the
run state.

Run a single cycle with "cycle" or keep the daemon running with "serve".`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadEnv loads .env when present. Real environment variables win.
func loadEnv() {
	err := godotenv.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found")
	}
}

// setup loads .env, the configuration and a logger at the configured level.
func setup() (*config.Config, *zap.Logger, error) {
	loadEnv()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}
