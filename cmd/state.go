package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moltbot/molt-treasury/internal/history"
	"github.com/moltbot/molt-treasury/internal/runstate"
	"github.com/moltbot/molt-treasury/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the last recorded cycle",
	Long: `Print the run state written by the most recent cycle (RUN_STATE_PATH).

With --history N the last N cycles are read from the Postgres history
instead; this needs HISTORY_MODE=postgres.`,
	RunE: runState,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.Flags().Int("history", 0, "Show the last N cycles from Postgres")
	stateCmd.Flags().Bool("json", false, "Print as JSON")
}

func runState(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	limit, _ := cmd.Flags().GetInt("history")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if limit > 0 {
		if cfg.HistoryMode != config.HistoryPostgres {
			return fmt.Errorf("--history needs HISTORY_MODE=%s, got %q", config.HistoryPostgres, cfg.HistoryMode)
		}

		sink, sinkErr := history.NewPostgresSink(ctx, &history.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if sinkErr != nil {
			return fmt.Errorf("connect history: %w", sinkErr)
		}
		defer func() {
			_ = sink.Close()
		}()

		snaps, recentErr := sink.Recent(ctx, limit)
		if recentErr != nil {
			return fmt.Errorf("read history: %w", recentErr)
		}

		if asJSON {
			return printJSON(os.Stdout, snaps)
		}
		for i, snap := range snaps {
			if i > 0 {
				fmt.Println()
			}
			printSnapshot(os.Stdout, snap, cfg.PrimarySymbol, cfg.SecondarySymbol)
		}
		return nil
	}

	snap, err := runstate.NewFileStore(cfg.RunStatePath, logger).Load(ctx)
	if errors.Is(err, runstate.ErrNoState) {
		fmt.Printf("No cycle recorded yet at %s\n", cfg.RunStatePath)
		return nil
	}
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(os.Stdout, snap)
	}
	printSnapshot(os.Stdout, snap, cfg.PrimarySymbol, cfg.SecondarySymbol)
	return nil
}

func printSnapshot(w io.Writer, snap *runstate.Snapshot, primary, secondary string) {
	fmt.Fprintf(w, "Run:       %s\n", snap.RunID)
	fmt.Fprintf(w, "Last run:  %s\n", snap.LastRun)
	fmt.Fprintf(w, "Claimed:   %s %s + %s %s\n", snap.Claimed.Primary, primary, snap.Claimed.Secondary, secondary)
	fmt.Fprintf(w, "Buyback:   %s %s -> %s %s\n", snap.Buyback.SecondaryIn, secondary, snap.Buyback.PrimaryOut, primary)
	fmt.Fprintf(w, "Restaked:  %s %s\n", snap.Restaked, primary)
	fmt.Fprintf(w, "Value:     $%s\n", snap.TotalUSDValue)
	fmt.Fprintf(w, "APR:       %.2f%%\n", snap.APR)
	fmt.Fprintf(w, "Tweeted:   %t\n", snap.Tweeted)
}
