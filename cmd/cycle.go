package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/moltbot/molt-treasury/internal/app"
	"github.com/moltbot/molt-treasury/internal/cycle"
	"github.com/moltbot/molt-treasury/internal/units"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one claim, buyback and restake cycle",
	Long: `Runs a single treasury cycle and exits:
1. Claim $MOLT and secondary-token staking rewards
2. Swap the whole secondary balance into $MOLT
3. Restake the whole $MOLT balance
4. Announce the result when it clears ANNOUNCE_THRESHOLD_USD
5. Write the run state to RUN_STATE_PATH

With --dry-run nothing is sent on chain, nothing is announced and no state is
written; the planned amounts are printed instead.`,
	RunE: runCycle,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cycleCmd)
	cycleCmd.Flags().Bool("dry-run", false, "Plan the cycle without sending transactions")
	cycleCmd.Flags().Bool("json", false, "Print the run snapshot as JSON")
}

func runCycle(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.CycleTimeout)
	defer cancel()

	c, err := app.SetupChain(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	c.CheckTokens(ctx, cfg, logger)

	sink, err := app.SetupHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		defer func() {
			_ = sink.Close()
		}()
	}

	pipeline, err := app.SetupPipeline(cfg, logger, c, sink, app.PipelineOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	res, runErr := pipeline.Run(ctx)
	if res != nil {
		if asJSON {
			err = printJSON(os.Stdout, res.Snapshot(cfg.TokenDecimals))
			if err != nil {
				return err
			}
		} else {
			printResult(os.Stdout, res, cfg.TokenDecimals, cfg.PrimarySymbol, cfg.SecondarySymbol)
		}
	}

	if runErr != nil {
		return fmt.Errorf("run cycle: %w", runErr)
	}
	return nil
}

func printResult(w io.Writer, res *cycle.Result, decimals int, primary, secondary string) {
	mode := "live"
	if res.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(w, "=== Cycle %s (%s) ===\n\n", res.RunID, mode)

	if res.DryRun {
		fmt.Fprintf(w, "Planned:\n")
		fmt.Fprintf(w, "  Claim:    %s %s + %s %s\n",
			units.Format(res.Plan.ClaimPrimary, decimals), primary,
			units.Format(res.Plan.ClaimSecondary, decimals), secondary)
		fmt.Fprintf(w, "  Swap:     %s %s\n", units.Format(res.Plan.SwapIn, decimals), secondary)
		fmt.Fprintf(w, "  Stake:    %s %s\n\n", units.Format(res.Plan.Stake, decimals), primary)
	} else {
		fmt.Fprintf(w, "Claimed:    %s %s + %s %s\n",
			units.Format(res.ClaimedPrimary, decimals), primary,
			units.Format(res.ClaimedSecondary, decimals), secondary)
		fmt.Fprintf(w, "Swapped:    %s %s -> %s %s\n",
			units.Format(res.SecondaryIn, decimals), secondary,
			units.Format(res.PrimaryOut, decimals), primary)
		fmt.Fprintf(w, "Restaked:   %s %s\n", units.Format(res.Staked, decimals), primary)
		fmt.Fprintf(w, "Value:      $%s\n", res.TotalUSD.StringFixed(4))
		fmt.Fprintf(w, "APR:        %.2f%%\n", res.APR)
		fmt.Fprintf(w, "Tweeted:    %t\n\n", res.Tweeted)
	}

	fmt.Fprintf(w, "Stages:\n")
	for _, s := range res.Stages {
		line := fmt.Sprintf("  %-9s %-8s", s.Stage, s.Status)
		if s.Reason != "" {
			line += " " + s.Reason
		}
		fmt.Fprintln(w, line)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
