package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moltbot/molt-treasury/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run cycles on a schedule",
	Long: `Starts the treasury daemon, which will:
1. Run a claim, buyback and restake cycle on the cron schedule
2. Poll wallet balances into Prometheus gauges
3. Serve /health, /ready, /metrics, /api/state and /api/history

The schedule defaults to CYCLE_SCHEDULE (every six hours). Use --run-on-start
to run one cycle immediately.`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("schedule", "s", "", "Cron spec overriding CYCLE_SCHEDULE (e.g. \"@every 6h\")")
	serveCmd.Flags().Bool("run-on-start", false, "Run one cycle immediately")
	serveCmd.Flags().Bool("dry-run", false, "Plan cycles without sending transactions")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	schedule, _ := cmd.Flags().GetString("schedule")
	runOnStart, _ := cmd.Flags().GetBool("run-on-start")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	opts := &app.Options{
		Schedule:   schedule,
		RunOnStart: runOnStart,
		DryRun:     dryRun,
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run(ctx)
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
