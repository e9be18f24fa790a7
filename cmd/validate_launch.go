package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/moltbot/molt-treasury/internal/launchconfig"
)

//nolint:gochecknoglobals // Cobra boilerplate
var validateLaunchCmd = &cobra.Command{
	Use:   "validate-launch [path]",
	Short: "Validate a token launch configuration",
	Long: `Validate a launch configuration file before submitting it.

Checks required fields, the allowed fee tiers, staking and treasury splits,
paired and reward tokens, the vault lockup and vesting periods and the
airdrop recipients. Staking and admin rewards must add up to 100%.

Exits non-zero when the file has errors. Warnings do not fail validation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateLaunch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(validateLaunchCmd)
}

func runValidateLaunch(_ *cobra.Command, args []string) error {
	path := "molt.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	return validateLaunch(os.Stdout, path)
}

func validateLaunch(w io.Writer, path string) error {
	launch, warnings, err := launchconfig.Load(path)

	for _, warning := range warnings {
		fmt.Fprintf(w, "WARN  %s\n", warning)
	}

	if ve, ok := launchconfig.AsValidationError(err); ok {
		for _, problem := range ve.Problems {
			fmt.Fprintf(w, "ERROR %s\n", problem)
		}
		return fmt.Errorf("%s: %d problem(s)", path, len(ve.Problems))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s is valid\n\n", path)
	for _, line := range launch.Summary() {
		fmt.Fprintf(w, "  %s\n", line)
	}
	return nil
}
