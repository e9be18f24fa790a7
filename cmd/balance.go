package cmd

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moltbot/molt-treasury/internal/app"
	"github.com/moltbot/molt-treasury/internal/units"
	"github.com/moltbot/molt-treasury/pkg/wallet"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check the treasury wallet balances",
	Long: `Display the treasury wallet's current position:
- BNB balance (for gas)
- $MOLT and secondary-token balances
- $MOLT staked
- Claimable staking rewards
- Current staking APR`,
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := app.SetupChain(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	address := c.Identity.Address()

	balances, err := c.Balances.GetBalances(ctx, address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: some reads failed: %v\n\n", err)
	}

	fmt.Printf("=== Wallet Balance Sheet ===\n\n")
	fmt.Printf("Address: %s\n\n", address.Hex())
	printBalances(os.Stdout, balances, cfg.PrimarySymbol, cfg.SecondarySymbol)

	total, err := c.Reader.TotalStaked(ctx, c.Staking)
	if err == nil && total.Sign() > 0 {
		share := units.ToDecimal(balances.Staked, 0).Div(units.ToDecimal(total, 0)).Shift(2)
		fmt.Printf("\nPool staked:        %s %s (wallet share %s%%)\n",
			units.Format(total, cfg.TokenDecimals), cfg.PrimarySymbol, share.StringFixed(2))
	}

	return nil
}

func printBalances(w io.Writer, b *wallet.Balances, primary, secondary string) {
	fmt.Fprintf(w, "BNB:                %s\n", units.Format(b.Native, 18))
	fmt.Fprintf(w, "%-19s %s\n", primary+":", units.Format(b.Primary, b.Decimals))
	fmt.Fprintf(w, "%-19s %s\n", secondary+":", units.Format(b.Secondary, b.Decimals))
	fmt.Fprintf(w, "Staked %-12s %s\n", primary+":", units.Format(b.Staked, b.Decimals))
	fmt.Fprintf(w, "Claimable %-9s %s\n", primary+":", units.Format(b.ClaimablePrimary, b.Decimals))
	fmt.Fprintf(w, "Claimable %-9s %s\n", secondary+":", units.Format(b.ClaimableSecondary, b.Decimals))
	fmt.Fprintf(w, "APR:                %s%%\n", aprPercent(b.APRBps))
}

// aprPercent renders basis points as a percentage with two decimals.
func aprPercent(bps *big.Int) string {
	return units.ToDecimal(bps, 2).StringFixed(2)
}
