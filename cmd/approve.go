package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/moltbot/molt-treasury/internal/app"
	"github.com/moltbot/molt-treasury/internal/chain"
	"github.com/moltbot/molt-treasury/internal/units"
)

//nolint:gochecknoglobals // Cobra boilerplate
var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve the staking contract to spend your $MOLT",
	Long: `Approve the staking contract to pull $MOLT from the treasury wallet.

Cycles approve automatically when the allowance is short, so this is only
needed to pre-approve or to replace an allowance. Unlimited (max uint256) is
the default; pass --amount to approve a specific token amount.`,
	RunE: runApprove,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(approveCmd)

	approveCmd.Flags().StringP("amount", "a", "unlimited", "Approval amount (unlimited, or a token amount)")
	approveCmd.Flags().BoolP("force", "f", false, "Approve even when the current allowance already covers the amount")
}

// approvalAmount parses the --amount flag into smallest units.
func approvalAmount(raw string, decimals int) (*big.Int, error) {
	if raw == "" || raw == "unlimited" {
		return chain.MaxUint256(), nil
	}

	amount, err := units.Parse(raw, decimals)
	if err != nil {
		return nil, err
	}

	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", raw)
	}

	return amount, nil
}

func runApprove(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	raw, _ := cmd.Flags().GetString("amount")
	force, _ := cmd.Flags().GetBool("force")

	amount, err := approvalAmount(raw, cfg.TokenDecimals)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TxTimeout+30*time.Second)
	defer cancel()

	c, err := app.SetupChain(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	owner := c.Identity.Address()

	current, err := c.Reader.Allowance(ctx, c.Primary, owner, c.Staking)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}

	fmt.Printf("Wallet:            %s\n", owner.Hex())
	fmt.Printf("Spender:           %s\n", c.Staking.Hex())
	fmt.Printf("Current allowance: %s %s\n", describeAllowance(current, cfg.TokenDecimals), cfg.PrimarySymbol)

	if !force && current.Cmp(amount) >= 0 {
		fmt.Printf("\nAllowance already covers %s, nothing to do.\n", describeAllowance(amount, cfg.TokenDecimals))
		return nil
	}

	fmt.Printf("Approving:         %s %s\n\n", describeAllowance(amount, cfg.TokenDecimals), cfg.PrimarySymbol)

	receipt, err := c.Transactor.Approve(ctx, c.Primary, c.Staking, amount)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	fmt.Printf("Approved in tx %s (block %s)\n", receipt.TxHash.Hex(), receipt.BlockNumber)
	return nil
}

func describeAllowance(amount *big.Int, decimals int) string {
	if amount.Cmp(chain.MaxUint256()) == 0 {
		return "unlimited"
	}
	return units.Format(amount, decimals)
}
