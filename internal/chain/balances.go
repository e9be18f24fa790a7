package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/moltbot/molt-treasury/pkg/wallet"
)

// BalanceSheet assembles the treasury balance sheet from individual reads.
// It implements wallet.BalanceFetcher.
type BalanceSheet struct {
	Reader    *Reader
	Primary   common.Address
	Secondary common.Address
	Staking   common.Address
	Decimals  int
}

// GetBalances reads every balance. A failed read leaves that field at zero
// and is reported in the joined error alongside the partial sheet.
func (s *BalanceSheet) GetBalances(ctx context.Context, owner common.Address) (*wallet.Balances, error) {
	var errs []error

	read := func(name string, fn func() (*big.Int, error)) *big.Int {
		v, err := fn()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return new(big.Int)
		}
		return v
	}

	balances := &wallet.Balances{
		Native: read("native", func() (*big.Int, error) { return s.Reader.NativeBalance(ctx, owner) }),
		Primary: read("primary", func() (*big.Int, error) {
			return s.Reader.BalanceOf(ctx, s.Primary, owner)
		}),
		Secondary: read("secondary", func() (*big.Int, error) {
			return s.Reader.BalanceOf(ctx, s.Secondary, owner)
		}),
		Staked: read("staked", func() (*big.Int, error) {
			return s.Reader.StakedBalance(ctx, s.Staking, owner)
		}),
		ClaimablePrimary: read("claimable-primary", func() (*big.Int, error) {
			return s.Reader.ClaimableRewards(ctx, s.Staking, owner, s.Primary)
		}),
		ClaimableSecondary: read("claimable-secondary", func() (*big.Int, error) {
			return s.Reader.ClaimableRewards(ctx, s.Staking, owner, s.Secondary)
		}),
		APRBps:   read("apr", func() (*big.Int, error) { return s.Reader.APRBps(ctx, s.Staking) }),
		Decimals: s.Decimals,
	}

	return balances, errors.Join(errs...)
}
