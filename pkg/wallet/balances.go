package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Balances is a point-in-time balance sheet for the treasury wallet.
// Token amounts are in smallest units.
type Balances struct {
	Native             *big.Int // BNB, 18 decimals
	Primary            *big.Int
	Secondary          *big.Int
	Staked             *big.Int
	ClaimablePrimary   *big.Int
	ClaimableSecondary *big.Int
	APRBps             *big.Int
	Decimals           int
}

// BalanceFetcher fetches a balance sheet for an address.
type BalanceFetcher interface {
	GetBalances(ctx context.Context, address common.Address) (*Balances, error)
}

// ToFloat converts a smallest-unit amount to a float for gauges and display.
func ToFloat(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), scale).Float64()
	return f
}
