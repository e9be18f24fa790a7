// Package announce composes and publishes the cycle summary post.
package announce

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moltbot/molt-treasury/internal/units"
)

// Summary is the data a cycle post is built from. Amounts are in whole tokens.
type Summary struct {
	PrimarySymbol   string
	SecondarySymbol string
	ClaimedPrimary  decimal.Decimal
	SecondaryIn     decimal.Decimal
	PrimaryOut      decimal.Decimal
	Staked          decimal.Decimal
	TotalUSD        decimal.Decimal
	APR             float64
}

// Compose renders the fixed cycle-complete template.
func Compose(s Summary) string {
	primary := s.PrimarySymbol
	if primary == "" {
		primary = "MOLT"
	}
	secondary := s.SecondarySymbol
	if secondary == "" {
		secondary = "USD1"
	}

	lines := []string{"🦞 claim-buyback-restake cycle complete", ""}

	if s.ClaimedPrimary.IsPositive() {
		lines = append(lines, "claimed "+units.Compact(s.ClaimedPrimary)+" $"+primary)
	}

	switch {
	case s.SecondaryIn.IsPositive() && s.PrimaryOut.IsPositive():
		lines = append(lines, "bought back $"+s.SecondaryIn.StringFixed(2)+" "+secondary+
			" → "+units.Compact(s.PrimaryOut)+" $"+primary)
	case s.SecondaryIn.IsPositive():
		lines = append(lines, "$"+s.SecondaryIn.StringFixed(2)+" "+secondary+" claimed (swap pending)")
	}

	lines = append(lines,
		"restaked "+units.Compact(s.Staked)+" $"+primary+" (~$"+s.TotalUSD.StringFixed(2)+")",
		"")

	if s.APR > 0 {
		lines = append(lines, decimal.NewFromFloat(s.APR).StringFixed(0)+"% APR. ")
	}

	lines = append(lines, "compound. evolve. repeat.", "", "$"+primary+" @BNBCHAIN")

	return strings.Join(lines, "\n")
}
