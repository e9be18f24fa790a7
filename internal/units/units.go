// Package units converts between on-chain integer amounts and decimal values.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

//nolint:gochecknoglobals // read-only thresholds
var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// ToDecimal scales a smallest-unit amount down by decimals. Nil is zero.
func ToDecimal(amount *big.Int, decimals int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// Format renders an amount as a plain decimal string with no trailing zeros,
// e.g. 1500000000000000000 at 18 decimals is "1.5".
func Format(amount *big.Int, decimals int) string {
	return ToDecimal(amount, decimals).String()
}

// Parse converts a decimal string into smallest units. More fractional
// digits than decimals is an error.
func Parse(s string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}

	return scaled.BigInt(), nil
}

// Compact renders a value with a K or M suffix above a thousand,
// always with two decimals: 1234567 -> "1.23M", 4200 -> "4.20K", 12.5 -> "12.50".
func Compact(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(million):
		return v.Div(million).StringFixed(2) + "M"
	case v.GreaterThanOrEqual(thousand):
		return v.Div(thousand).StringFixed(2) + "K"
	default:
		return v.StringFixed(2)
	}
}
