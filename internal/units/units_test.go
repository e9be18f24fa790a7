package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad int " + s)
	}
	return v
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals int
		want     string
	}{
		{"nil", nil, 18, "0"},
		{"zero", big.NewInt(0), 18, "0"},
		{"one_and_half", wei("1500000000000000000"), 18, "1.5"},
		{"smallest_unit", big.NewInt(1), 18, "0.000000000000000001"},
		{"whole", wei("42000000000000000000"), 18, "42"},
		{"six_decimals", big.NewInt(2_500_000), 6, "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.amount, tt.decimals))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *big.Int
		wantErr bool
	}{
		{"integer", "42", wei("42000000000000000000"), false},
		{"fraction", "1.5", wei("1500000000000000000"), false},
		{"smallest", "0.000000000000000001", big.NewInt(1), false},
		{"too_precise", "0.0000000000000000001", nil, true},
		{"garbage", "abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input, 18)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "0.1", "123456.789", "1000000000.000000000000000001"} {
		amount, err := Parse(s, 18)
		require.NoError(t, err)
		assert.Equal(t, s, Format(amount, 18))
	}
}

func TestCompact(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0.00"},
		{"12.5", "12.50"},
		{"999.994", "999.99"},
		{"1000", "1.00K"},
		{"4200", "4.20K"},
		{"999999", "1000.00K"},
		{"1000000", "1.00M"},
		{"1234567", "1.23M"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Compact(decimal.RequireFromString(tt.input)))
		})
	}
}
