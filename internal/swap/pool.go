// Package swap routes the buyback through a Uniswap v4 pool via the
// Universal Router.
package swap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrPoolNotFound is returned when no pool descriptor can be resolved.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrTokenNotInPool is returned when a token is neither currency of a pool.
	ErrTokenNotInPool = errors.New("token not in pool")
)

// PoolKey identifies a v4 pool.
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         uint32 // uint24 on chain; 0x800000 flags a dynamic fee
	TickSpacing int32  // int24 on chain
	Hooks       common.Address
}

// Direction returns zeroForOne for a swap whose output is `out`. The
// comparison is a case-insensitive match on the hex strings.
func Direction(currency0, currency1, out string) (zeroForOne bool, err error) {
	switch {
	case strings.EqualFold(out, currency0):
		return false, nil
	case strings.EqualFold(out, currency1):
		return true, nil
	default:
		return false, fmt.Errorf("%s: %w", out, ErrTokenNotInPool)
	}
}

// ZeroForOne is Direction for a parsed key.
func (k PoolKey) ZeroForOne(out common.Address) (bool, error) {
	return Direction(k.Currency0.Hex(), k.Currency1.Hex(), out.Hex())
}

// Contains reports whether token is either currency of the pool.
func (k PoolKey) Contains(token common.Address) bool {
	return k.Currency0 == token || k.Currency1 == token
}

// Tokens returns (tokenIn, tokenOut) for the given direction.
func (k PoolKey) Tokens(zeroForOne bool) (tokenIn, tokenOut common.Address) {
	if zeroForOne {
		return k.Currency0, k.Currency1
	}
	return k.Currency1, k.Currency0
}

// String renders the key for logs.
func (k PoolKey) String() string {
	return fmt.Sprintf("%s/%s fee=%d tick=%d hooks=%s",
		k.Currency0.Hex(), k.Currency1.Hex(), k.Fee, k.TickSpacing, k.Hooks.Hex())
}
