package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/moltbot/molt-treasury/internal/indexer"
)

// Resolver finds the pool the buyback should trade through.
type Resolver interface {
	ResolvePool(ctx context.Context, token common.Address) (PoolKey, error)
}

// StaticResolver always returns a configured key.
type StaticResolver struct {
	Key PoolKey
}

// ResolvePool returns the configured key if it contains token.
func (s *StaticResolver) ResolvePool(_ context.Context, token common.Address) (PoolKey, error) {
	if !s.Key.Contains(token) {
		return PoolKey{}, fmt.Errorf("static pool %s: %w", s.Key, ErrTokenNotInPool)
	}
	return s.Key, nil
}

// PoolFinder looks up pool descriptors by token.
type PoolFinder interface {
	PoolForToken(ctx context.Context, token common.Address) (*indexer.PoolRow, error)
}

// IndexerResolver fetches the pool fresh from the indexer on every call.
type IndexerResolver struct {
	Finder PoolFinder
}

// ResolvePool queries the indexer for a pool containing token.
func (r *IndexerResolver) ResolvePool(ctx context.Context, token common.Address) (key PoolKey, err error) {
	row, err := r.Finder.PoolForToken(ctx, token)
	if err != nil {
		if errors.Is(err, indexer.ErrNotFound) {
			return PoolKey{}, fmt.Errorf("%w: %w", ErrPoolNotFound, err)
		}
		return PoolKey{}, fmt.Errorf("query pool: %w", err)
	}

	return KeyFromRow(row)
}

// KeyFromRow validates and converts an indexer row.
func KeyFromRow(row *indexer.PoolRow) (key PoolKey, err error) {
	if row == nil {
		return PoolKey{}, ErrPoolNotFound
	}

	if !common.IsHexAddress(row.Currency0) || !common.IsHexAddress(row.Currency1) {
		return PoolKey{}, fmt.Errorf("pool currencies %q/%q: %w", row.Currency0, row.Currency1, ErrPoolNotFound)
	}

	hooks := common.Address{}
	if row.Hooks != "" {
		if !common.IsHexAddress(row.Hooks) {
			return PoolKey{}, fmt.Errorf("pool hooks %q is not an address", row.Hooks)
		}
		hooks = common.HexToAddress(row.Hooks)
	}

	fee := row.Fee.IntPart()
	if fee < 0 || fee > 0xFFFFFF {
		return PoolKey{}, fmt.Errorf("pool fee %d out of uint24 range", fee)
	}

	tick := row.TickSpacing.IntPart()
	if tick <= 0 || tick > 0x7FFFFF {
		return PoolKey{}, fmt.Errorf("pool tick spacing %d out of range", tick)
	}

	return PoolKey{
		Currency0:   common.HexToAddress(row.Currency0),
		Currency1:   common.HexToAddress(row.Currency1),
		Fee:         uint32(fee),
		TickSpacing: int32(tick),
		Hooks:       hooks,
	}, nil
}
