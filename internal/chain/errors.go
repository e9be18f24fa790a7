package chain

import "errors"

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

var (
	ErrUnreachable   = errors.New("rpc endpoint unreachable")
	ErrChainMismatch = errors.New("chain id mismatch")
)
