// Package history keeps an optional log of every cycle alongside the
// single overwritten run-state file.
package history

import (
	"context"

	"github.com/moltbot/molt-treasury/internal/runstate"
)

// Sink records completed cycles.
type Sink interface {
	// RecordCycle stores one cycle snapshot.
	RecordCycle(ctx context.Context, snap *runstate.Snapshot) error

	// Close closes the sink.
	Close() error
}
