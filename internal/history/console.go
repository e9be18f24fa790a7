package history

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/runstate"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleSink implements Sink by pretty-printing to a writer.
type ConsoleSink struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleSink creates a console sink writing to stdout.
func NewConsoleSink(logger *zap.Logger) *ConsoleSink {
	logger.Info("console-history-initialized")
	return &ConsoleSink{
		out:    os.Stdout,
		logger: logger,
	}
}

// RecordCycle pretty-prints a cycle snapshot.
func (c *ConsoleSink) RecordCycle(_ context.Context, snap *runstate.Snapshot) error {
	w := c.out

	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintf(w, "🦞 TREASURY CYCLE %s\n", shortID(snap.RunID))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Time:      %s\n", snap.LastRun)
	fmt.Fprintf(w, "Claimed:   %s primary / %s secondary\n", snap.Claimed.Primary, snap.Claimed.Secondary)
	fmt.Fprintf(w, "Buyback:   %s in → %s out\n", snap.Buyback.SecondaryIn, snap.Buyback.PrimaryOut)
	fmt.Fprintf(w, "Restaked:  %s\n", snap.Restaked)
	fmt.Fprintf(w, "Value:     $%s (APR %.2f%%)\n", snap.TotalUSDValue, snap.APR)
	if snap.Tweeted {
		fmt.Fprintf(w, "  ✅ announced\n")
	} else {
		fmt.Fprintf(w, "  ❌ not announced\n")
	}
	for _, st := range snap.Stages {
		if st.Reason != "" {
			fmt.Fprintf(w, "  %-10s %-8s %s\n", st.Name, st.Status, st.Reason)
		} else {
			fmt.Fprintf(w, "  %-10s %s\n", st.Name, st.Status)
		}
	}
	fmt.Fprintln(w, rule)

	return nil
}

// Close is a no-op for console history.
func (c *ConsoleSink) Close() error {
	c.logger.Info("closing-console-history")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
