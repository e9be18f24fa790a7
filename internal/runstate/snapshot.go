// Package runstate persists the result of the most recent cycle.
package runstate

import (
	"time"
)

// TimestampLayout matches JavaScript's Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Claimed holds decimal-string amounts received from the claim.
type Claimed struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Buyback holds decimal-string amounts of the swap.
type Buyback struct {
	SecondaryIn string `json:"secondaryIn"`
	PrimaryOut  string `json:"primaryOut"`
}

// Stage records how one pipeline stage ended.
type Stage struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Snapshot is the persisted form of one cycle.
type Snapshot struct {
	RunID         string  `json:"runId"`
	LastRun       string  `json:"lastRun"`
	Claimed       Claimed `json:"claimed"`
	Buyback       Buyback `json:"buyback"`
	Restaked      string  `json:"restaked"`
	TotalUSDValue string  `json:"totalUsdValue"`
	APR           float64 `json:"apr"`
	Tweeted       bool    `json:"tweeted"`
	Stages        []Stage `json:"stages,omitempty"`
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// LastRunTime parses LastRun.
func (s *Snapshot) LastRunTime() (time.Time, error) {
	return time.Parse(TimestampLayout, s.LastRun)
}
