// Package monitor defines the change-detection contract both platform
// monitors implement: block on a native notification primitive, then call
// back into the sync engine.
package monitor

import (
	"context"
	"log/slog"
	"time"
)

// Engine is the subset of syncengine.Engine a monitor needs, kept narrow so
// monitor packages don't import syncengine directly.
type Engine interface {
	HandleDeviceChange(ctx context.Context, adapterMac, deviceMac string) error
	HandleDeviceRemoval(adapterMac, deviceMac string)
	ReverseCheck(ctx context.Context) error
}

// RetryBackoff is the sleep-and-retry delay after a transient monitor
// error, per the failure model's "monitor errors are transient" policy.
const RetryBackoff = 5 * time.Second

// ReverseCheckInterval is the default period for the reverse-check tick.
const ReverseCheckInterval = 30 * time.Second

// RunReverseCheckTicker calls eng.ReverseCheck every interval until ctx is
// canceled. Shared by both platform monitors.
func RunReverseCheckTicker(ctx context.Context, eng Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := eng.ReverseCheck(ctx); err != nil {
				slog.Default().Warn("reverse check failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
