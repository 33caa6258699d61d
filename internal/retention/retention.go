// Package retention schedules tombstone sweeps on the embedded
// collection. Removed documents leave tombstones behind so reconnecting
// subscribers can distinguish "deleted" from "never seen"; after the TTL
// the distinction no longer matters and the tombstones are purged.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"retrolog/pkg/collection"
	"retrolog/pkg/config"
	"retrolog/pkg/logger"
)

// Start launches the sweep scheduler if enabled. Returns a cancel func;
// a no-op cancel when retention is disabled.
func Start(ctx context.Context, cfg config.RetentionConfig, col *collection.Pebble) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	// map empty cron to default daily @02:00
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}
	ttl := config.ParseDuration(cfg.TombstoneTTL, 720*time.Hour)

	logger.Info("retention_enabled", "cron", cronExpr, "ttl", ttl.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, ttl, col)
	return cancel, nil
}

// runScheduler computes the next tick with gronx and sleeps until then.
func runScheduler(ctx context.Context, cronExpr string, ttl time.Duration, col *collection.Pebble) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "err", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			runOnce(ttl, col)
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

func runOnce(ttl time.Duration, col *collection.Pebble) {
	cutoff := time.Now().UTC().Add(-ttl)
	n, err := col.SweepTombstones(cutoff)
	if err != nil {
		logger.Error("retention_sweep_failed", "err", err)
		return
	}
	logger.Info("retention_sweep_done", "purged", n, "cutoff", cutoff.Format(time.RFC3339))
}
