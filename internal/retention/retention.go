// Package retention purges aged entries from the message log on a cron
// schedule. Only the channel log and its id index are touched; the
// audit trail is append-only forever.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/opsdesk/sheetbridge/pkg/config"
	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/store"
)

// Start starts the retention scheduler if enabled. Returns a cancel
// func.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	if cfg.Period.Duration() <= 0 {
		return nil, fmt.Errorf("retention enabled but period missing")
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", cfg.Period.Duration().String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick for the cron expression with
// gronx and sleeps until then.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, cronExpr string) {
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
			logger.Error("retention_next_tick_failed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		if err := RunOnce(cfg); err != nil {
			logger.Error("retention_run_failed", "error", err)
		}
	}
}

// RunOnce executes a single purge pass using the configured period.
func RunOnce(cfg config.RetentionConfig) error {
	cutoff := time.Now().UTC().Add(-cfg.Period.Duration()).UnixMilli()
	n, err := store.PurgeOlderThan(cutoff)
	if err != nil {
		return err
	}
	logger.Info("retention_run_finished", "purged", n, "cutoff_ms", cutoff)
	return nil
}
