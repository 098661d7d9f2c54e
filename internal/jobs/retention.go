// Package jobs contains background workers that run on a schedule. Jobs are
// idempotent, so re-running after a crash produces the same result as a clean
// run.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/openboard/openboard/internal/safego"
)

const (
	// retentionInterval is how often the purge runs. The admission controller
	// also sweeps opportunistically on a small fraction of requests; this job
	// guarantees the tables shrink even on an idle deployment.
	retentionInterval = time.Hour

	// entryRetention and usageRetention are deliberately much looser than the
	// horizons the admission sweep enforces (minutes for window entries, a
	// week for daily usage). Correctness lives in the sweep; this job only
	// bounds table growth on idle deployments, and the slack keeps recent
	// rows around for operators to inspect.
	entryRetention = 24 * time.Hour

	usageRetention = 30 * 24 * time.Hour
)

// CounterPurger is the subset of the rate-limit repository the job needs.
type CounterPurger interface {
	PurgeEntriesBefore(ctx context.Context, cutoff time.Time) error
	PurgeUsageBefore(ctx context.Context, cutoff time.Time) error
}

// RetentionJob periodically deletes expired rate-limit counter rows.
type RetentionJob struct {
	store    CounterPurger
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewRetentionJob creates the job. A nil logger falls back to slog.Default.
func NewRetentionJob(store CounterPurger, logger *slog.Logger) *RetentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionJob{
		store:    store,
		logger:   logger,
		interval: retentionInterval,
		now:      time.Now,
	}
}

// Start launches the purge loop in a background goroutine. The loop runs one
// purge immediately, then on every tick, until ctx is cancelled.
func (j *RetentionJob) Start(ctx context.Context) {
	safego.Go(func() {
		j.Run(ctx)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Run(ctx)
			}
		}
	})
}

// Run executes one purge pass. Failures are logged, never fatal; the next
// tick retries.
func (j *RetentionJob) Run(ctx context.Context) {
	now := j.now()

	if err := j.store.PurgeEntriesBefore(ctx, now.Add(-entryRetention)); err != nil {
		j.logger.Warn("rate limit entry purge failed", "error", err)
	}
	if err := j.store.PurgeUsageBefore(ctx, now.Add(-usageRetention)); err != nil {
		j.logger.Warn("daily usage purge failed", "error", err)
	}
}
