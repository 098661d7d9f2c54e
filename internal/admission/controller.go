// Package admission decides whether a request may proceed under load,
// combining a sliding-window limiter with per-day quotas backed by a shared
// counter store.
//
// The sliding window is insert-then-count: each call records one row, then
// counts rows for the same (user, endpoint) inside the trailing window. The
// two steps are deliberately not atomic — two simultaneous requests can each
// insert and both observe a count at the limit, admitting one request too
// many. That tolerance is accepted: the limiter exists for abuse mitigation,
// not hard guarantees, and the atomic alternative would put a lock or a
// serializable transaction on every request.
//
// The daily quota is the opposite: its increment is a single atomic upsert
// returning the post-increment count, because a quota that can be raced past
// is not a quota. A reserved shared user id turns the same mechanism into a
// global circuit breaker for an endpoint.
//
// Admission fails OPEN: if the counter store is unreachable the request is
// allowed. Blocking all traffic on a rate-limiter dependency outage would
// invert the component's purpose.
package admission

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/safego"
	"github.com/openboard/openboard/internal/telemetry"
)

// GlobalUserID is the reserved counter key for cross-user circuit breakers.
// No real user id can collide with it.
const GlobalUserID = "__global__"

const (
	// entryRetention is how long sliding-window rows are kept.
	entryRetention = 5 * time.Minute
	// usageRetention is how long daily usage rows are kept.
	usageRetention = 7 * 24 * time.Hour
	// sweepProbability is the chance any single admission call triggers the
	// opportunistic cleanup sweep.
	sweepProbability = 0.05
	// sweepTimeout bounds the background sweep so it cannot pile up.
	sweepTimeout = 10 * time.Second
)

// CounterStore is the shared counter storage admission decisions read and
// write. Implemented by repositories.RateLimitRepository; tests substitute a
// fake to assert exact admit/reject boundaries.
type CounterStore interface {
	InsertEntry(ctx context.Context, userID, endpoint string, now time.Time) error
	CountSince(ctx context.Context, userID, endpoint string, since time.Time) (int, error)
	IncrementDaily(ctx context.Context, userID, endpoint string, day time.Time) (int, error)
	PurgeEntriesBefore(ctx context.Context, cutoff time.Time) error
	PurgeUsageBefore(ctx context.Context, cutoff time.Time) error
}

// Controller makes admission decisions.
type Controller struct {
	store CounterStore

	// now and chance are injectable for deterministic tests.
	now    func() time.Time
	chance func() float64
}

// NewController creates a Controller over the given counter store.
func NewController(store CounterStore) *Controller {
	return &Controller{
		store:  store,
		now:    time.Now,
		chance: rand.Float64,
	}
}

// Admit applies the sliding-window limit for (userID, endpoint): at most
// maxRequests within the trailing window. Returns nil when admitted, or a
// RateLimitedError whose retry hint equals the window length.
func (c *Controller) Admit(ctx context.Context, userID, endpoint string, maxRequests int, window time.Duration) error {
	now := c.now()
	defer c.maybeSweep()

	if err := c.store.InsertEntry(ctx, userID, endpoint, now); err != nil {
		slog.Warn("admission insert failed, failing open", "endpoint", endpoint, "error", err)
		telemetry.AdmissionDecisions.WithLabelValues(endpoint, "fail_open").Inc()
		return nil
	}

	count, err := c.store.CountSince(ctx, userID, endpoint, now.Add(-window))
	if err != nil {
		slog.Warn("admission count failed, failing open", "endpoint", endpoint, "error", err)
		telemetry.AdmissionDecisions.WithLabelValues(endpoint, "fail_open").Inc()
		return nil
	}

	if count > maxRequests {
		telemetry.AdmissionDecisions.WithLabelValues(endpoint, "rate_limited").Inc()
		return apperr.RateLimited(window)
	}

	telemetry.AdmissionDecisions.WithLabelValues(endpoint, "allowed").Inc()
	return nil
}

// AdmitDaily applies the per-calendar-day quota for (userID, endpoint).
func (c *Controller) AdmitDaily(ctx context.Context, userID, endpoint string, maxPerDay int) error {
	defer c.maybeSweep()

	count, err := c.store.IncrementDaily(ctx, userID, endpoint, c.now())
	if err != nil {
		slog.Warn("daily quota increment failed, failing open", "endpoint", endpoint, "error", err)
		telemetry.AdmissionDecisions.WithLabelValues(endpoint, "fail_open").Inc()
		return nil
	}

	if count > maxPerDay {
		telemetry.AdmissionDecisions.WithLabelValues(endpoint, "quota_exceeded").Inc()
		return apperr.ErrQuotaExceeded
	}

	telemetry.AdmissionDecisions.WithLabelValues(endpoint, "allowed").Inc()
	return nil
}

// AdmitGlobalDaily applies a cross-user daily cap on the endpoint — the
// operator's single dial for shutting off an expensive operation entirely.
func (c *Controller) AdmitGlobalDaily(ctx context.Context, endpoint string, maxPerDay int) error {
	return c.AdmitDaily(ctx, GlobalUserID, endpoint, maxPerDay)
}

// maybeSweep occasionally kicks off the retention sweep in the background.
// Sweep outcomes never influence an admission decision.
func (c *Controller) maybeSweep() {
	if c.chance() >= sweepProbability {
		return
	}
	now := c.now()
	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		c.sweep(ctx, now)
	})
}

func (c *Controller) sweep(ctx context.Context, now time.Time) {
	if err := c.store.PurgeEntriesBefore(ctx, now.Add(-entryRetention)); err != nil {
		slog.Debug("rate limit sweep failed", "error", err)
	}
	if err := c.store.PurgeUsageBefore(ctx, now.Add(-usageRetention)); err != nil {
		slog.Debug("daily usage sweep failed", "error", err)
	}
}
