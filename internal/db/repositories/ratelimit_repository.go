// ratelimit_repository.go implements RateLimitRepository, the shared counter
// store behind admission control: sliding-window log rows and atomic daily
// usage upserts.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RateLimitRepository handles the ephemeral admission-control tables. It
// satisfies admission.CounterStore.
type RateLimitRepository struct {
	db *sqlx.DB
}

// NewRateLimitRepository creates a new rate limit repository.
func NewRateLimitRepository(db *sqlx.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// InsertEntry records one sliding-window event for (userID, endpoint) at now.
func (r *RateLimitRepository) InsertEntry(ctx context.Context, userID, endpoint string, now time.Time) error {
	query := `INSERT INTO rate_limit_log (id, user_id, endpoint, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), userID, endpoint, now); err != nil {
		return fmt.Errorf("failed to insert rate limit entry: %w", err)
	}

	return nil
}

// CountSince counts events for (userID, endpoint) at or after since,
// inclusive of any row just inserted by the same request.
func (r *RateLimitRepository) CountSince(ctx context.Context, userID, endpoint string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM rate_limit_log WHERE user_id = $1 AND endpoint = $2 AND created_at >= $3`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, endpoint, since); err != nil {
		return 0, fmt.Errorf("failed to count rate limit entries: %w", err)
	}

	return count, nil
}

// IncrementDaily bumps the (userID, endpoint, day) counter and returns the
// post-increment value. Insert and increment happen in one atomic upsert so
// concurrent callers each observe a distinct count.
func (r *RateLimitRepository) IncrementDaily(ctx context.Context, userID, endpoint string, day time.Time) (int, error) {
	query := `
		INSERT INTO daily_usage (user_id, endpoint, usage_date, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, endpoint, usage_date) DO UPDATE
		SET count = daily_usage.count + 1
		RETURNING count
	`

	var count int
	err := r.db.QueryRowxContext(ctx, query, userID, endpoint, day.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily usage: %w", err)
	}

	return count, nil
}

// PurgeEntriesBefore deletes sliding-window rows older than cutoff.
func (r *RateLimitRepository) PurgeEntriesBefore(ctx context.Context, cutoff time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_log WHERE created_at < $1`, cutoff); err != nil {
		return fmt.Errorf("failed to purge rate limit entries: %w", err)
	}

	return nil
}

// PurgeUsageBefore deletes daily usage rows for days before cutoff.
func (r *RateLimitRepository) PurgeUsageBefore(ctx context.Context, cutoff time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM daily_usage WHERE usage_date < $1`, cutoff.Format("2006-01-02")); err != nil {
		return fmt.Errorf("failed to purge daily usage: %w", err)
	}

	return nil
}
