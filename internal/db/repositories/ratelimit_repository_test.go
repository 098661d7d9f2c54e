package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newRateLimitRepo(t *testing.T) (*RateLimitRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRateLimitRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestInsertEntry(t *testing.T) {
	repo, mock := newRateLimitRepo(t)
	now := time.Now()
	mock.ExpectExec("INSERT INTO rate_limit_log").
		WithArgs(sqlmock.AnyArg(), "u-1", "generate-audio", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.InsertEntry(context.Background(), "u-1", "generate-audio", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCountSince(t *testing.T) {
	repo, mock := newRateLimitRepo(t)
	since := time.Now().Add(-time.Minute)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM rate_limit_log").
		WithArgs("u-1", "generate-audio", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountSince(context.Background(), "u-1", "generate-audio", since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestIncrementDaily_ReturnsPostIncrementCount(t *testing.T) {
	repo, mock := newRateLimitRepo(t)
	day := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO daily_usage.*ON CONFLICT.*DO UPDATE.*RETURNING count").
		WithArgs("u-1", "generate-audio", "2026-08-29").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	count, err := repo.IncrementDaily(context.Background(), "u-1", "generate-audio", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 11 {
		t.Errorf("count = %d, want 11", count)
	}
}

func TestPurges(t *testing.T) {
	repo, mock := newRateLimitRepo(t)
	cutoff := time.Now().Add(-5 * time.Minute)
	mock.ExpectExec("DELETE FROM rate_limit_log WHERE created_at").
		WillReturnResult(sqlmock.NewResult(0, 42))
	mock.ExpectExec("DELETE FROM daily_usage WHERE usage_date").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.PurgeEntriesBefore(context.Background(), cutoff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.PurgeUsageBefore(context.Background(), cutoff.AddDate(0, 0, -7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
