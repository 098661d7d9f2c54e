package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openboard/openboard/internal/apperr"
)

// memStore is an in-memory CounterStore with injectable failures, so tests
// can assert exact admit/reject boundaries deterministically.
type memStore struct {
	mu      sync.Mutex
	entries []memEntry
	daily   map[string]int // userID|endpoint|day → count

	insertErr error
	countErr  error
	incErr    error

	purgedEntries chan time.Time
	purgedUsage   chan time.Time
}

type memEntry struct {
	userID, endpoint string
	at               time.Time
}

func newMemStore() *memStore {
	return &memStore{
		daily:         make(map[string]int),
		purgedEntries: make(chan time.Time, 8),
		purgedUsage:   make(chan time.Time, 8),
	}
}

func (m *memStore) InsertEntry(_ context.Context, userID, endpoint string, now time.Time) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, memEntry{userID, endpoint, now})
	return nil
}

func (m *memStore) CountSince(_ context.Context, userID, endpoint string, since time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entries {
		if e.userID == userID && e.endpoint == endpoint && !e.at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) IncrementDaily(_ context.Context, userID, endpoint string, day time.Time) (int, error) {
	if m.incErr != nil {
		return 0, m.incErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + endpoint + "|" + day.Format("2006-01-02")
	m.daily[key]++
	return m.daily[key], nil
}

func (m *memStore) PurgeEntriesBefore(_ context.Context, cutoff time.Time) error {
	m.purgedEntries <- cutoff
	return nil
}

func (m *memStore) PurgeUsageBefore(_ context.Context, cutoff time.Time) error {
	m.purgedUsage <- cutoff
	return nil
}

// newController returns a controller pinned to a fixed clock with sweeping
// disabled unless the test opts in.
func newController(store CounterStore, at time.Time) *Controller {
	c := NewController(store)
	c.now = func() time.Time { return at }
	c.chance = func() float64 { return 1.0 } // never sweep
	return c
}

func TestAdmit_AllowsUpToLimit(t *testing.T) {
	store := newMemStore()
	c := newController(store, time.Now())

	for i := 0; i < 3; i++ {
		if err := c.Admit(context.Background(), "u1", "create-card", 3, time.Minute); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}

	err := c.Admit(context.Background(), "u1", "create-card", 3, time.Minute)
	var rl *apperr.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("request 4 = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter != time.Minute {
		t.Errorf("retry hint = %s, want window length 1m", rl.RetryAfter)
	}
}

func TestAdmit_WindowSlides(t *testing.T) {
	store := newMemStore()
	base := time.Now()
	c := newController(store, base)

	for i := 0; i < 3; i++ {
		if err := c.Admit(context.Background(), "u1", "create-card", 3, time.Minute); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}

	// Two minutes later the earlier entries are outside the window.
	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if err := c.Admit(context.Background(), "u1", "create-card", 3, time.Minute); err != nil {
		t.Errorf("request after window slide rejected: %v", err)
	}
}

func TestAdmit_KeysAreIndependent(t *testing.T) {
	store := newMemStore()
	c := newController(store, time.Now())

	if err := c.Admit(context.Background(), "u1", "create-card", 1, time.Minute); err != nil {
		t.Fatalf("u1 first request rejected: %v", err)
	}
	if err := c.Admit(context.Background(), "u2", "create-card", 1, time.Minute); err != nil {
		t.Errorf("u2 should have its own window: %v", err)
	}
	if err := c.Admit(context.Background(), "u1", "other-endpoint", 1, time.Minute); err != nil {
		t.Errorf("endpoints should have their own windows: %v", err)
	}
}

func TestAdmit_FailsOpenOnStoreErrors(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("connection refused")
	c := newController(store, time.Now())

	if err := c.Admit(context.Background(), "u1", "create-card", 1, time.Minute); err != nil {
		t.Errorf("insert failure must fail open, got %v", err)
	}

	store.insertErr = nil
	store.countErr = errors.New("connection refused")
	if err := c.Admit(context.Background(), "u1", "create-card", 1, time.Minute); err != nil {
		t.Errorf("count failure must fail open, got %v", err)
	}
}

func TestAdmitDaily_QuotaBoundary(t *testing.T) {
	store := newMemStore()
	day := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	c := newController(store, day)

	for i := 0; i < 10; i++ {
		if err := c.AdmitDaily(context.Background(), "u1", "generate-audio", 10); err != nil {
			t.Fatalf("call %d rejected: %v", i+1, err)
		}
	}

	if err := c.AdmitDaily(context.Background(), "u1", "generate-audio", 10); !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Fatalf("call 11 = %v, want ErrQuotaExceeded", err)
	}

	// The next calendar day starts a fresh counter.
	c.now = func() time.Time { return day.AddDate(0, 0, 1) }
	if err := c.AdmitDaily(context.Background(), "u1", "generate-audio", 10); err != nil {
		t.Errorf("next-day call rejected: %v", err)
	}
}

func TestAdmitDaily_FailsOpen(t *testing.T) {
	store := newMemStore()
	store.incErr = errors.New("connection refused")
	c := newController(store, time.Now())

	if err := c.AdmitDaily(context.Background(), "u1", "generate-audio", 1); err != nil {
		t.Errorf("increment failure must fail open, got %v", err)
	}
}

func TestAdmitGlobalDaily_SharesOneCounter(t *testing.T) {
	store := newMemStore()
	c := newController(store, time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC))

	if err := c.AdmitGlobalDaily(context.Background(), "generate-audio", 1); err != nil {
		t.Fatalf("first global call rejected: %v", err)
	}
	// A different "caller" hits the same breaker.
	if err := c.AdmitGlobalDaily(context.Background(), "generate-audio", 1); !errors.Is(err, apperr.ErrQuotaExceeded) {
		t.Errorf("second global call = %v, want ErrQuotaExceeded", err)
	}
}

func TestSweepPurgesBothRetentionHorizons(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	c := newController(store, now)
	c.chance = func() float64 { return 0.0 } // always sweep

	if err := c.Admit(context.Background(), "u1", "create-card", 10, time.Minute); err != nil {
		t.Fatalf("admit rejected: %v", err)
	}

	select {
	case cutoff := <-store.purgedEntries:
		if want := now.Add(-entryRetention); !cutoff.Equal(want) {
			t.Errorf("entry cutoff = %s, want %s", cutoff, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never purged rate limit entries")
	}

	select {
	case cutoff := <-store.purgedUsage:
		if want := now.Add(-usageRetention); !cutoff.Equal(want) {
			t.Errorf("usage cutoff = %s, want %s", cutoff, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never purged daily usage")
	}
}
