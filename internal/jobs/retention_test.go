package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingPurger struct {
	mu       sync.Mutex
	entryCut []time.Time
	usageCut []time.Time
	entryErr error
	usageErr error
}

func (p *recordingPurger) PurgeEntriesBefore(_ context.Context, cutoff time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryCut = append(p.entryCut, cutoff)
	return p.entryErr
}

func (p *recordingPurger) PurgeUsageBefore(_ context.Context, cutoff time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usageCut = append(p.usageCut, cutoff)
	return p.usageErr
}

func TestRetentionRun_PurgesBothHorizons(t *testing.T) {
	purger := &recordingPurger{}
	job := NewRetentionJob(purger, nil)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	job.Run(context.Background())

	if len(purger.entryCut) != 1 || !purger.entryCut[0].Equal(now.Add(-entryRetention)) {
		t.Errorf("entry cutoffs = %v, want one at %s", purger.entryCut, now.Add(-entryRetention))
	}
	if len(purger.usageCut) != 1 || !purger.usageCut[0].Equal(now.Add(-usageRetention)) {
		t.Errorf("usage cutoffs = %v, want one at %s", purger.usageCut, now.Add(-usageRetention))
	}
}

func TestRetentionRun_UsagePurgeRunsAfterEntryFailure(t *testing.T) {
	purger := &recordingPurger{entryErr: errors.New("connection refused")}
	job := NewRetentionJob(purger, nil)

	job.Run(context.Background())

	if len(purger.usageCut) != 1 {
		t.Errorf("usage purge ran %d times, want 1 even when entry purge fails", len(purger.usageCut))
	}
}

func TestRetentionStart_StopsOnCancel(t *testing.T) {
	purger := &recordingPurger{}
	job := NewRetentionJob(purger, nil)
	job.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		purger.mu.Lock()
		n := len(purger.entryCut)
		purger.mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never ticked")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	purger.mu.Lock()
	n := len(purger.entryCut)
	purger.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	purger.mu.Lock()
	after := len(purger.entryCut)
	purger.mu.Unlock()

	if after > n+1 {
		t.Errorf("purges kept running after cancel: %d -> %d", n, after)
	}
}
