package notifications

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/sirupsen/logrus"
)

// NOTE: The state-machine tests are intentionally DB-free. Lease handling
// runs against the in-memory database from openTestDB; the batch claim query
// itself (SKIP LOCKED) needs an environment that can run MySQL.

func TestBackoffDelay_IsExponentialInAttempts(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 1, want: 2 * time.Minute},
		{attempts: 2, want: 4 * time.Minute},
		{attempts: 3, want: 8 * time.Minute},
		{attempts: 4, want: 16 * time.Minute},
		// Never less than one attempt's worth of delay.
		{attempts: 0, want: 2 * time.Minute},
		{attempts: -1, want: 2 * time.Minute},
	}
	for _, c := range cases {
		if got := backoffDelay(c.attempts); got != c.want {
			t.Errorf("backoffDelay(%d) = %s, want %s", c.attempts, got, c.want)
		}
	}
}

func TestDecideRetry_DefaultThreeAttempts(t *testing.T) {
	const maxAttempts = 3

	// First failure: attempt 1, retry in 2 minutes.
	first := decideRetry(0, maxAttempts)
	if first.Terminal {
		t.Fatal("first failure must not be terminal")
	}
	if first.Attempts != 1 {
		t.Fatalf("first failure attempts = %d, want 1", first.Attempts)
	}
	if first.Delay != 2*time.Minute {
		t.Fatalf("first failure delay = %s, want 2m", first.Delay)
	}

	// Second failure: attempt 2, retry in 4 minutes.
	second := decideRetry(first.Attempts, maxAttempts)
	if second.Terminal {
		t.Fatal("second failure must not be terminal")
	}
	if second.Attempts != 2 {
		t.Fatalf("second failure attempts = %d, want 2", second.Attempts)
	}
	if second.Delay != 4*time.Minute {
		t.Fatalf("second failure delay = %s, want 4m", second.Delay)
	}

	// Third failure exhausts the budget.
	third := decideRetry(second.Attempts, maxAttempts)
	if !third.Terminal {
		t.Fatal("third failure must be terminal")
	}
	if third.Attempts != 3 {
		t.Fatalf("third failure attempts = %d, want 3", third.Attempts)
	}
}

func TestDecideRetry_SingleAttempt(t *testing.T) {
	d := decideRetry(0, 1)
	if !d.Terminal {
		t.Fatal("maxAttempts=1 must go terminal on the first failure")
	}
	if d.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", d.Attempts)
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRenewLease_KeepsInFlightEntryOutOfStaleReclaim(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := NewProcessor(db, quietLogger(), nil)

	// Claimed long enough ago that the row would be reclaimed as stale if the
	// lease were never renewed mid-batch.
	staleAt := time.Now().UTC().Add(-p.LockTTL - time.Minute)
	mine := models.NotificationQueueEntry{
		UserId:           "u1",
		NotificationType: "budget_exceeded",
		Title:            "t",
		Body:             "b",
		Status:           models.QueueStatusProcessing,
		ScheduledFor:     staleAt,
		IdempotencyKey:   "k-mine",
		LockedAt:         &staleAt,
		LockedBy:         &p.WorkerID,
	}
	if err := db.Create(&mine).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	otherWorker := "worker-other"
	theirs := models.NotificationQueueEntry{
		UserId:           "u1",
		NotificationType: "budget_exceeded",
		Title:            "t",
		Body:             "b",
		Status:           models.QueueStatusProcessing,
		ScheduledFor:     staleAt,
		IdempotencyKey:   "k-theirs",
		LockedAt:         &staleAt,
		LockedBy:         &otherWorker,
	}
	if err := db.Create(&theirs).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := p.renewLease(ctx, &mine); err != nil {
		t.Fatalf("renewLease: %v", err)
	}

	// The renewed row must no longer satisfy the stale-reclaim predicate.
	staleBefore := time.Now().UTC().Add(-p.LockTTL)
	var reclaimable int64
	if err := db.Model(&models.NotificationQueueEntry{}).
		Where("id = ? AND status = ? AND locked_at IS NOT NULL AND locked_at <= ?",
			mine.ID, models.QueueStatusProcessing, staleBefore).
		Count(&reclaimable).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if reclaimable != 0 {
		t.Error("renewed entry still matches the stale-reclaim predicate")
	}

	// Another worker's lease is not ours to refresh.
	if err := p.renewLease(ctx, &theirs); err == nil {
		t.Error("renewing another worker's lease must fail")
	}
	var got models.NotificationQueueEntry
	if err := db.First(&got, theirs.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.LockedAt == nil || !got.LockedAt.Before(staleBefore) {
		t.Error("another worker's locked_at must be untouched")
	}
}
