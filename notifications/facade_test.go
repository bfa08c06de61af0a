package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/models"
)

func TestPending_CountsProcessingAsUndelivered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	q := NewQueueClient(quietLogger())

	now := time.Now().UTC()
	workerId := "worker-test"
	rows := []models.NotificationQueueEntry{
		{UserId: "u1", NotificationType: "budget_exceeded", Title: "t", Body: "b",
			Status: models.QueueStatusPending, ScheduledFor: now, IdempotencyKey: "k-pending"},
		{UserId: "u1", NotificationType: "budget_exceeded", Title: "t", Body: "b",
			Status: models.QueueStatusProcessing, ScheduledFor: now,
			IdempotencyKey: "k-inflight", LockedAt: &now, LockedBy: &workerId},
		{UserId: "u1", NotificationType: "budget_exceeded", Title: "t", Body: "b",
			Status: models.QueueStatusSent, ScheduledFor: now, IdempotencyKey: "k-sent"},
		{UserId: "u2", NotificationType: "budget_exceeded", Title: "t", Body: "b",
			Status: models.QueueStatusPending, ScheduledFor: now, IdempotencyKey: "k-other-user"},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// A claimed entry is still undelivered from the client's point of view.
	entries, err := q.Pending(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Pending returned %d entries, want 2 (PENDING + PROCESSING)", len(entries))
	}

	stats, err := q.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != int64(len(entries)) {
		t.Errorf("stats.Pending = %d but Pending listed %d entries; the two views must agree", stats.Pending, len(entries))
	}
	if stats.Sent != 1 {
		t.Errorf("stats.Sent = %d, want 1", stats.Sent)
	}
}
