package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
)

func TestRequeueFailed_RequiresInternalCredentials(t *testing.T) {
	// Guard fires before any DB access, so no test database is needed.
	if _, err := RequeueFailed(context.Background(), "u1", 0, 10); err == nil {
		t.Fatal("requeue without internal credentials must be rejected")
	}
}

func TestRequeueFailed_ResetsTerminalEntries(t *testing.T) {
	db := openTestDB(t)
	ctx := utils.SetIsAdminInContext(context.Background(), true)

	msg := "push gateway down"
	lockedBy := "worker-old"
	lockedAt := time.Now().UTC().Add(-time.Hour)
	failed := models.NotificationQueueEntry{
		UserId:           "u1",
		NotificationType: "budget_exceeded",
		Title:            "t",
		Body:             "b",
		Status:           models.QueueStatusFailed,
		ScheduledFor:     lockedAt,
		IdempotencyKey:   "k-failed",
		Attempts:         3,
		ErrorMessage:     &msg,
		LockedAt:         &lockedAt,
		LockedBy:         &lockedBy,
	}
	if err := db.Create(&failed).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	count, err := RequeueFailed(ctx, "u1", 0, 10)
	if err != nil {
		t.Fatalf("RequeueFailed: %v", err)
	}
	if count != 1 {
		t.Fatalf("requeued = %d, want 1", count)
	}

	var got models.NotificationQueueEntry
	if err := db.First(&got, failed.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.QueueStatusPending {
		t.Errorf("status = %s, want PENDING", got.Status)
	}
	if got.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", got.Attempts)
	}
	if got.ErrorMessage != nil || got.LockedAt != nil || got.LockedBy != nil {
		t.Error("error and lease columns must be cleared on requeue")
	}
}
