package notifications

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/models"
)

func TestSynthesizeIdempotencyKey_TypePrefixed(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 123456789, time.UTC)

	key := SynthesizeIdempotencyKey("u1", "daily_reminder", now)
	if !strings.HasPrefix(key, "daily_reminder_u1_") {
		t.Fatalf("key = %q, want daily_reminder_u1_ prefix", key)
	}

	// Two keyless enqueues at different instants must never collide.
	other := SynthesizeIdempotencyKey("u1", "daily_reminder", now.Add(time.Nanosecond))
	if key == other {
		t.Error("keys at different instants must differ")
	}

	// Nor can two notification types collide even at the same instant.
	if key == SynthesizeIdempotencyKey("u1", "achievement", now) {
		t.Error("keys for different types must differ")
	}
}

func TestChannelForUser(t *testing.T) {
	if got := ChannelForUser("u42"); got != "notifications:user:u42" {
		t.Errorf("ChannelForUser = %q", got)
	}
}

func TestEnqueueParams_Validation(t *testing.T) {
	cases := []struct {
		name    string
		params  EnqueueParams
		wantErr bool
	}{
		{
			name: "complete params pass",
			params: EnqueueParams{
				UserId:           "u1",
				NotificationType: "budget_exceeded",
				Title:            "Budget Alert",
				Body:             "You spent 80% of Groceries",
			},
		},
		{
			name: "missing user id fails",
			params: EnqueueParams{
				NotificationType: "budget_exceeded",
				Title:            "Budget Alert",
				Body:             "You spent 80% of Groceries",
			},
			wantErr: true,
		},
		{
			name: "missing title fails",
			params: EnqueueParams{
				UserId:           "u1",
				NotificationType: "budget_exceeded",
				Body:             "You spent 80% of Groceries",
			},
			wantErr: true,
		},
		{
			name:    "empty params fail",
			params:  EnqueueParams{},
			wantErr: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validate.Struct(c.params)
			if c.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !c.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestEnqueue_SameKeyResolvesToWinner(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	params := EnqueueParams{
		UserId:           "u1",
		NotificationType: "budget_exceeded",
		Title:            "Budget Alert",
		Body:             "You spent 80% of Groceries",
		IdempotencyKey:   "budget_alert_u1_5_2026-08",
	}

	first, err := Enqueue(ctx, params)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if !first.Queued || first.ID == 0 {
		t.Fatalf("first enqueue = %+v, want Queued=true with an id", first)
	}

	// A racing caller loses the insert but gets the winner's id back, even
	// with a different payload: the key decides, not the content.
	params.Body = "You spent 90% of Groceries"
	second, err := Enqueue(ctx, params)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if second.Queued {
		t.Error("second enqueue must report Queued=false")
	}
	if second.ID != first.ID {
		t.Errorf("second enqueue id = %d, want the winner's id %d", second.ID, first.ID)
	}

	var count int64
	if err := db.Model(&models.NotificationQueueEntry{}).
		Where("idempotency_key = ?", "budget_alert_u1_5_2026-08").
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("rows for key = %d, want exactly 1", count)
	}
}
