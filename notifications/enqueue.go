package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// EnqueueParams describes one notification to queue.
// IdempotencyKey is optional for fire-and-forget callers; decision functions
// always pass a deterministic key derived from the business fact.
type EnqueueParams struct {
	UserId           string          `json:"user_id" validate:"required"`
	NotificationType string          `json:"notification_type" validate:"required"`
	Title            string          `json:"title" validate:"required"`
	Body             string          `json:"body" validate:"required"`
	Data             json.RawMessage `json:"data"`
	ScheduledFor     *time.Time      `json:"scheduled_for"`
	IdempotencyKey   string          `json:"idempotency_key"`
	MaxAttempts      int             `json:"max_attempts"`
}

type EnqueueResult struct {
	Queued bool `json:"queued"`
	ID     int  `json:"id"`
}

// ChannelForUser is the Redis Pub/Sub channel carrying a user's newly
// enqueued notifications to facade subscribers.
func ChannelForUser(userId string) string {
	return "notifications:user:" + userId
}

// correlationId resolves the request's correlation id for log fields, empty
// when the caller carries none (background loops).
func correlationId(ctx context.Context) string {
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	return cid
}

// SynthesizeIdempotencyKey builds a key for callers that did not supply one.
// Type-prefixed so an accidental collision across notification types cannot
// happen even for keyless callers.
func SynthesizeIdempotencyKey(userId, notificationType string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", notificationType, userId, now.UnixNano())
}

// Enqueue inserts a queue entry, at most once per idempotency key. Racing
// callers on the same key all succeed: exactly one row is created, the rest
// observe Queued=false with the winner's id. This is the one hard atomicity
// guarantee in the pipeline and it rests entirely on the unique index.
func Enqueue(ctx context.Context, params EnqueueParams) (*EnqueueResult, error) {
	if err := validate.Struct(params); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := params.IdempotencyKey
	if key == "" {
		key = SynthesizeIdempotencyKey(params.UserId, params.NotificationType, now)
	}

	scheduledFor := now
	if params.ScheduledFor != nil && params.ScheduledFor.After(now) {
		scheduledFor = params.ScheduledFor.UTC()
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}

	entry := models.NotificationQueueEntry{
		UserId:           params.UserId,
		NotificationType: params.NotificationType,
		Title:            params.Title,
		Body:             params.Body,
		Data:             params.Data,
		Status:           models.QueueStatusPending,
		ScheduledFor:     scheduledFor,
		MaxAttempts:      maxAttempts,
		IdempotencyKey:   key,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&entry).Error
	if err == nil {
		// Realtime fan-out is best effort; the row is already durable.
		_ = config.PublishRedisObject(ctx, ChannelForUser(entry.UserId), entry)
		// The cached stats no longer reflect the queue.
		_ = config.RemoveRedisKey(statsCacheKey(entry.UserId))
		return &EnqueueResult{Queued: true, ID: entry.ID}, nil
	}
	if !utils.IsDuplicateKeyErr(err) {
		return nil, err
	}

	var existing models.NotificationQueueEntry
	if err := db.WithContext(ctx).
		Select("id").
		Where("idempotency_key = ?", key).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return &EnqueueResult{Queued: false, ID: existing.ID}, nil
}
