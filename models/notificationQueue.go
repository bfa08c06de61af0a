package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
)

type QueueStatus = string

const (
	QueueStatusPending    QueueStatus = "PENDING"
	QueueStatusProcessing QueueStatus = "PROCESSING"
	QueueStatusSent       QueueStatus = "SENT"
	QueueStatusFailed     QueueStatus = "FAILED"
)

type NotificationType = string

const (
	NotificationTypeBudgetExceeded  NotificationType = "budget_exceeded"
	NotificationTypeUnusualSpending NotificationType = "unusual_spending"
	NotificationTypeGoalProgress    NotificationType = "goal_progress"
	NotificationTypeAchievement     NotificationType = "achievement"
	NotificationTypeDailyReminder   NotificationType = "daily_reminder"
)

const DefaultMaxAttempts = 3

// NotificationQueueEntry is one notification awaiting or having completed
// delivery. Rows are claimed by the processor (PROCESSING + lease columns)
// before delivery so overlapping processor runs never double-send.
type NotificationQueueEntry struct {
	ID               int             `gorm:"primary_key;index:idx_queue_claim,priority:3" json:"id"`
	UserId           string          `gorm:"size:64;not null;index" json:"user_id"`
	NotificationType string          `gorm:"size:32;not null" json:"notification_type"`
	Title            string          `gorm:"size:255;not null" json:"title"`
	Body             string          `gorm:"type:text;not null" json:"body"`
	Data             json.RawMessage `gorm:"type:blob" json:"data"`
	Status           QueueStatus     `gorm:"size:20;not null;default:'PENDING';index:idx_queue_claim,priority:1" json:"status"`
	ScheduledFor     time.Time       `gorm:"not null;index:idx_queue_claim,priority:2" json:"scheduled_for"`
	Attempts         int             `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts      int             `gorm:"not null;default:3" json:"max_attempts"`
	IdempotencyKey   string          `gorm:"size:255;not null;uniqueIndex" json:"idempotency_key"`
	LockedAt         *time.Time      `gorm:"index" json:"locked_at"`
	LockedBy         *string         `gorm:"size:100" json:"locked_by"`
	LastAttemptAt    *time.Time      `json:"last_attempt_at"`
	ErrorMessage     *string         `gorm:"type:text" json:"error_message"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetQueueEntry loads one entry by id.
func GetQueueEntry(ctx context.Context, id int) (*NotificationQueueEntry, error) {
	db := config.GetDB()

	var result NotificationQueueEntry
	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// GetPendingQueueEntries returns a user's undelivered notifications, oldest
// first. PROCESSING rows are still undelivered, so they count as pending here
// just as they do in GetQueueStats.
func GetPendingQueueEntries(ctx context.Context, userId string, limit int) ([]*NotificationQueueEntry, error) {
	db := config.GetDB()
	if limit <= 0 {
		limit = 50
	}

	var results []*NotificationQueueEntry
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userId, []QueueStatus{QueueStatusPending, QueueStatusProcessing}).
		Order("scheduled_for ASC, id ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}

// QueueStats is a per-user status breakdown for the client facade.
type QueueStats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

func GetQueueStats(ctx context.Context, userId string) (*QueueStats, error) {
	db := config.GetDB()

	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := db.WithContext(ctx).Model(&NotificationQueueEntry{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userId).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{}
	for _, r := range rows {
		switch r.Status {
		case QueueStatusPending, QueueStatusProcessing:
			stats.Pending += r.N
		case QueueStatusSent:
			stats.Sent += r.N
		case QueueStatusFailed:
			stats.Failed += r.N
		}
	}
	return stats, nil
}
