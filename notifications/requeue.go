package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
	"github.com/sirupsen/logrus"
)

// RequeueFailed flips terminally FAILED entries back to PENDING with reset
// attempts. Operator tooling for replay after a gateway outage; never runs
// automatically, and only callers authenticated as internal ops may run it.
func RequeueFailed(ctx context.Context, userId string, olderThan time.Duration, limit int) (int64, error) {
	if !utils.IsAdminFromContext(ctx) {
		return 0, errors.New("requeue requires internal credentials")
	}

	db := config.GetDB()
	now := time.Now().UTC()
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	q := db.WithContext(ctx).Model(&models.NotificationQueueEntry{}).
		Where("status = ?", models.QueueStatusFailed)
	if userId != "" {
		q = q.Where("user_id = ?", userId)
	}
	if olderThan > 0 {
		q = q.Where("updated_at <= ?", now.Add(-olderThan))
	}

	res := q.Limit(limit).Updates(map[string]interface{}{
		"status":        models.QueueStatusPending,
		"attempts":      0,
		"scheduled_for": now,
		"error_message": nil,
		"locked_at":     nil,
		"locked_by":     nil,
	})
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		config.GetLogger().WithFields(logrus.Fields{
			"field":          "RequeueFailed",
			"user_id":        userId,
			"requeued":       res.RowsAffected,
			"correlation_id": correlationId(ctx),
		}).Info("requeued failed notifications")
	}
	return res.RowsAffected, nil
}
