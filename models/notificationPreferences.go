package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NotificationPreferences is the per-user opt-in/threshold configuration the
// decision functions consult. Owned by the settings UI; read-only here.
type NotificationPreferences struct {
	ID                       int             `gorm:"primary_key" json:"id"`
	UserId                   string          `gorm:"size:64;not null;uniqueIndex" json:"user_id" binding:"required"`
	BudgetAlertsEnabled      *bool           `gorm:"not null;default:true" json:"budget_alerts_enabled"`
	AnomalyAlertsEnabled     *bool           `gorm:"not null;default:true" json:"anomaly_alerts_enabled"`
	GoalAlertsEnabled        *bool           `gorm:"not null;default:true" json:"goal_alerts_enabled"`
	AchievementAlertsEnabled *bool           `gorm:"not null;default:true" json:"achievement_alerts_enabled"`
	DailyReminderEnabled     *bool           `gorm:"not null;default:false" json:"daily_reminder_enabled"`
	WarningPercent           int             `gorm:"not null;default:80" json:"warning_percent"`
	AnomalyZScore            decimal.Decimal `gorm:"type:decimal(6,2);not null;default:2" json:"anomaly_z_score"`
	QuietHoursStart          int             `gorm:"not null;default:22" json:"quiet_hours_start"`
	QuietHoursEnd            int             `gorm:"not null;default:7" json:"quiet_hours_end"`
	CreatedAt                time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func defaultPreferences(userId string) *NotificationPreferences {
	return &NotificationPreferences{
		UserId:                   userId,
		BudgetAlertsEnabled:      utils.NewTrue(),
		AnomalyAlertsEnabled:     utils.NewTrue(),
		GoalAlertsEnabled:        utils.NewTrue(),
		AchievementAlertsEnabled: utils.NewTrue(),
		DailyReminderEnabled:     utils.NewFalse(),
		WarningPercent:           80,
		AnomalyZScore:            decimal.NewFromInt(2),
		QuietHoursStart:          22,
		QuietHoursEnd:            7,
	}
}

func preferencesCacheKey(userId string) string {
	return fmt.Sprintf("prefs:%s", userId)
}

// GetNotificationPreferences returns the user's preferences, falling back to
// defaults when the user never opened the settings screen. Cached in Redis
// briefly since every decision function reads them.
func GetNotificationPreferences(ctx context.Context, userId string) (*NotificationPreferences, error) {
	var cached NotificationPreferences
	if found, err := config.GetRedisObject(preferencesCacheKey(userId), &cached); err == nil && found {
		return &cached, nil
	}

	db := config.GetDB()

	var result NotificationPreferences
	err := db.WithContext(ctx).Where("user_id = ?", userId).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultPreferences(userId), nil
	}
	if err != nil {
		return nil, err
	}

	_ = config.SetRedisObject(preferencesCacheKey(userId), result, 5*time.Minute)
	return &result, nil
}
