package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type BudgetAlertResult struct {
	Skipped    string          `json:"skipped,omitempty"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	Limit      decimal.Decimal `json:"limit"`
	Percentage decimal.Decimal `json:"percentage"`
	Queued     bool            `json:"queued"`
	QueueId    int             `json:"queue_id,omitempty"`
}

// BudgetAlertKey scopes the idempotency key to (user, category, month): at
// most one budget alert per category per calendar month, however many
// expenses cross the threshold.
func BudgetAlertKey(userId string, categoryId int, date time.Time) string {
	return fmt.Sprintf("budget_%s_%d_%s", userId, categoryId, date.UTC().Format("2006-01"))
}

// budgetUsagePercent is totalSpent/limit*100, zero when the limit is zero.
func budgetUsagePercent(totalSpent, limit decimal.Decimal) decimal.Decimal {
	if limit.IsZero() {
		return decimal.Zero
	}
	return totalSpent.Div(limit).Mul(decimal.NewFromInt(100))
}

// EvaluateBudgetAlert runs after an expense is recorded: sums the category's
// month-to-date spend and enqueues a budget_exceeded notification when it
// crosses the user's warning percentage.
func EvaluateBudgetAlert(ctx context.Context, userId string, categoryId int, date time.Time) (*BudgetAlertResult, error) {
	prefs, err := models.GetNotificationPreferences(ctx, userId)
	if err != nil {
		return nil, err
	}
	if prefs.BudgetAlertsEnabled != nil && !*prefs.BudgetAlertsEnabled {
		return &BudgetAlertResult{Skipped: "budget alerts disabled"}, nil
	}

	budget, err := models.GetActiveBudget(ctx, userId, categoryId, date)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &BudgetAlertResult{Skipped: "no active budget"}, nil
	}
	if err != nil {
		return nil, err
	}

	totalSpent, err := models.SumCategoryExpensesForMonth(ctx, userId, categoryId, date)
	if err != nil {
		return nil, err
	}

	percentage := budgetUsagePercent(totalSpent, budget.Amount)
	result := &BudgetAlertResult{
		TotalSpent: totalSpent,
		Limit:      budget.Amount,
		Percentage: percentage,
	}
	if percentage.LessThan(decimal.NewFromInt(int64(prefs.WarningPercent))) {
		return result, nil
	}

	data, _ := json.Marshal(map[string]interface{}{
		"category_id": categoryId,
		"total_spent": totalSpent,
		"limit":       budget.Amount,
		"percentage":  percentage.Round(1),
		"deep_link":   fmt.Sprintf("budgetzen://budgets/%d", budget.ID),
	})

	enq, err := Enqueue(ctx, EnqueueParams{
		UserId:           userId,
		NotificationType: models.NotificationTypeBudgetExceeded,
		Title:            "Budget alert",
		Body:             fmt.Sprintf("You've spent %s%% of your budget for this category this month.", percentage.Round(0)),
		Data:             data,
		IdempotencyKey:   BudgetAlertKey(userId, categoryId, date),
	})
	if err != nil {
		return nil, err
	}

	result.Queued = enq.Queued
	result.QueueId = enq.ID
	if enq.Queued {
		config.GetLogger().WithFields(logrus.Fields{
			"field":          "BudgetAlert",
			"user_id":        userId,
			"category_id":    categoryId,
			"percentage":     percentage.Round(1).String(),
			"correlation_id": correlationId(ctx),
		}).Info("budget alert queued")
	}
	return result, nil
}
