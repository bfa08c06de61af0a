package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// achievementDef couples an achievement with the predicate deciding whether
// the user has earned it. Definitions are a fixed list evaluated uniformly by
// the awarder loop.
type achievementDef struct {
	Key   string
	Title string
	Body  string
	Check func(ctx context.Context, userId string, now time.Time) (bool, error)
}

const superSaverMonthlyTarget = 500

var achievementDefs = []achievementDef{
	{
		Key:   "first_expense",
		Title: "First step!",
		Body:  "You logged your first expense. Tracking is the hardest part.",
		Check: func(ctx context.Context, userId string, now time.Time) (bool, error) {
			count, err := models.CountExpenses(ctx, userId)
			return count > 0, err
		},
	},
	{
		Key:   "week_streak",
		Title: "One week streak",
		Body:  "Seven days in a row of logging expenses. Consistency pays off!",
		Check: func(ctx context.Context, userId string, now time.Time) (bool, error) {
			// An 8-day window fully covers any run of 7 calendar dates
			// regardless of time of day.
			days, err := models.GetExpenseDays(ctx, userId, now, 8*24*time.Hour)
			if err != nil {
				return false, err
			}
			return hasConsecutiveDays(days, 7), nil
		},
	},
	{
		Key:   "under_budget_month",
		Title: "Budget master",
		Body:  "You stayed under budget in every category this month.",
		Check: checkUnderBudgetMonth,
	},
	{
		Key:   "super_saver",
		Title: "Super saver",
		Body:  fmt.Sprintf("You put away %d or more toward your goals this month.", superSaverMonthlyTarget),
		Check: func(ctx context.Context, userId string, now time.Time) (bool, error) {
			total, err := models.SumGoalContributionsForMonth(ctx, userId, now)
			if err != nil {
				return false, err
			}
			return total.GreaterThanOrEqual(decimal.NewFromInt(superSaverMonthlyTarget)), nil
		},
	},
}

// hasConsecutiveDays reports whether days (distinct "2006-01-02" strings in
// ascending order) contain a run of n consecutive calendar dates. Distinct
// dates alone are not a streak: a week-long window can span eight calendar
// dates, so seven scattered dates must not count.
func hasConsecutiveDays(days []string, n int) bool {
	if n <= 0 {
		return true
	}
	run := 0
	var prev time.Time
	for _, d := range days {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		if run > 0 && day.Sub(prev) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		prev = day
		if run >= n {
			return true
		}
	}
	return false
}

func checkUnderBudgetMonth(ctx context.Context, userId string, now time.Time) (bool, error) {
	budgets, err := models.GetActiveBudgets(ctx, userId, now)
	if err != nil {
		return false, err
	}
	if len(budgets) == 0 {
		return false, nil
	}
	for _, budget := range budgets {
		spent, err := models.SumCategoryExpensesForMonth(ctx, userId, budget.CategoryId, now)
		if err != nil {
			return false, err
		}
		if spent.GreaterThan(budget.Amount) {
			return false, nil
		}
	}
	return true, nil
}

// AchievementKey scopes the idempotency key to (user, achievement).
func AchievementKey(userId, achievementKey string) string {
	return fmt.Sprintf("achievement_%s_%s", userId, achievementKey)
}

type AchievementResult struct {
	Skipped      string   `json:"skipped,omitempty"`
	NewlyAwarded []string `json:"newly_awarded"`
}

// EvaluateAchievements checks every definition against the user's aggregate
// data. Each award is independently atomic: the guard insert claims it before
// the enqueue, and a predicate failure for one definition never blocks the
// others.
func EvaluateAchievements(ctx context.Context, userId string) (*AchievementResult, error) {
	prefs, err := models.GetNotificationPreferences(ctx, userId)
	if err != nil {
		return nil, err
	}
	if prefs.AchievementAlertsEnabled != nil && !*prefs.AchievementAlertsEnabled {
		return &AchievementResult{Skipped: "achievement alerts disabled"}, nil
	}

	now := time.Now().UTC()
	logger := config.GetLogger()
	result := &AchievementResult{NewlyAwarded: []string{}}

	for _, def := range achievementDefs {
		awarded, err := models.HasAchievementAward(ctx, userId, def.Key)
		if err != nil {
			config.LogError(logger, "notifications", "EvaluateAchievements", "lookup award "+def.Key, userId, err)
			continue
		}
		if awarded {
			continue
		}

		earned, err := def.Check(ctx, userId, now)
		if err != nil {
			config.LogError(logger, "notifications", "EvaluateAchievements", "check "+def.Key, userId, err)
			continue
		}
		if !earned {
			continue
		}

		claimed, err := models.ClaimAchievementAward(ctx, userId, def.Key)
		if err != nil {
			config.LogError(logger, "notifications", "EvaluateAchievements", "claim "+def.Key, userId, err)
			continue
		}
		if !claimed {
			continue
		}

		data, _ := json.Marshal(map[string]interface{}{
			"achievement_key": def.Key,
			"deep_link":       "budgetzen://achievements",
		})
		if _, err := Enqueue(ctx, EnqueueParams{
			UserId:           userId,
			NotificationType: models.NotificationTypeAchievement,
			Title:            def.Title,
			Body:             def.Body,
			Data:             data,
			IdempotencyKey:   AchievementKey(userId, def.Key),
		}); err != nil {
			config.LogError(logger, "notifications", "EvaluateAchievements", "enqueue "+def.Key, userId, err)
			continue
		}

		result.NewlyAwarded = append(result.NewlyAwarded, def.Key)
		logger.WithFields(logrus.Fields{
			"field":          "AchievementAwarder",
			"user_id":        userId,
			"achievement":    def.Key,
			"correlation_id": correlationId(ctx),
		}).Info("achievement awarded")
	}

	return result, nil
}
