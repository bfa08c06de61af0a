package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var goalMilestones = []int{25, 50, 75, 100}

type GoalProgressResult struct {
	Skipped            string          `json:"skipped,omitempty"`
	Percent            decimal.Decimal `json:"percent"`
	MilestonesNotified []int           `json:"milestones_notified"`
}

// GoalMilestoneKey scopes the idempotency key to (goal, milestone).
func GoalMilestoneKey(goalId, milestone int) string {
	return fmt.Sprintf("goal_%d_%d", goalId, milestone)
}

// milestonesCrossed returns the milestones reached by percent that are not in
// alreadyNotified, ascending. 0% counts nothing; 80% crosses 25/50/75.
func milestonesCrossed(percent decimal.Decimal, alreadyNotified []int) []int {
	notified := make(map[int]bool, len(alreadyNotified))
	for _, m := range alreadyNotified {
		notified[m] = true
	}

	var crossed []int
	for _, m := range goalMilestones {
		if notified[m] {
			continue
		}
		if percent.GreaterThanOrEqual(decimal.NewFromInt(int64(m))) {
			crossed = append(crossed, m)
		}
	}
	return crossed
}

func goalPercent(current, target decimal.Decimal) decimal.Decimal {
	if target.IsZero() {
		return decimal.Zero
	}
	return current.Div(target).Mul(decimal.NewFromInt(100))
}

// EvaluateGoalProgress runs after a goal update. A single invocation may emit
// several notifications when progress jumped across multiple thresholds; each
// milestone is claimed insert-once before its enqueue, so re-invoking at the
// same progress level emits nothing.
func EvaluateGoalProgress(ctx context.Context, userId string, goalId int) (*GoalProgressResult, error) {
	prefs, err := models.GetNotificationPreferences(ctx, userId)
	if err != nil {
		return nil, err
	}
	if prefs.GoalAlertsEnabled != nil && !*prefs.GoalAlertsEnabled {
		return &GoalProgressResult{Skipped: "goal alerts disabled"}, nil
	}

	goal, err := models.GetSavingsGoal(ctx, userId, goalId)
	if err != nil {
		return nil, err
	}

	percent := goalPercent(goal.CurrentAmount, goal.TargetAmount)
	notified, err := models.GetNotifiedMilestones(ctx, goalId)
	if err != nil {
		return nil, err
	}

	result := &GoalProgressResult{Percent: percent, MilestonesNotified: []int{}}
	logger := config.GetLogger()

	for _, milestone := range milestonesCrossed(percent, notified) {
		claimed, err := models.ClaimGoalMilestone(ctx, goalId, milestone)
		if err != nil {
			return result, err
		}
		if !claimed {
			// Raced with a concurrent invocation; the winner notifies.
			continue
		}

		body := fmt.Sprintf("You've reached %d%% of your goal \"%s\". Keep it up!", milestone, goal.Name)
		if milestone == 100 {
			body = fmt.Sprintf("Congratulations! You've completed your goal \"%s\".", goal.Name)
		}
		data, _ := json.Marshal(map[string]interface{}{
			"goal_id":   goalId,
			"milestone": milestone,
			"percent":   percent.Round(1),
			"deep_link": fmt.Sprintf("budgetzen://goals/%d", goalId),
		})

		if _, err := Enqueue(ctx, EnqueueParams{
			UserId:           userId,
			NotificationType: models.NotificationTypeGoalProgress,
			Title:            "Goal progress",
			Body:             body,
			Data:             data,
			IdempotencyKey:   GoalMilestoneKey(goalId, milestone),
		}); err != nil {
			return result, err
		}

		result.MilestonesNotified = append(result.MilestonesNotified, milestone)
		logger.WithFields(logrus.Fields{
			"field":          "GoalProgress",
			"user_id":        userId,
			"goal_id":        goalId,
			"milestone":      milestone,
			"correlation_id": correlationId(ctx),
		}).Info("goal milestone notification queued")
	}

	return result, nil
}
