package models

import (
	"context"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
)

// AchievementAward is an append-only marker preventing the awarder from
// re-notifying the same achievement. Insert-once via the unique index.
type AchievementAward struct {
	ID             int       `gorm:"primary_key" json:"id"`
	UserId         string    `gorm:"size:64;not null;uniqueIndex:idx_award_once,priority:1" json:"user_id"`
	AchievementKey string    `gorm:"size:64;not null;uniqueIndex:idx_award_once,priority:2" json:"achievement_key"`
	AwardedAt      time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

// GoalMilestoneNotified marks a goal milestone as already notified.
type GoalMilestoneNotified struct {
	ID               int       `gorm:"primary_key" json:"id"`
	GoalId           int       `gorm:"not null;uniqueIndex:idx_milestone_once,priority:1" json:"goal_id"`
	MilestonePercent int       `gorm:"not null;uniqueIndex:idx_milestone_once,priority:2" json:"milestone_percent"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ClaimAchievementAward inserts the award marker. Returns (false, nil) when
// another invocation already claimed it.
func ClaimAchievementAward(ctx context.Context, userId, achievementKey string) (bool, error) {
	db := config.GetDB()

	err := db.WithContext(ctx).Create(&AchievementAward{
		UserId:         userId,
		AchievementKey: achievementKey,
	}).Error
	if err == nil {
		return true, nil
	}
	if utils.IsDuplicateKeyErr(err) {
		return false, nil
	}
	return false, err
}

// HasAchievementAward reports whether the user already holds the achievement.
func HasAchievementAward(ctx context.Context, userId, achievementKey string) (bool, error) {
	db := config.GetDB()

	var count int64
	err := db.WithContext(ctx).Model(&AchievementAward{}).
		Where("user_id = ? AND achievement_key = ?", userId, achievementKey).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimGoalMilestone inserts the milestone marker. Returns (false, nil) when
// the milestone was already notified.
func ClaimGoalMilestone(ctx context.Context, goalId, milestonePercent int) (bool, error) {
	db := config.GetDB()

	err := db.WithContext(ctx).Create(&GoalMilestoneNotified{
		GoalId:           goalId,
		MilestonePercent: milestonePercent,
	}).Error
	if err == nil {
		return true, nil
	}
	if utils.IsDuplicateKeyErr(err) {
		return false, nil
	}
	return false, err
}

// GetNotifiedMilestones returns the milestone percentages already notified for a goal.
func GetNotifiedMilestones(ctx context.Context, goalId int) ([]int, error) {
	db := config.GetDB()

	var percents []int
	err := db.WithContext(ctx).Model(&GoalMilestoneNotified{}).
		Where("goal_id = ?", goalId).
		Order("milestone_percent ASC").
		Pluck("milestone_percent", &percents).Error
	if err != nil {
		return nil, err
	}
	return percents, nil
}
