package models

import (
	"context"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/shopspring/decimal"
)

type SavingsGoal struct {
	ID            int             `gorm:"primary_key" json:"id"`
	UserId        string          `gorm:"size:64;not null;index" json:"user_id" binding:"required"`
	Name          string          `gorm:"size:255;not null" json:"name" binding:"required"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"target_amount"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_amount"`
	TargetDate    *time.Time      `json:"target_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GoalContribution records a deposit toward a savings goal. Summed per month
// by the achievement awarder.
type GoalContribution struct {
	ID        int             `gorm:"primary_key" json:"id"`
	UserId    string          `gorm:"size:64;not null;index" json:"user_id" binding:"required"`
	GoalId    int             `gorm:"not null;index" json:"goal_id" binding:"required"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetSavingsGoal(ctx context.Context, userId string, goalId int) (*SavingsGoal, error) {
	db := config.GetDB()

	var result SavingsGoal
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", goalId, userId).
		First(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// SumGoalContributionsForMonth sums all goal deposits the user made in the
// calendar month containing asOf.
func SumGoalContributionsForMonth(ctx context.Context, userId string, asOf time.Time) (decimal.Decimal, error) {
	db := config.GetDB()
	start, end := MonthRange(asOf)

	var total decimal.NullDecimal
	err := db.WithContext(ctx).Model(&GoalContribution{}).
		Select("SUM(amount)").
		Where("user_id = ?", userId).
		Where("created_at >= ? AND created_at < ?", start, end).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
