package models

import (
	"context"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    string    `gorm:"size:64;not null;index" json:"user_id" binding:"required"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Icon      string    `gorm:"size:64" json:"icon"`
	Color     string    `gorm:"size:16" json:"color"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Budget struct {
	ID         int             `gorm:"primary_key" json:"id"`
	UserId     string          `gorm:"size:64;not null;index" json:"user_id" binding:"required"`
	CategoryId int             `gorm:"not null;index" json:"category_id" binding:"required"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	StartDate  time.Time       `gorm:"not null" json:"start_date"`
	EndDate    *time.Time      `json:"end_date"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetActiveBudget returns the active budget limit for a category as of the
// given date, or gorm.ErrRecordNotFound when none is configured.
func GetActiveBudget(ctx context.Context, userId string, categoryId int, asOf time.Time) (*Budget, error) {
	db := config.GetDB()

	var result Budget
	err := db.WithContext(ctx).
		Where("user_id = ? AND category_id = ? AND is_active = 1", userId, categoryId).
		Where("start_date <= ?", asOf).
		Where("end_date IS NULL OR end_date >= ?", asOf).
		Order("start_date DESC").
		First(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// GetActiveBudgets returns all active budgets for a user as of the given date.
func GetActiveBudgets(ctx context.Context, userId string, asOf time.Time) ([]*Budget, error) {
	db := config.GetDB()

	var results []*Budget
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_active = 1", userId).
		Where("start_date <= ?", asOf).
		Where("end_date IS NULL OR end_date >= ?", asOf).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}
