package models

import (
	"context"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/shopspring/decimal"
)

type Expense struct {
	ID          int             `gorm:"primary_key" json:"id"`
	UserId      string          `gorm:"size:64;not null;index;index:idx_expense_history,priority:1" json:"user_id" binding:"required"`
	CategoryId  int             `gorm:"not null;index:idx_expense_history,priority:2" json:"category_id" binding:"required"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Description string          `gorm:"size:255" json:"description"`
	ExpenseDate time.Time       `gorm:"not null;index:idx_expense_history,priority:3" json:"expense_date" binding:"required"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MonthRange returns the [start, end) bounds of the calendar month containing t, in UTC.
func MonthRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// SumCategoryExpensesForMonth sums recorded expenses for the category in the
// calendar month containing asOf.
func SumCategoryExpensesForMonth(ctx context.Context, userId string, categoryId int, asOf time.Time) (decimal.Decimal, error) {
	db := config.GetDB()
	start, end := MonthRange(asOf)

	var total decimal.NullDecimal
	err := db.WithContext(ctx).Model(&Expense{}).
		Select("SUM(amount)").
		Where("user_id = ? AND category_id = ?", userId, categoryId).
		Where("expense_date >= ? AND expense_date < ?", start, end).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// GetCategoryExpenseHistory returns expense amounts for the category over the
// trailing window ending at asOf (exclusive), oldest first.
func GetCategoryExpenseHistory(ctx context.Context, userId string, categoryId int, asOf time.Time, window time.Duration) ([]decimal.Decimal, error) {
	db := config.GetDB()
	since := asOf.Add(-window)

	var amounts []decimal.Decimal
	err := db.WithContext(ctx).Model(&Expense{}).
		Where("user_id = ? AND category_id = ?", userId, categoryId).
		Where("expense_date >= ? AND expense_date < ?", since, asOf).
		Order("expense_date ASC").
		Pluck("amount", &amounts).Error
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// CountExpenses returns the number of expenses the user has ever recorded.
func CountExpenses(ctx context.Context, userId string) (int64, error) {
	db := config.GetDB()

	var count int64
	err := db.WithContext(ctx).Model(&Expense{}).
		Where("user_id = ?", userId).
		Count(&count).Error
	return count, err
}

// GetExpenseDays returns the distinct calendar days (UTC, yyyy-mm-dd) on which
// the user recorded at least one expense within the trailing window.
func GetExpenseDays(ctx context.Context, userId string, asOf time.Time, window time.Duration) ([]string, error) {
	db := config.GetDB()
	since := asOf.Add(-window)

	var days []string
	err := db.WithContext(ctx).Model(&Expense{}).
		Distinct("DATE(expense_date)").
		Where("user_id = ?", userId).
		Where("expense_date >= ? AND expense_date <= ?", since, asOf).
		Order("DATE(expense_date) ASC").
		Pluck("DATE(expense_date)", &days).Error
	if err != nil {
		return nil, err
	}
	return days, nil
}
