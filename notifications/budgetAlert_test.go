package notifications

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBudgetUsagePercent(t *testing.T) {
	cases := []struct {
		spent string
		limit string
		want  string
	}{
		{spent: "400", limit: "500", want: "80"},
		{spent: "500", limit: "500", want: "100"},
		{spent: "650", limit: "500", want: "130"},
		{spent: "0", limit: "500", want: "0"},
		// A zero limit can never be "used"; it must not flag (or divide).
		{spent: "400", limit: "0", want: "0"},
	}
	for _, c := range cases {
		spent := decimal.RequireFromString(c.spent)
		limit := decimal.RequireFromString(c.limit)
		want := decimal.RequireFromString(c.want)
		if got := budgetUsagePercent(spent, limit); !got.Equal(want) {
			t.Errorf("budgetUsagePercent(%s, %s) = %s, want %s", c.spent, c.limit, got, want)
		}
	}
}

func TestBudgetAlertKey_OnePerCategoryPerMonth(t *testing.T) {
	early := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 5, 30, 23, 0, 0, 0, time.UTC)
	nextMonth := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	if BudgetAlertKey("u1", 3, early) != BudgetAlertKey("u1", 3, late) {
		t.Error("same user/category/month must produce the same key")
	}
	if BudgetAlertKey("u1", 3, early) == BudgetAlertKey("u1", 3, nextMonth) {
		t.Error("different months must produce different keys")
	}
	if BudgetAlertKey("u1", 3, early) == BudgetAlertKey("u2", 3, early) {
		t.Error("different users must produce different keys")
	}
}
