package notifications

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMilestonesCrossed(t *testing.T) {
	cases := []struct {
		name     string
		percent  decimal.Decimal
		notified []int
		want     []int
	}{
		{
			name:    "jump from zero to 80 crosses three milestones",
			percent: decimal.NewFromInt(80),
			want:    []int{25, 50, 75},
		},
		{
			name:     "already-notified milestones are skipped",
			percent:  decimal.NewFromInt(80),
			notified: []int{25, 50},
			want:     []int{75},
		},
		{
			name:     "re-running at the same progress emits nothing",
			percent:  decimal.NewFromInt(80),
			notified: []int{25, 50, 75},
			want:     nil,
		},
		{
			name:    "exactly at a threshold counts",
			percent: decimal.NewFromInt(25),
			want:    []int{25},
		},
		{
			name:    "just below a threshold does not count",
			percent: decimal.NewFromFloat(24.999),
			want:    nil,
		},
		{
			name:    "completion crosses everything",
			percent: decimal.NewFromInt(100),
			want:    []int{25, 50, 75, 100},
		},
		{
			name:    "overfunded goals cap at the defined milestones",
			percent: decimal.NewFromInt(130),
			want:    []int{25, 50, 75, 100},
		},
		{
			name:    "zero progress",
			percent: decimal.Zero,
			want:    nil,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := milestonesCrossed(c.percent, c.notified)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("milestonesCrossed(%s, %v) = %v, want %v", c.percent, c.notified, got, c.want)
			}
		})
	}
}

func TestGoalPercent(t *testing.T) {
	got := goalPercent(decimal.NewFromInt(300), decimal.NewFromInt(1000))
	if !got.Equal(decimal.NewFromInt(30)) {
		t.Errorf("goalPercent(300, 1000) = %s, want 30", got)
	}

	// A zero target must not divide.
	if got := goalPercent(decimal.NewFromInt(300), decimal.Zero); !got.IsZero() {
		t.Errorf("goalPercent with zero target = %s, want 0", got)
	}
}

func TestGoalMilestoneKey_ScopedToGoalAndMilestone(t *testing.T) {
	if GoalMilestoneKey(1, 25) == GoalMilestoneKey(1, 50) {
		t.Error("different milestones must produce different keys")
	}
	if GoalMilestoneKey(1, 25) == GoalMilestoneKey(2, 25) {
		t.Error("different goals must produce different keys")
	}
	if GoalMilestoneKey(3, 75) != GoalMilestoneKey(3, 75) {
		t.Error("key must be deterministic")
	}
}
