package notifications

import "testing"

func TestHasConsecutiveDays(t *testing.T) {
	cases := []struct {
		name string
		days []string
		n    int
		want bool
	}{
		{
			name: "seven consecutive dates award the streak",
			days: []string{"2026-08-01", "2026-08-02", "2026-08-03", "2026-08-04", "2026-08-05", "2026-08-06", "2026-08-07"},
			n:    7,
			want: true,
		},
		{
			// A week-long window spans eight calendar dates, so seven distinct
			// dates with a gap must not count as a streak.
			name: "seven dates across eight days with a gap do not",
			days: []string{"2026-08-01", "2026-08-02", "2026-08-03", "2026-08-05", "2026-08-06", "2026-08-07", "2026-08-08"},
			n:    7,
			want: false,
		},
		{
			name: "run after a gap still counts",
			days: []string{"2026-07-20", "2026-08-01", "2026-08-02", "2026-08-03"},
			n:    3,
			want: true,
		},
		{
			name: "month boundary is still consecutive",
			days: []string{"2026-08-30", "2026-08-31", "2026-09-01"},
			n:    3,
			want: true,
		},
		{
			name: "fewer dates than the streak length",
			days: []string{"2026-08-01", "2026-08-02"},
			n:    7,
			want: false,
		},
		{
			name: "no dates at all",
			days: nil,
			n:    7,
			want: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := hasConsecutiveDays(c.days, c.n); got != c.want {
				t.Errorf("hasConsecutiveDays(%v, %d) = %v, want %v", c.days, c.n, got, c.want)
			}
		})
	}
}
