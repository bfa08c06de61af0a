package notifications

import (
	"math"
	"testing"
	"time"
)

func TestSampleStats(t *testing.T) {
	values := []float64{10, 12, 11, 13, 10, 14, 12, 11, 13, 12}

	mean := sampleMean(values)
	if math.Abs(mean-11.8) > 1e-9 {
		t.Fatalf("mean = %f, want 11.8", mean)
	}

	// Bessel-corrected (n-1) sample standard deviation.
	stdDev := sampleStdDev(values, mean)
	if math.Abs(stdDev-1.3165611772) > 1e-6 {
		t.Fatalf("stdDev = %f, want ~1.3166", stdDev)
	}
}

func TestSampleStats_DegenerateInputs(t *testing.T) {
	if got := sampleMean(nil); got != 0 {
		t.Errorf("mean of empty = %f, want 0", got)
	}
	if got := sampleStdDev([]float64{5}, 5); got != 0 {
		t.Errorf("stdDev of single sample = %f, want 0", got)
	}
}

func TestZScore(t *testing.T) {
	// Mean 10, stddev 2: an amount of 16 is exactly 3 standard deviations out.
	if got := zScore(16, 10, 2); got != 3 {
		t.Errorf("zScore(16,10,2) = %f, want 3", got)
	}
	// Identical history (stddev 0) never flags.
	if got := zScore(100, 10, 0); got != 0 {
		t.Errorf("zScore with zero stddev = %f, want 0", got)
	}
	// Below-mean amounts yield negative scores and never exceed the threshold.
	if got := zScore(4, 10, 2); got != -3 {
		t.Errorf("zScore(4,10,2) = %f, want -3", got)
	}
}

func TestZScore_TriggerThreshold(t *testing.T) {
	// At the default sensitivity of 2, a borderline spend must NOT trigger:
	// the rule is strictly greater-than.
	values := []float64{10, 10, 10, 10, 10, 14, 14, 14, 14, 14}
	mean := sampleMean(values)
	stdDev := sampleStdDev(values, mean)

	if z := zScore(mean+2*stdDev, mean, stdDev); z > 2 {
		t.Errorf("amount at exactly 2 stddev has z = %f; must not exceed 2", z)
	}
	if z := zScore(mean+3*stdDev, mean, stdDev); z <= 2 {
		t.Errorf("amount at 3 stddev has z = %f; must exceed 2", z)
	}
}

func TestAnomalyKey_OnePerCategoryPerDay(t *testing.T) {
	morning := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 14, 22, 5, 0, 0, time.UTC)
	nextDay := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)

	if AnomalyKey("u1", 7, morning) != AnomalyKey("u1", 7, evening) {
		t.Error("same user/category/day must produce the same key")
	}
	if AnomalyKey("u1", 7, morning) == AnomalyKey("u1", 7, nextDay) {
		t.Error("different days must produce different keys")
	}
	if AnomalyKey("u1", 7, morning) == AnomalyKey("u1", 8, morning) {
		t.Error("different categories must produce different keys")
	}
}
