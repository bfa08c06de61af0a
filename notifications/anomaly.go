package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	anomalyHistoryWindow = 90 * 24 * time.Hour
	anomalyMinSamples    = 10
)

type AnomalyResult struct {
	Skipped     string  `json:"skipped,omitempty"`
	SampleCount int     `json:"sample_count"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	ZScore      float64 `json:"z_score"`
	Queued      bool    `json:"queued"`
	QueueId     int     `json:"queue_id,omitempty"`
}

// AnomalyKey scopes the idempotency key to (user, category, day): at most one
// anomaly alert per category per day.
func AnomalyKey(userId string, categoryId int, date time.Time) string {
	return fmt.Sprintf("anomaly_%s_%d_%s", userId, categoryId, date.UTC().Format("2006-01-02"))
}

func sampleMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev is the Bessel-corrected (n-1) standard deviation.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func zScore(amount, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (amount - mean) / stdDev
}

// EvaluateAnomaly runs after an expense is recorded: compares the new amount
// against the trailing 90-day distribution for the category and enqueues an
// unusual_spending notification when the z-score exceeds the user's
// sensitivity. Fewer than 10 historical points is an explicit skip, not an
// error.
func EvaluateAnomaly(ctx context.Context, userId string, categoryId int, amount decimal.Decimal, date time.Time) (*AnomalyResult, error) {
	prefs, err := models.GetNotificationPreferences(ctx, userId)
	if err != nil {
		return nil, err
	}
	if prefs.AnomalyAlertsEnabled != nil && !*prefs.AnomalyAlertsEnabled {
		return &AnomalyResult{Skipped: "anomaly alerts disabled"}, nil
	}

	history, err := models.GetCategoryExpenseHistory(ctx, userId, categoryId, date, anomalyHistoryWindow)
	if err != nil {
		return nil, err
	}
	if len(history) < anomalyMinSamples {
		return &AnomalyResult{Skipped: "insufficient history", SampleCount: len(history)}, nil
	}

	values := make([]float64, len(history))
	for i, v := range history {
		values[i] = v.InexactFloat64()
	}
	mean := sampleMean(values)
	stdDev := sampleStdDev(values, mean)
	z := zScore(amount.InexactFloat64(), mean, stdDev)

	result := &AnomalyResult{
		SampleCount: len(history),
		Mean:        mean,
		StdDev:      stdDev,
		ZScore:      z,
	}
	if z <= prefs.AnomalyZScore.InexactFloat64() {
		return result, nil
	}

	data, _ := json.Marshal(map[string]interface{}{
		"category_id": categoryId,
		"amount":      amount,
		"z_score":     math.Round(z*100) / 100,
		"mean":        math.Round(mean*100) / 100,
		"deep_link":   fmt.Sprintf("budgetzen://categories/%d/expenses", categoryId),
	})

	enq, err := Enqueue(ctx, EnqueueParams{
		UserId:           userId,
		NotificationType: models.NotificationTypeUnusualSpending,
		Title:            "Unusual spending detected",
		Body:             fmt.Sprintf("A %s expense is well above your usual spending in this category.", amount.Round(2)),
		Data:             data,
		IdempotencyKey:   AnomalyKey(userId, categoryId, date),
	})
	if err != nil {
		return nil, err
	}

	result.Queued = enq.Queued
	result.QueueId = enq.ID
	if enq.Queued {
		config.GetLogger().WithFields(logrus.Fields{
			"field":          "AnomalyDetector",
			"user_id":        userId,
			"category_id":    categoryId,
			"z_score":        z,
			"correlation_id": correlationId(ctx),
		}).Info("anomaly alert queued")
	}
	return result, nil
}
