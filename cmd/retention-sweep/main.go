// Command retention-sweep deletes terminal notification queue entries and
// their delivery logs past the retention window. Intended to run as a
// scheduled job (Cloud Run job / cron).
package main

import (
	"context"
	"flag"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/sirupsen/logrus"
)

func main() {
	days := flag.Int("days", 90, "delete SENT/FAILED entries older than this many days")
	runLogDays := flag.Int("run-log-days", 30, "delete processor run logs older than this many days")
	batchSize := flag.Int("batch-size", 1000, "rows deleted per statement")
	flag.Parse()

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()

	ctx := context.Background()
	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	runLogCutoff := time.Now().UTC().AddDate(0, 0, -*runLogDays)

	var totalEntries, totalLogs int64

	// Delete in batches so we never hold long row locks on a hot table.
	for {
		res := db.WithContext(ctx).
			Where("status IN ? AND updated_at < ?", []models.QueueStatus{models.QueueStatusSent, models.QueueStatusFailed}, cutoff).
			Limit(*batchSize).
			Delete(&models.NotificationQueueEntry{})
		if res.Error != nil {
			config.LogError(logger, "retention-sweep", "main", "delete queue entries", cutoff, res.Error)
			break
		}
		totalEntries += res.RowsAffected
		if res.RowsAffected < int64(*batchSize) {
			break
		}
	}

	for {
		res := db.WithContext(ctx).
			Where("created_at < ?", cutoff).
			Limit(*batchSize).
			Delete(&models.NotificationDeliveryLog{})
		if res.Error != nil {
			config.LogError(logger, "retention-sweep", "main", "delete delivery logs", cutoff, res.Error)
			break
		}
		totalLogs += res.RowsAffected
		if res.RowsAffected < int64(*batchSize) {
			break
		}
	}

	if err := db.WithContext(ctx).
		Where("created_at < ?", runLogCutoff).
		Delete(&models.ProcessorRunLog{}).Error; err != nil {
		config.LogError(logger, "retention-sweep", "main", "delete run logs", runLogCutoff, err)
	}

	logger.WithFields(logrus.Fields{
		"field":          "retention-sweep",
		"queue_entries":  totalEntries,
		"delivery_logs":  totalLogs,
		"retention_days": *days,
		"run_log_days":   *runLogDays,
	}).Info("retention sweep complete")
}
