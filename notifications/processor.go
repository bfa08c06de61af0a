package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxBatchSize = 100

// Processor is the batch worker draining the notification queue. It claims
// due PENDING rows inside a transaction (PROCESSING + lease columns, with
// SKIP LOCKED) before delivering, so two overlapping runs never pick up the
// same entry. Stale PROCESSING leases are reclaimed after LockTTL.
type Processor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Deliverer *Deliverer
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewProcessor(db *gorm.DB, logger *logrus.Logger, deliverer *Deliverer) *Processor {
	return &Processor{
		DB:        db,
		Logger:    logger,
		Deliverer: deliverer,
		WorkerID:  "worker-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  30 * time.Second,
		// The lease is renewed before each send, so the TTL only has to
		// outlive one entry's delivery, not a whole batch.
		LockTTL: 5 * time.Minute,
	}
}

type BatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
}

// retryDecision is the post-failure transition for one entry.
type retryDecision struct {
	Terminal bool
	Attempts int
	Delay    time.Duration
}

// backoffDelay is exponential in the attempt count: 2^attempts minutes.
func backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(1<<uint(attempts)) * time.Minute
}

// decideRetry increments the attempt count and either reschedules with
// backoff or goes terminal once attempts reach maxAttempts.
func decideRetry(attempts, maxAttempts int) retryDecision {
	next := attempts + 1
	if next >= maxAttempts {
		return retryDecision{Terminal: true, Attempts: next}
	}
	return retryDecision{Attempts: next, Delay: backoffDelay(next)}
}

// Run polls until ctx is cancelled. Started from main alongside the HTTP
// server; the scheduler-invoked /internal/notifications/process endpoint
// shares ProcessBatch with this loop.
func (p *Processor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, _ = p.ProcessBatch(ctx, p.BatchSize)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

// ProcessBatch claims up to batchSize due entries and attempts delivery on
// each. A single entry's failure never aborts the batch. Every run writes a
// ProcessorRunLog row, failed runs included.
func (p *Processor) ProcessBatch(ctx context.Context, batchSize int) (BatchResult, error) {
	startedAt := time.Now().UTC()
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	claimed, err := p.claimDue(ctx, batchSize)
	if err != nil {
		p.recordRun(ctx, BatchResult{}, startedAt, err)
		return BatchResult{}, err
	}

	var result BatchResult
	for i := range claimed {
		result.Processed++
		_, status := p.processOne(ctx, &claimed[i])
		switch status {
		case models.QueueStatusSent:
			result.Sent++
		case models.QueueStatusFailed:
			result.Failed++
		default:
			result.Retried++
		}
	}

	p.recordRun(ctx, result, startedAt, nil)
	return result, nil
}

// claimDue selects due PENDING rows (and stale PROCESSING leases) oldest-due
// first and marks them PROCESSING under the worker's lease, all in one
// transaction. Ordering is stable (scheduled_for, id) so no entry starves.
func (p *Processor) claimDue(ctx context.Context, batchSize int) ([]models.NotificationQueueEntry, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.NotificationQueueEntry
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where(`
				(status = ? AND scheduled_for <= ?)
				OR
				(status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, models.QueueStatusPending, now, models.QueueStatusProcessing, staleBefore).
			Order("scheduled_for ASC, id ASC").
			Limit(batchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			claimed[i].Status = models.QueueStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.NotificationQueueEntry{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"status":    models.QueueStatusProcessing,
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// processOne delivers a claimed entry and applies the state transition.
// Returns the delivery summary and the entry's resulting status.
func (p *Processor) processOne(ctx context.Context, entry *models.NotificationQueueEntry) (DeliveryResult, models.QueueStatus) {
	// A claimed batch can take longer than LockTTL to drain when every entry
	// waits on the push service, so bump the lease before each send. Losing
	// the lease here is non-fatal: the row is only reclaimed once it goes
	// stale again.
	if err := p.renewLease(ctx, entry); err != nil {
		p.logEntryError(entry, "renew lease", err)
	}

	now := time.Now().UTC()

	delivery, err := p.Deliverer.Deliver(ctx, entry)
	if err == nil {
		p.markSent(ctx, entry, now)
		return delivery, models.QueueStatusSent
	}

	if errors.Is(err, ErrNoValidTokens) {
		// Terminal: retrying cannot help until a new token is registered.
		p.markFailed(ctx, entry, now, entry.Attempts, err)
		return delivery, models.QueueStatusFailed
	}

	decision := decideRetry(entry.Attempts, entry.MaxAttempts)
	if decision.Terminal {
		p.markFailed(ctx, entry, now, decision.Attempts, err)
		return delivery, models.QueueStatusFailed
	}

	p.markRetry(ctx, entry, now, decision, err)
	return delivery, models.QueueStatusPending
}

// renewLease refreshes locked_at on an entry this worker holds, keeping it
// out of the stale-reclaim window while earlier batch entries deliver.
func (p *Processor) renewLease(ctx context.Context, entry *models.NotificationQueueEntry) error {
	now := time.Now().UTC()
	res := p.DB.WithContext(ctx).Model(&models.NotificationQueueEntry{}).
		Where("id = ? AND status = ? AND locked_by = ?", entry.ID, models.QueueStatusProcessing, p.WorkerID).
		Update("locked_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("lease no longer held")
	}
	entry.LockedAt = &now
	return nil
}

// ProcessEntry claims one specific entry and delivers it immediately, applying
// the same state transitions as the batch loop. Used by the direct-delivery
// endpoint; a row another worker holds (or that already went terminal) is
// reported as not claimable.
func (p *Processor) ProcessEntry(ctx context.Context, id int) (DeliveryResult, models.QueueStatus, error) {
	now := time.Now().UTC()

	res := p.DB.WithContext(ctx).Model(&models.NotificationQueueEntry{}).
		Where("id = ? AND status = ?", id, models.QueueStatusPending).
		Updates(map[string]interface{}{
			"status":    models.QueueStatusProcessing,
			"locked_at": &now,
			"locked_by": &p.WorkerID,
		})
	if res.Error != nil {
		return DeliveryResult{}, "", res.Error
	}
	if res.RowsAffected == 0 {
		return DeliveryResult{}, "", errors.New("queue entry is not pending")
	}

	entry, err := models.GetQueueEntry(ctx, id)
	if err != nil {
		return DeliveryResult{}, "", err
	}

	delivery, status := p.processOne(ctx, entry)
	return delivery, status, nil
}

func (p *Processor) markSent(ctx context.Context, entry *models.NotificationQueueEntry, now time.Time) {
	if err := p.DB.WithContext(ctx).Model(&models.NotificationQueueEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":          models.QueueStatusSent,
			"attempts":        entry.Attempts + 1,
			"last_attempt_at": &now,
			"error_message":   nil,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error; err != nil {
		p.logEntryError(entry, "mark sent", err)
	}
}

func (p *Processor) markFailed(ctx context.Context, entry *models.NotificationQueueEntry, now time.Time, attempts int, cause error) {
	msg := cause.Error()
	if err := p.DB.WithContext(ctx).Model(&models.NotificationQueueEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":          models.QueueStatusFailed,
			"attempts":        attempts,
			"last_attempt_at": &now,
			"error_message":   &msg,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error; err != nil {
		p.logEntryError(entry, "mark failed", err)
		return
	}
	p.Logger.WithFields(logrus.Fields{
		"field":    "QueueProcessor",
		"queue_id": entry.ID,
		"user_id":  entry.UserId,
		"attempts": attempts,
	}).Error("queue entry failed permanently: " + msg)
}

func (p *Processor) markRetry(ctx context.Context, entry *models.NotificationQueueEntry, now time.Time, decision retryDecision, cause error) {
	msg := cause.Error()
	nextAttemptAt := now.Add(decision.Delay)
	if err := p.DB.WithContext(ctx).Model(&models.NotificationQueueEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":          models.QueueStatusPending,
			"attempts":        decision.Attempts,
			"scheduled_for":   nextAttemptAt,
			"last_attempt_at": &now,
			"error_message":   &msg,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error; err != nil {
		p.logEntryError(entry, "mark retry", err)
		return
	}
	p.Logger.WithFields(logrus.Fields{
		"field":         "QueueProcessor",
		"queue_id":      entry.ID,
		"user_id":       entry.UserId,
		"attempts":      decision.Attempts,
		"next_attempt":  nextAttemptAt,
		"backoff_delay": decision.Delay.String(),
	}).Warn("delivery failed; rescheduled: " + msg)
}

func (p *Processor) recordRun(ctx context.Context, result BatchResult, startedAt time.Time, runErr error) {
	row := models.ProcessorRunLog{
		WorkerId:   p.WorkerID,
		Processed:  result.Processed,
		Sent:       result.Sent,
		Retried:    result.Retried,
		Failed:     result.Failed,
		Success:    runErr == nil,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if runErr != nil {
		msg := runErr.Error()
		row.Error = &msg
	}
	if err := p.DB.WithContext(ctx).Create(&row).Error; err != nil {
		p.Logger.WithFields(logrus.Fields{
			"field":     "QueueProcessor",
			"worker_id": p.WorkerID,
		}).Error("failed to record processor run: " + err.Error())
	}
}

func (p *Processor) logEntryError(entry *models.NotificationQueueEntry, context string, err error) {
	p.Logger.WithFields(logrus.Fields{
		"field":    "QueueProcessor",
		"queue_id": entry.ID,
		"context":  context,
	}).Error(err.Error())
}
