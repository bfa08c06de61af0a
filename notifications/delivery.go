package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/John-Prabu-A/budgetzen-backend/push"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrNoValidTokens marks a terminal delivery failure: retrying cannot help
// until the user registers a new device.
var ErrNoValidTokens = errors.New("no valid device tokens")

type DeliveryResult struct {
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	PushIds      []string `json:"pushIds"`
}

// Deliverer fans one queue entry out to all of a user's valid device tokens.
type Deliverer struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Sender push.Sender
}

func NewDeliverer(db *gorm.DB, logger *logrus.Logger, sender push.Sender) *Deliverer {
	return &Deliverer{DB: db, Logger: logger, Sender: sender}
}

type tokenOutcome struct {
	tokenId   int
	pushId    string
	err       error
	permanent bool
}

// summarizeOutcomes applies the multi-device best-effort rule: any success
// means the entry is delivered; zero successes is a retryable failure.
func summarizeOutcomes(outcomes []tokenOutcome) (DeliveryResult, error) {
	var result DeliveryResult
	var firstErr error
	for _, o := range outcomes {
		if o.err == nil {
			result.SuccessCount++
			if o.pushId != "" {
				result.PushIds = append(result.PushIds, o.pushId)
			}
			continue
		}
		result.FailureCount++
		if firstErr == nil {
			firstErr = o.err
		}
	}
	if result.SuccessCount > 0 {
		return result, nil
	}
	if firstErr == nil {
		firstErr = ErrNoValidTokens
	}
	return result, firstErr
}

// Deliver sends the entry to every valid token, records a delivery-log row per
// token, and invalidates tokens the transport reports as permanently dead.
func (d *Deliverer) Deliver(ctx context.Context, entry *models.NotificationQueueEntry) (DeliveryResult, error) {
	tokens, err := models.GetValidDeviceTokens(ctx, entry.UserId)
	if err != nil {
		return DeliveryResult{}, err
	}
	if len(tokens) == 0 {
		return DeliveryResult{}, ErrNoValidTokens
	}

	outcomes := make([]tokenOutcome, 0, len(tokens))
	for _, token := range tokens {
		outcome := tokenOutcome{tokenId: token.ID}

		ticket, sendErr := d.Sender.Send(ctx, push.Message{
			To:    token.Token,
			Title: entry.Title,
			Body:  entry.Body,
			Data:  entry.Data,
		})
		if sendErr != nil {
			outcome.err = sendErr
			outcome.permanent = errors.Is(sendErr, push.ErrDeviceNotRegistered)
		} else {
			outcome.pushId = ticket.ID
		}
		outcomes = append(outcomes, outcome)

		d.recordOutcome(ctx, entry, token, outcome)

		if outcome.permanent {
			if invErr := models.InvalidateDeviceToken(ctx, token.ID); invErr != nil {
				config.LogError(d.Logger, "notifications", "Deliver", "invalidate token", token.ID, invErr)
			} else {
				d.Logger.WithFields(logrus.Fields{
					"field":           "Delivery",
					"user_id":         entry.UserId,
					"device_token_id": token.ID,
				}).Info("invalidated unregistered device token")
			}
		}
	}

	result, err := summarizeOutcomes(outcomes)
	if err != nil {
		return result, fmt.Errorf("deliver queue entry %d: %w", entry.ID, err)
	}
	return result, nil
}

func (d *Deliverer) recordOutcome(ctx context.Context, entry *models.NotificationQueueEntry, token *models.DeviceToken, outcome tokenOutcome) {
	row := models.NotificationDeliveryLog{
		QueueEntryId:  entry.ID,
		DeviceTokenId: token.ID,
		Token:         token.Token,
		Outcome:       models.DeliveryOutcomeDelivered,
		PushId:        outcome.pushId,
	}
	if outcome.err != nil {
		msg := outcome.err.Error()
		row.Error = &msg
		row.Outcome = models.DeliveryOutcomeFailed
		if outcome.permanent {
			row.Outcome = models.DeliveryOutcomeInvalid
		}
	}
	if err := d.DB.WithContext(ctx).Create(&row).Error; err != nil {
		config.LogError(d.Logger, "notifications", "recordOutcome", "insert delivery log", entry.ID, err)
	}
}
