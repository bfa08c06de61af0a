package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/sirupsen/logrus"
)

// QueueClient is the client-facing facade over the queue store: enqueue,
// fetch-pending, stats, and realtime subscribe.
type QueueClient struct {
	Logger *logrus.Logger
}

func NewQueueClient(logger *logrus.Logger) *QueueClient {
	return &QueueClient{Logger: logger}
}

func (q *QueueClient) Enqueue(ctx context.Context, params EnqueueParams) (*EnqueueResult, error) {
	return Enqueue(ctx, params)
}

func (q *QueueClient) Pending(ctx context.Context, userId string, limit int) ([]*models.NotificationQueueEntry, error) {
	return models.GetPendingQueueEntries(ctx, userId, limit)
}

func statsCacheKey(userId string) string {
	return fmt.Sprintf("queue_stats:%s", userId)
}

// Stats returns the user's status breakdown, cached briefly since the mobile
// client polls it on every app foreground.
func (q *QueueClient) Stats(ctx context.Context, userId string) (*models.QueueStats, error) {
	var cached models.QueueStats
	if found, err := config.GetRedisObject(statsCacheKey(userId), &cached); err == nil && found {
		return &cached, nil
	}

	stats, err := models.GetQueueStats(ctx, userId)
	if err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(statsCacheKey(userId), stats, 30*time.Second)
	return stats, nil
}

// Subscribe streams newly enqueued entries for the user until ctx is
// cancelled. The returned channel is closed on unsubscribe; callers range
// over it. Returns an error when Redis is unavailable (the client falls back
// to polling Pending).
func (q *QueueClient) Subscribe(ctx context.Context, userId string) (<-chan *models.NotificationQueueEntry, error) {
	sub := config.SubscribeRedisChannel(ctx, ChannelForUser(userId))
	if sub == nil {
		return nil, fmt.Errorf("realtime subscription unavailable: redis not connected")
	}

	// Force the subscription to be established before we return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan *models.NotificationQueueEntry, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var entry models.NotificationQueueEntry
				if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
					q.Logger.WithFields(logrus.Fields{
						"field":   "QueueClient",
						"user_id": userId,
					}).Warn("dropping malformed realtime payload: " + err.Error())
					continue
				}
				select {
				case out <- &entry:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
