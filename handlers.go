package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/John-Prabu-A/budgetzen-backend/notifications"
	"github.com/John-Prabu-A/budgetzen-backend/push"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PubSubMessage is the Pub/Sub push envelope.
// https://cloud.google.com/pubsub/docs/push#receive_push
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func appEventPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization to serialize decision runs
		// per user. Reliability must not depend on Redis: idempotency keys and
		// the milestone/achievement claim tables dedupe regardless.
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "handlers.go", "appEventPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "handlers.go", "appEventPubSubHandler", "Unmarshal body", body, err)
			// Malformed request: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		var event config.AppEvent
		if err := json.Unmarshal(msg.Message.Data, &event); err != nil {
			config.LogError(logger, "handlers.go", "appEventPubSubHandler", "Unmarshal app event", msg.Message.Data, err)
			// Malformed Pub/Sub payload: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if event.UserId == "" || event.EventType == "" {
			config.LogError(logger, "handlers.go", "appEventPubSubHandler", "Invalid app event (missing required fields)", event, fmt.Errorf("user_id/event_type required"))
			c.Status(http.StatusNoContent)
			return
		}

		// Correlation ID propagation: prefer payload correlation_id; fall back to Pub/Sub message ID.
		correlationID := event.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		// Best-effort per-user lock so overlapping events for one user don't
		// evaluate the same budgets/goals concurrently.
		var lock *redislock.Lock
		if redisLock == nil {
			logger.WithFields(logrus.Fields{
				"field":      "appEventPubSubHandler",
				"user_id":    event.UserId,
				"event_type": event.EventType,
				"message_id": msg.Message.ID,
			}).Warn("redis lock not ready; proceeding without redis lock")
		} else {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:%s", event.UserId), 30*time.Second, nil)
			if err == redislock.ErrNotObtained {
				logger.WithFields(logrus.Fields{
					"field":      "appEventPubSubHandler",
					"user_id":    event.UserId,
					"event_type": event.EventType,
					"message_id": msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without redis lock")
				lock = nil
			} else if err != nil {
				logger.WithFields(logrus.Fields{
					"field":      "appEventPubSubHandler",
					"user_id":    event.UserId,
					"event_type": event.EventType,
					"message_id": msg.Message.ID,
				}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":      "appEventPubSubHandler",
					"user_id":    event.UserId,
					"message_id": msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationID)
		if err := dispatchAppEvent(ctx, logger, event); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "appEventPubSubHandler",
				"user_id":        event.UserId,
				"event_type":     event.EventType,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("app event processing failed: " + err.Error())
			// Non-2xx => Pub/Sub redelivers with backoff.
			c.Status(http.StatusInternalServerError)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// dispatchAppEvent routes one app event to the decision functions it affects.
func dispatchAppEvent(ctx context.Context, logger *logrus.Logger, event config.AppEvent) error {
	eventDate := time.Now().UTC()
	if event.Date != nil {
		eventDate = *event.Date
	}

	switch event.EventType {
	case "expense_added":
		if _, err := notifications.EvaluateBudgetAlert(ctx, event.UserId, event.CategoryId, eventDate); err != nil {
			return fmt.Errorf("budget alert: %w", err)
		}
		amount, err := decimal.NewFromString(event.Amount.String())
		if err != nil {
			// Amount is unparsable; anomaly detection is impossible but the
			// budget alert already ran, so drop instead of retrying forever.
			config.LogError(logger, "handlers.go", "dispatchAppEvent", "parse amount", event, err)
			return nil
		}
		if _, err := notifications.EvaluateAnomaly(ctx, event.UserId, event.CategoryId, amount, eventDate); err != nil {
			return fmt.Errorf("anomaly: %w", err)
		}
		// Achievements like first_expense and week_streak depend on expenses.
		if _, err := notifications.EvaluateAchievements(ctx, event.UserId); err != nil {
			return fmt.Errorf("achievements: %w", err)
		}
		return nil
	case "goal_updated":
		if _, err := notifications.EvaluateGoalProgress(ctx, event.UserId, event.GoalId); err != nil {
			return fmt.Errorf("goal progress: %w", err)
		}
		if _, err := notifications.EvaluateAchievements(ctx, event.UserId); err != nil {
			return fmt.Errorf("achievements: %w", err)
		}
		return nil
	case "achievement_check":
		if _, err := notifications.EvaluateAchievements(ctx, event.UserId); err != nil {
			return fmt.Errorf("achievements: %w", err)
		}
		return nil
	default:
		logger.WithFields(logrus.Fields{
			"field":      "dispatchAppEvent",
			"event_type": event.EventType,
		}).Warn("unknown app event type; dropping")
		return nil
	}
}

// requireInternalToken gates scheduler/ops endpoints on a shared secret.
func requireInternalToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(os.Getenv("INTERNAL_API_TOKEN"))
		if expected == "" {
			// Refuse to serve internal endpoints until the secret is configured.
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "internal API not configured"})
			return
		}
		got := strings.TrimSpace(c.GetHeader("x-internal-token"))
		if got == "" {
			got = strings.TrimPrefix(strings.TrimSpace(c.GetHeader("Authorization")), "Bearer ")
		}
		if got != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Request = c.Request.WithContext(utils.SetIsAdminInContext(c.Request.Context(), true))
		c.Next()
	}
}

func processQueueHandler(sender push.Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		batchSize := 50
		if v := strings.TrimSpace(c.Query("batch_size")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "batch_size must be a positive integer"})
				return
			}
			batchSize = n
		}
		if batchSize > notifications.MaxBatchSize {
			batchSize = notifications.MaxBatchSize
		}

		deliverer := notifications.NewDeliverer(config.GetDB(), logger, sender)
		processor := notifications.NewProcessor(config.GetDB(), logger, deliverer)
		result, err := processor.ProcessBatch(c.Request.Context(), batchSize)
		if err != nil {
			config.LogError(logger, "handlers.go", "processQueueHandler", "ProcessBatch", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}

type deliverRequest struct {
	QueueId      int             `json:"queue_id"`
	DelaySeconds int             `json:"delay_seconds"`
	UserId       string          `json:"user_id"`
	Type         string          `json:"notification_type"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	Data         json.RawMessage `json:"data"`
}

const maxDeliverDelaySeconds = 120

func deliverHandler(sender push.Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		var req deliverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		deliverer := notifications.NewDeliverer(config.GetDB(), logger, sender)
		processor := notifications.NewProcessor(config.GetDB(), logger, deliverer)

		// Mode 1: deliver an already queued entry by id.
		if req.QueueId > 0 {
			delivery, status, err := processor.ProcessEntry(c.Request.Context(), req.QueueId)
			if err != nil {
				c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"success":      status == models.QueueStatusSent,
				"status":       status,
				"successCount": delivery.SuccessCount,
				"failureCount": delivery.FailureCount,
				"pushIds":      delivery.PushIds,
			})
			return
		}

		// Mode 2: enqueue a new notification, with an optional short delay.
		delay := req.DelaySeconds
		if delay < 0 {
			delay = 0
		}
		if delay > maxDeliverDelaySeconds {
			delay = maxDeliverDelaySeconds
		}
		params := notifications.EnqueueParams{
			UserId:           req.UserId,
			NotificationType: req.Type,
			Title:            req.Title,
			Body:             req.Body,
			Data:             req.Data,
		}
		if delay > 0 {
			at := time.Now().UTC().Add(time.Duration(delay) * time.Second)
			params.ScheduledFor = &at
		}
		result, err := notifications.Enqueue(c.Request.Context(), params)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		// Delayed entries are picked up by the processor once due.
		var delivery notifications.DeliveryResult
		if delay == 0 && result.Queued {
			var err error
			if delivery, _, err = processor.ProcessEntry(c.Request.Context(), result.ID); err != nil {
				config.LogError(logger, "handlers.go", "deliverHandler", "immediate delivery", result.ID, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"queue_id":     result.ID,
			"successCount": delivery.SuccessCount,
			"failureCount": delivery.FailureCount,
			"pushIds":      delivery.PushIds,
		})
	}
}

type decisionRequest struct {
	UserId     string      `json:"user_id" binding:"required"`
	CategoryId int         `json:"category_id"`
	GoalId     int         `json:"goal_id"`
	Amount     json.Number `json:"amount"`
	Date       *time.Time  `json:"date"`
}

func (r *decisionRequest) dateOrNow() time.Time {
	if r.Date != nil {
		return *r.Date
	}
	return time.Now().UTC()
}

func budgetAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		result, err := notifications.EvaluateBudgetAlert(c.Request.Context(), req.UserId, req.CategoryId, req.dateOrNow())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}

func anomalyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		amount, err := decimal.NewFromString(req.Amount.String())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "amount must be a decimal number"})
			return
		}
		result, err := notifications.EvaluateAnomaly(c.Request.Context(), req.UserId, req.CategoryId, amount, req.dateOrNow())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}

func goalProgressHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		if req.GoalId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "goal_id required"})
			return
		}
		result, err := notifications.EvaluateGoalProgress(c.Request.Context(), req.UserId, req.GoalId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}

func achievementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		result, err := notifications.EvaluateAchievements(c.Request.Context(), req.UserId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}

type requeueFailedRequest struct {
	UserId           string `json:"user_id"`
	OlderThanMinutes int    `json:"older_than_minutes"`
	Limit            int    `json:"limit"`
}

func requeueFailedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requeueFailedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		olderThan := time.Duration(req.OlderThanMinutes) * time.Minute
		count, err := notifications.RequeueFailed(c.Request.Context(), req.UserId, olderThan, req.Limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requeued": count})
	}
}

// requireUserToken authenticates facade requests via JWT and stashes the
// user id in the request context.
func requireUserToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("token"))
		if raw == "" {
			raw = strings.TrimPrefix(strings.TrimSpace(c.GetHeader("Authorization")), "Bearer ")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		token, err := utils.JwtValidate(raw)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims, ok := token.Claims.(*utils.JwtCustomClaim)
		if !ok || claims.UserId == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}
		ctx := utils.SetUserIdInContext(c.Request.Context(), claims.UserId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newQueueClient() *notifications.QueueClient {
	return notifications.NewQueueClient(config.GetLogger())
}

type facadeEnqueueRequest struct {
	NotificationType string          `json:"notification_type" binding:"required"`
	Title            string          `json:"title" binding:"required"`
	Body             string          `json:"body" binding:"required"`
	Data             json.RawMessage `json:"data"`
	ScheduledFor     *time.Time      `json:"scheduled_for"`
	IdempotencyKey   string          `json:"idempotency_key"`
}

func facadeEnqueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req facadeEnqueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ParseValidationError(err)})
			return
		}
		result, err := newQueueClient().Enqueue(c.Request.Context(), notifications.EnqueueParams{
			UserId:           userId,
			NotificationType: req.NotificationType,
			Title:            req.Title,
			Body:             req.Body,
			Data:             req.Data,
			ScheduledFor:     req.ScheduledFor,
			IdempotencyKey:   req.IdempotencyKey,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := http.StatusCreated
		if !result.Queued {
			// Deduplicated against an existing idempotency key.
			status = http.StatusOK
		}
		c.JSON(status, result)
	}
}

func facadePendingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		limit := 50
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := newQueueClient().Pending(c.Request.Context(), userId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": entries})
	}
}

func facadeStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		stats, err := newQueueClient().Stats(c.Request.Context(), userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// facadeSubscribeHandler streams newly enqueued notifications as
// server-sent events until the client disconnects.
func facadeSubscribeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ch, err := newQueueClient().Subscribe(c.Request.Context(), userId)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Stream(func(w io.Writer) bool {
			entry, open := <-ch
			if !open {
				return false
			}
			c.SSEvent("notification", entry)
			return true
		})
	}
}

type registerDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

func registerDeviceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req registerDeviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, err := models.RegisterDeviceToken(c.Request.Context(), userId, req.Token, req.Platform)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, token)
	}
}

func unregisterDeviceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token := c.Param("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		if err := models.InvalidateDeviceTokenByValue(c.Request.Context(), userId, token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
