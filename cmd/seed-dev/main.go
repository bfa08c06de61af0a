// Command seed-dev loads a small demo dataset for local development:
// one user with a category, an active budget, a month of expenses, a savings
// goal, and a registered device token. Prints a JWT for exercising the
// /api endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"github.com/John-Prabu-A/budgetzen-backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	userId := flag.String("user", "dev-user-1", "user id to seed")
	deviceToken := flag.String("device-token", "ExponentPushToken[dev-local-1]", "push token to register")
	publishEvent := flag.Bool("publish-event", false, "publish an expense_added event to PUBSUB_TOPIC after seeding")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	ctx := context.Background()
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	category := models.Category{
		UserId: *userId,
		Name:   "Groceries",
		Icon:   "cart",
		Color:  "#4CAF50",
	}
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		log.Fatal(err)
	}

	budget := models.Budget{
		UserId:     *userId,
		CategoryId: category.ID,
		Amount:     decimal.NewFromInt(500),
		StartDate:  monthStart,
		IsActive:   utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&budget).Error; err != nil {
		log.Fatal(err)
	}

	// A month of daily spend, enough history for the anomaly detector.
	for day := 0; day < 28; day++ {
		expense := models.Expense{
			UserId:      *userId,
			CategoryId:  category.ID,
			Amount:      decimal.NewFromInt(int64(10 + day%5)),
			Description: fmt.Sprintf("seed expense %d", day+1),
			ExpenseDate: monthStart.AddDate(0, 0, day),
		}
		if err := db.WithContext(ctx).Create(&expense).Error; err != nil {
			log.Fatal(err)
		}
	}

	goal := models.SavingsGoal{
		UserId:        *userId,
		Name:          "Emergency Fund",
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(300),
	}
	if err := db.WithContext(ctx).Create(&goal).Error; err != nil {
		log.Fatal(err)
	}

	if _, err := models.RegisterDeviceToken(ctx, *userId, *deviceToken, "ios"); err != nil {
		log.Fatal(err)
	}

	if *publishEvent {
		// Local emulators start without the topic, so create it first.
		client, err := config.GetPubSubClient(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := config.CreateTopicIfNotExists(client, os.Getenv("PUBSUB_TOPIC")); err != nil {
			log.Fatal(err)
		}
		eventDate := now
		msgId, err := config.PublishAppEvent(ctx, config.AppEvent{
			EventType:  "expense_added",
			UserId:     *userId,
			CategoryId: category.ID,
			Amount:     json.Number("42.50"),
			Date:       &eventDate,
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("published app event message_id=%s\n", msgId)
	}

	jwt, err := utils.JwtGenerate(*userId)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("seeded user=%s category=%d budget=%d goal=%d\n", *userId, category.ID, budget.ID, goal.ID)
	fmt.Printf("JWT: %s\n", jwt)
}
