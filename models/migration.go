package models

import (
	"log"

	"github.com/John-Prabu-A/budgetzen-backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Category{}, &Budget{}, &Expense{},
		&SavingsGoal{}, &GoalContribution{},
		&NotificationQueueEntry{}, &DeviceToken{}, &NotificationPreferences{},
		&AchievementAward{}, &GoalMilestoneNotified{},
		&NotificationDeliveryLog{}, &ProcessorRunLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
