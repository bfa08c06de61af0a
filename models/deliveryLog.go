package models

import (
	"time"
)

type DeliveryOutcome = string

const (
	DeliveryOutcomeDelivered DeliveryOutcome = "DELIVERED"
	DeliveryOutcomeFailed    DeliveryOutcome = "FAILED"
	DeliveryOutcomeInvalid   DeliveryOutcome = "INVALID_TOKEN"
)

// NotificationDeliveryLog records one push attempt per device token.
type NotificationDeliveryLog struct {
	ID            int             `gorm:"primary_key" json:"id"`
	QueueEntryId  int             `gorm:"not null;index" json:"queue_entry_id"`
	DeviceTokenId int             `gorm:"not null;index" json:"device_token_id"`
	Token         string          `gorm:"size:255;not null" json:"token"`
	Outcome       DeliveryOutcome `gorm:"size:20;not null" json:"outcome"`
	PushId        string          `gorm:"size:255" json:"push_id"`
	Error         *string         `gorm:"type:text" json:"error"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ProcessorRunLog records one queue-processor batch execution, including
// failed runs (success=false).
type ProcessorRunLog struct {
	ID         int       `gorm:"primary_key" json:"id"`
	WorkerId   string    `gorm:"size:100;not null" json:"worker_id"`
	Processed  int       `gorm:"not null;default:0" json:"processed"`
	Sent       int       `gorm:"not null;default:0" json:"sent"`
	Retried    int       `gorm:"not null;default:0" json:"retried"`
	Failed     int       `gorm:"not null;default:0" json:"failed"`
	Success    bool      `gorm:"not null;default:true" json:"success"`
	Error      *string   `gorm:"type:text" json:"error"`
	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	FinishedAt time.Time `gorm:"not null" json:"finished_at"`
}
