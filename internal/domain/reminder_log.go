package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TriggerType records what initiated a reminder attempt
type TriggerType string

const (
	TriggerAutomatic TriggerType = "automatic"
	TriggerManual    TriggerType = "manual"
	TriggerTest      TriggerType = "test"
)

// LogStatus represents the delivery status recorded on a log entry
type LogStatus string

const (
	LogStatusPending   LogStatus = "pending"
	LogStatusSent      LogStatus = "sent"
	LogStatusFailed    LogStatus = "failed"
	LogStatusCancelled LogStatus = "cancelled"
)

// ReminderLog is the append-only audit entry for one delivery attempt.
// Entries are never mutated except to append status-transition fields;
// retries update the same entry rather than creating a new one.
type ReminderLog struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AppointmentID string             `json:"appointment_id" bson:"appointment_id"`
	UserID        string             `json:"user_id" bson:"user_id"`
	Type          ReminderType       `json:"type" bson:"type"`
	Channel       ReminderChannel    `json:"channel" bson:"channel"`
	Trigger       TriggerType        `json:"trigger" bson:"trigger"`
	ScheduledFor  time.Time          `json:"scheduled_for" bson:"scheduled_for"`
	SentAt        *time.Time         `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	DeliveredAt   *time.Time         `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	Status        LogStatus          `json:"status" bson:"status"`
	TrackingToken string             `json:"tracking_token,omitempty" bson:"tracking_token,omitempty"`
	Error         string             `json:"error,omitempty" bson:"error,omitempty"`
	Metadata      map[string]string  `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}
