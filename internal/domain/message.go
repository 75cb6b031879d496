package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReminderPayload is the opaque snapshot captured at scheduling time and
// used to reconstruct the delivery without re-reading mutable appointment
// state
type ReminderPayload struct {
	PatientName string    `json:"patient_name" bson:"patient_name"`
	DoctorName  string    `json:"doctor_name" bson:"doctor_name"`
	StartsAt    time.Time `json:"starts_at" bson:"starts_at"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty"`
	Notes       string    `json:"notes,omitempty" bson:"notes,omitempty"`
}

// DeliveryMessage is the payload enqueued for the delivery worker. It
// carries everything the worker needs at fire time.
type DeliveryMessage struct {
	MessageID     string          `json:"message_id"`
	JobID         string          `json:"job_id"`
	TrackingID    string          `json:"tracking_id"`
	AppointmentID string          `json:"appointment_id"`
	UserID        string          `json:"user_id"`
	Type          ReminderType    `json:"type"`
	Channel       ReminderChannel `json:"channel"`
	Trigger       TriggerType     `json:"trigger"`
	ScheduledFor  time.Time       `json:"scheduled_for"`
	Attempt       int             `json:"attempt"`
	LogID         string          `json:"log_id,omitempty"`
	Payload       ReminderPayload `json:"payload"`
}

// User is the read-only view of a clinic user holding the contact fields
// each channel sender resolves recipients from
type User struct {
	ID            string `json:"id" bson:"_id"`
	Name          string `json:"name" bson:"name"`
	Email         string `json:"email,omitempty" bson:"email,omitempty"`
	Phone         string `json:"phone,omitempty" bson:"phone,omitempty"`
	MobilePhone   string `json:"mobile_phone,omitempty" bson:"mobile_phone,omitempty"`
	WorkPhone     string `json:"work_phone,omitempty" bson:"work_phone,omitempty"`
	FCMToken      string `json:"fcm_token,omitempty" bson:"fcm_token,omitempty"`
	DeviceTokenV1 string `json:"device_token,omitempty" bson:"device_token,omitempty"`
}

// UserDevice is one registered device in the user-device registry,
// preferred over the fallback token fields on User
type UserDevice struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     string             `json:"user_id" bson:"user_id"`
	Token      string             `json:"token" bson:"token"`
	Platform   string             `json:"platform" bson:"platform"` // ios, android, web
	LastSeenAt time.Time          `json:"last_seen_at" bson:"last_seen_at"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// InAppNotification is the inbox row written by the in-app channel sender
type InAppNotification struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        string             `json:"user_id" bson:"user_id"`
	AppointmentID string             `json:"appointment_id" bson:"appointment_id"`
	Title         string             `json:"title" bson:"title"`
	Body          string             `json:"body" bson:"body"`
	ReadAt        *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}
