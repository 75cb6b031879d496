package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OwnerType distinguishes whose reminder settings a record holds
type OwnerType string

const (
	OwnerPatient OwnerType = "patient"
	OwnerDoctor  OwnerType = "doctor"
)

// CustomReminder is a user-defined reminder offset, optionally restricted
// to a subset of channels. An empty channel list means every enabled
// channel.
type CustomReminder struct {
	HoursBefore int               `json:"hours_before" bson:"hours_before"`
	Channels    []ReminderChannel `json:"channels,omitempty" bson:"channels,omitempty"`
}

// ReminderSettings holds one owner's channel and timing preferences.
// Exactly one record exists per owner; it is created lazily with
// DefaultReminderSettings the first time it is needed.
type ReminderSettings struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID             string             `json:"owner_id" bson:"owner_id"`
	OwnerType           OwnerType          `json:"owner_type" bson:"owner_type"`
	EmailEnabled        bool               `json:"email_enabled" bson:"email_enabled"`
	SMSEnabled          bool               `json:"sms_enabled" bson:"sms_enabled"`
	PushEnabled         bool               `json:"push_enabled" bson:"push_enabled"`
	InAppEnabled        bool               `json:"in_app_enabled" bson:"in_app_enabled"`
	Reminder24hEnabled  bool               `json:"reminder_24h_enabled" bson:"reminder_24h_enabled"`
	Reminder2hEnabled   bool               `json:"reminder_2h_enabled" bson:"reminder_2h_enabled"`
	FirstReminderHours  int                `json:"first_reminder_hours" bson:"first_reminder_hours"`
	SecondReminderHours int                `json:"second_reminder_hours" bson:"second_reminder_hours"`
	CustomReminders     []CustomReminder   `json:"custom_reminders,omitempty" bson:"custom_reminders,omitempty"`
	QuietHoursStart     string             `json:"quiet_hours_start,omitempty" bson:"quiet_hours_start,omitempty"` // "22:00"
	QuietHoursEnd       string             `json:"quiet_hours_end,omitempty" bson:"quiet_hours_end,omitempty"`     // "08:00"
	Timezone            string             `json:"timezone" bson:"timezone"`
	IsActive            bool               `json:"is_active" bson:"is_active"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" bson:"updated_at"`
}

// DefaultReminderSettings returns the documented defaults applied when an
// owner has no settings record yet
func DefaultReminderSettings(ownerID string, ownerType OwnerType) *ReminderSettings {
	return &ReminderSettings{
		OwnerID:             ownerID,
		OwnerType:           ownerType,
		EmailEnabled:        true,
		SMSEnabled:          false,
		PushEnabled:         true,
		InAppEnabled:        true,
		Reminder24hEnabled:  true,
		Reminder2hEnabled:   true,
		FirstReminderHours:  24,
		SecondReminderHours: 2,
		Timezone:            "UTC",
		IsActive:            true,
	}
}

// EnabledChannels returns the union of channels whose flag is on. An
// empty result means nothing should be scheduled; there is no implicit
// fallback channel.
func (s *ReminderSettings) EnabledChannels() []ReminderChannel {
	var channels []ReminderChannel
	if s.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if s.SMSEnabled {
		channels = append(channels, ChannelSMS)
	}
	if s.PushEnabled {
		channels = append(channels, ChannelPush)
	}
	if s.InAppEnabled {
		channels = append(channels, ChannelInApp)
	}
	return channels
}

// ChannelEnabled reports whether a single channel is switched on
func (s *ReminderSettings) ChannelEnabled(c ReminderChannel) bool {
	switch c {
	case ChannelEmail:
		return s.EmailEnabled
	case ChannelSMS:
		return s.SMSEnabled
	case ChannelPush:
		return s.PushEnabled
	case ChannelInApp:
		return s.InAppEnabled
	}
	return false
}
