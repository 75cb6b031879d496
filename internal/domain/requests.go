package domain

// ScheduleRequest asks the engine to (re)schedule reminders for one
// appointment, optionally with explicit settings instead of the patient's
type ScheduleRequest struct {
	AppointmentID string            `json:"appointment_id" binding:"required"`
	Settings      *ReminderSettings `json:"settings,omitempty"`
}

// CancelRequest cancels every pending reminder for one appointment
type CancelRequest struct {
	AppointmentID string `json:"appointment_id" binding:"required"`
	Reason        string `json:"reason"`
}

// BulkOperation names one of the supported bulk actions
type BulkOperation string

const (
	BulkOpSchedule   BulkOperation = "schedule"
	BulkOpCancel     BulkOperation = "cancel"
	BulkOpReschedule BulkOperation = "reschedule"
	BulkOpTest       BulkOperation = "test"
)

// MaxBulkAppointments caps how many appointment ids one bulk request may carry
const MaxBulkAppointments = 100

// BulkRequest applies one operation to up to MaxBulkAppointments
// appointments, each processed independently
type BulkRequest struct {
	Operation      BulkOperation `json:"operation" binding:"required"`
	AppointmentIDs []string      `json:"appointment_ids" binding:"required"`
	Reason         string        `json:"reason,omitempty"`
	Channel        string        `json:"channel,omitempty"` // test operation only
}

// BulkResult reports the outcome for one appointment id in a bulk request
type BulkResult struct {
	AppointmentID string `json:"appointment_id"`
	Success       bool   `json:"success"`
	Scheduled     int    `json:"scheduled,omitempty"`
	Cancelled     int    `json:"cancelled,omitempty"`
	Error         string `json:"error,omitempty"`
}

// UpdateSettingsRequest is the partial settings payload accepted from the
// settings endpoints. Pointer fields distinguish "absent" from zero;
// unknown JSON keys are ignored by the decoder.
type UpdateSettingsRequest struct {
	EmailEnabled        *bool            `json:"email_enabled,omitempty"`
	SMSEnabled          *bool            `json:"sms_enabled,omitempty"`
	PushEnabled         *bool            `json:"push_enabled,omitempty"`
	InAppEnabled        *bool            `json:"in_app_enabled,omitempty"`
	Reminder24hEnabled  *bool            `json:"reminder_24h_enabled,omitempty"`
	Reminder2hEnabled   *bool            `json:"reminder_2h_enabled,omitempty"`
	FirstReminderHours  *int             `json:"first_reminder_hours,omitempty"`
	SecondReminderHours *int             `json:"second_reminder_hours,omitempty"`
	CustomReminders     []CustomReminder `json:"custom_reminders,omitempty"`
	QuietHoursStart     *string          `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd       *string          `json:"quiet_hours_end,omitempty"`
	Timezone            *string          `json:"timezone,omitempty"`
	IsActive            *bool            `json:"is_active,omitempty"`
}

// AppointmentEventRequest is posted by the surrounding admin backend when
// an appointment changes; Previous carries the pre-update snapshot on
// update events
type AppointmentEventRequest struct {
	Event    string       `json:"event" binding:"required,oneof=created updated deleted"`
	Previous *Appointment `json:"previous,omitempty"`
}

// GetLogsRequest filters the reminder log listing
type GetLogsRequest struct {
	AppointmentID string `form:"appointment_id"`
	UserID        string `form:"user_id"`
	Status        string `form:"status"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

// DeliveryReceipt is the provider callback payload updating a log entry
// by its provider-assigned tracking token
type DeliveryReceipt struct {
	TrackingToken string `json:"tracking_token" binding:"required"`
	Status        string `json:"status" binding:"required,oneof=delivered failed"`
	Reason        string `json:"reason,omitempty"`
}
