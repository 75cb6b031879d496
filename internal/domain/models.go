package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
)

// ReminderChannel represents the delivery medium for a reminder
type ReminderChannel string

const (
	ChannelEmail ReminderChannel = "email"
	ChannelSMS   ReminderChannel = "sms"
	ChannelPush  ReminderChannel = "push"
	ChannelInApp ReminderChannel = "in_app"
)

// AllChannels lists every supported channel in dispatch order
var AllChannels = []ReminderChannel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp}

// Valid reports whether the channel is one of the supported set
func (c ReminderChannel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// ReminderType classifies a reminder by its offset from the appointment
type ReminderType string

const (
	ReminderType24Hour ReminderType = "24h"
	ReminderType2Hour  ReminderType = "2h"
	ReminderType1Hour  ReminderType = "1h"
	ReminderTypeCustom ReminderType = "custom"
)

// AppointmentStatus represents the lifecycle status of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled          AppointmentStatus = "scheduled"
	AppointmentConfirmed          AppointmentStatus = "confirmed"
	AppointmentCancelledByPatient AppointmentStatus = "cancelled_by_patient"
	AppointmentCancelledByClinic  AppointmentStatus = "cancelled_by_clinic"
	AppointmentCompleted          AppointmentStatus = "completed"
	AppointmentNoShow             AppointmentStatus = "no_show"
)

// Terminal reports whether the status excludes further reminders
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentCancelledByPatient, AppointmentCancelledByClinic, AppointmentCompleted, AppointmentNoShow:
		return true
	}
	return false
}

// MinimumLeadTime is the shortest useful gap between now and the
// appointment start; anything closer is too soon to remind about.
const MinimumLeadTime = 30 * time.Minute

// Appointment is the read-only view of a clinic appointment. Scheduling
// decisions depend on status and start time only.
type Appointment struct {
	ID        string             `json:"id" bson:"_id"`
	PatientID string             `json:"patient_id" bson:"patient_id"`
	DoctorID  string             `json:"doctor_id" bson:"doctor_id"`
	StartsAt  time.Time          `json:"starts_at" bson:"starts_at"`
	EndsAt    time.Time          `json:"ends_at" bson:"ends_at"`
	Status    AppointmentStatus  `json:"status" bson:"status"`
	Location  string             `json:"location,omitempty" bson:"location,omitempty"`
	DeletedAt *time.Time         `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// CheckEligibility applies the reminder eligibility gate. It returns an
// Ineligible error naming the failed check, or nil. The scheduling engine
// runs it once per scheduling attempt and the delivery worker re-runs it
// at fire time, since appointment state may change in between.
func (a *Appointment) CheckEligibility(now time.Time) error {
	if a.Status.Terminal() {
		return errors.NewIneligibleError(fmt.Sprintf("appointment status is %s", a.Status))
	}
	if !a.StartsAt.After(now) {
		return errors.NewIneligibleError("appointment start time is not in the future")
	}
	if a.StartsAt.Sub(now) < MinimumLeadTime {
		return errors.NewIneligibleError("appointment starts in less than 30 minutes")
	}
	return nil
}

// JobStatus represents the lifecycle state of a scheduled reminder job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSent       JobStatus = "sent"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. A terminal job is never
// resurrected, only superseded by a newly created job.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSent, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// allowedPrior maps each target status to the statuses a job may move from
var allowedPrior = map[JobStatus][]JobStatus{
	JobStatusProcessing: {JobStatusPending, JobStatusProcessing},
	JobStatusSent:       {JobStatusProcessing},
	JobStatusFailed:     {JobStatusPending, JobStatusProcessing},
	JobStatusCancelled:  {JobStatusPending, JobStatusProcessing},
}

// AllowedPriorStatuses returns the statuses from which a transition into
// the target status is permitted. Transitions are one-directional;
// anything out of a terminal state is rejected.
func AllowedPriorStatuses(to JobStatus) []JobStatus {
	return allowedPrior[to]
}

// CanTransition reports whether a job may move from one status to another
func CanTransition(from, to JobStatus) bool {
	for _, s := range allowedPrior[to] {
		if s == from {
			return true
		}
	}
	return false
}

// ScheduledReminderJob tracks one queued reminder with enough metadata to
// cancel or re-query it
type ScheduledReminderJob struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AppointmentID string             `json:"appointment_id" bson:"appointment_id"`
	TrackingID    string             `json:"tracking_id" bson:"tracking_id"`
	Type          ReminderType       `json:"type" bson:"type"`
	Channel       ReminderChannel    `json:"channel" bson:"channel"`
	ScheduledFor  time.Time          `json:"scheduled_for" bson:"scheduled_for"`
	Status        JobStatus          `json:"status" bson:"status"`
	Attempts      int                `json:"attempts" bson:"attempts"`
	LastAttempted *time.Time         `json:"last_attempted,omitempty" bson:"last_attempted,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	Payload       ReminderPayload    `json:"payload" bson:"payload"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// ComposeTrackingID builds the tracking identifier for one scheduled
// reminder instance. The creation epoch orders reschedules of the same
// logical (appointment, type, channel) slot; the random tail keeps ids
// distinct even when two jobs for the slot are registered in the same
// millisecond, e.g. two custom reminders on one channel.
func ComposeTrackingID(appointmentID string, t ReminderType, c ReminderChannel, createdAt time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", appointmentID, t, c, createdAt.UnixMilli(), uuid.NewString())
}

// FailedReminder records a reminder that failed after all retries, kept
// for inspection and manual retry from admin tooling
type FailedReminder struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	JobID         primitive.ObjectID `json:"job_id" bson:"job_id"`
	AppointmentID string             `json:"appointment_id" bson:"appointment_id"`
	UserID        string             `json:"user_id" bson:"user_id"`
	Type          ReminderType       `json:"type" bson:"type"`
	Channel       ReminderChannel    `json:"channel" bson:"channel"`
	Error         string             `json:"error" bson:"error"`
	Attempts      int                `json:"attempts" bson:"attempts"`
	Payload       ReminderPayload    `json:"payload" bson:"payload"`
	FailedAt      time.Time          `json:"failed_at" bson:"failed_at"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}
