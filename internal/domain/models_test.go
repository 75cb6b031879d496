package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckEligibility(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		status   AppointmentStatus
		startsAt time.Time
		wantErr  bool
	}{
		{"confirmed appointment far in the future", AppointmentConfirmed, now.Add(48 * time.Hour), false},
		{"scheduled appointment just past the lead time", AppointmentScheduled, now.Add(31 * time.Minute), false},
		{"cancelled by patient", AppointmentCancelledByPatient, now.Add(48 * time.Hour), true},
		{"cancelled by clinic", AppointmentCancelledByClinic, now.Add(48 * time.Hour), true},
		{"completed", AppointmentCompleted, now.Add(48 * time.Hour), true},
		{"no show", AppointmentNoShow, now.Add(48 * time.Hour), true},
		{"start time in the past", AppointmentConfirmed, now.Add(-time.Hour), true},
		{"start time is now", AppointmentConfirmed, now, true},
		{"starts in under 30 minutes", AppointmentConfirmed, now.Add(10 * time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt := &Appointment{ID: "a1", Status: tt.status, StartsAt: tt.startsAt}
			err := appt.CheckEligibility(now)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusProcessing, JobStatusProcessing, true},
		{JobStatusProcessing, JobStatusSent, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusPending, JobStatusCancelled, true},
		{JobStatusProcessing, JobStatusCancelled, true},
		{JobStatusPending, JobStatusSent, false},
		{JobStatusSent, JobStatusCancelled, false},
		{JobStatusCancelled, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusPending, false},
		{JobStatusCancelled, JobStatusSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestComposeTrackingID(t *testing.T) {
	createdAt := time.Now()
	id := ComposeTrackingID("appt-9", ReminderType24Hour, ChannelEmail, createdAt)

	assert.True(t, strings.HasPrefix(id, "appt-9:24h:email:"))

	// A later reschedule of the same logical slot produces a distinct id
	other := ComposeTrackingID("appt-9", ReminderType24Hour, ChannelEmail, createdAt.Add(time.Millisecond))
	assert.NotEqual(t, id, other)

	// Two jobs registered for the same slot in the same millisecond, like
	// two custom reminders on one channel, still get distinct ids
	twin := ComposeTrackingID("appt-9", ReminderType24Hour, ChannelEmail, createdAt)
	assert.NotEqual(t, id, twin)
}

func TestEnabledChannels(t *testing.T) {
	s := DefaultReminderSettings("p1", OwnerPatient)
	assert.ElementsMatch(t,
		[]ReminderChannel{ChannelEmail, ChannelPush, ChannelInApp},
		s.EnabledChannels(),
		"defaults: email and push on, sms off")

	s.EmailEnabled = false
	s.PushEnabled = false
	s.InAppEnabled = false
	assert.Empty(t, s.EnabledChannels(), "no enabled channels means nothing to schedule")
}

func TestDefaultReminderSettings(t *testing.T) {
	s := DefaultReminderSettings("p1", OwnerPatient)

	assert.True(t, s.EmailEnabled)
	assert.False(t, s.SMSEnabled)
	assert.True(t, s.PushEnabled)
	assert.True(t, s.Reminder24hEnabled)
	assert.True(t, s.Reminder2hEnabled)
	assert.Equal(t, 24, s.FirstReminderHours)
	assert.Equal(t, 2, s.SecondReminderHours)
	assert.True(t, s.IsActive)
}
