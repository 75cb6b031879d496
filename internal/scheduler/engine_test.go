package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

type fakeAppointments struct {
	byID map[string]*domain.Appointment
}

func (f *fakeAppointments) FindByID(ctx context.Context, id string) (*domain.Appointment, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, apperrors.NewNotFoundError("appointment not found", nil)
}

type fakeUsers struct{}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id, Name: "User " + id}, nil
}

type fakeSettings struct {
	settings *domain.ReminderSettings
}

func (f *fakeSettings) GetOrCreate(ctx context.Context, ownerID string, ownerType domain.OwnerType) (*domain.ReminderSettings, error) {
	if f.settings != nil {
		return f.settings, nil
	}
	return domain.DefaultReminderSettings(ownerID, ownerType), nil
}

type fakeJobs struct {
	mu        sync.Mutex
	created   []*domain.ScheduledReminderJob
	cancelled []string
}

func (f *fakeJobs) Create(ctx context.Context, job *domain.ScheduledReminderJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// The registry keeps a unique index on tracking_id
	for _, j := range f.created {
		if j.TrackingID == job.TrackingID {
			return fmt.Errorf("duplicate tracking id %q", job.TrackingID)
		}
	}
	job.ID = primitive.NewObjectID()
	job.Status = domain.JobStatusPending
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobs) FindPendingByAppointment(ctx context.Context, appointmentID string) ([]*domain.ScheduledReminderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []*domain.ScheduledReminderJob
	for _, j := range f.created {
		if j.AppointmentID == appointmentID && j.Status == domain.JobStatusPending {
			pending = append(pending, j)
		}
	}
	return pending, nil
}

func (f *fakeJobs) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.created {
		if j.ID.Hex() == id && !j.Status.Terminal() {
			j.Status = domain.JobStatusFailed
			j.FailureReason = reason
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobs) MarkCancelled(ctx context.Context, id, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.created {
		if j.ID.Hex() == id && !j.Status.Terminal() {
			j.Status = domain.JobStatusCancelled
			j.FailureReason = reason
			f.cancelled = append(f.cancelled, id)
			return true, nil
		}
	}
	return false, nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []*domain.ReminderLog
}

func (f *fakeLogs) Create(ctx context.Context, entry *domain.ReminderLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogs) MarkCancelled(ctx context.Context, id, reason string) error {
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  []*domain.DeliveryMessage
	delays    []time.Duration
	cancelled []string
}

func (f *fakeQueue) EnqueueWithDelay(ctx context.Context, msg *domain.DeliveryMessage, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, msg)
	f.delays = append(f.delays, delay)
	return nil
}

func (f *fakeQueue) Cancel(messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, messageID)
	return true
}

func (f *fakeQueue) Consume(ctx context.Context, handle queue.Handler) error {
	return nil
}

func newTestEngine(appointment *domain.Appointment, settings *domain.ReminderSettings) (*Engine, *fakeJobs, *fakeLogs, *fakeQueue) {
	jobs := &fakeJobs{}
	logs := &fakeLogs{}
	q := &fakeQueue{}
	engine := NewEngine(
		&fakeAppointments{byID: map[string]*domain.Appointment{appointment.ID: appointment}},
		&fakeUsers{},
		&fakeSettings{settings: settings},
		jobs,
		logs,
		q,
		logger.NewNop(),
	)
	return engine, jobs, logs, q
}

func futureAppointment(in time.Duration) *domain.Appointment {
	return &domain.Appointment{
		ID:        "appt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		StartsAt:  time.Now().Add(in),
		Status:    domain.AppointmentScheduled,
	}
}

func TestScheduleDefaultSettings(t *testing.T) {
	appointment := futureAppointment(48 * time.Hour)
	engine, jobs, logs, q := newTestEngine(appointment, nil)

	result, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	// Defaults enable email, push and in_app across the 24h and 2h offsets
	assert.Equal(t, 6, result.Scheduled)
	assert.Equal(t, 0, result.Skipped)
	assert.Len(t, jobs.created, 6)
	assert.Len(t, logs.entries, 6)
	assert.Len(t, q.enqueued, 6)

	for i, msg := range q.enqueued {
		assert.Equal(t, appointment.ID, msg.AppointmentID)
		assert.Equal(t, "patient-1", msg.UserID)
		assert.NotEmpty(t, msg.LogID)
		assert.Equal(t, jobs.created[i].ID.Hex(), msg.JobID)
		assert.Greater(t, q.delays[i], time.Duration(0))
	}
}

func TestSchedulePastOffsetSkipped(t *testing.T) {
	// Three hours out: the 24h offset already passed, the 2h one has not
	appointment := futureAppointment(3 * time.Hour)
	engine, _, _, q := newTestEngine(appointment, nil)

	result, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Scheduled)
	assert.Equal(t, 3, result.Skipped)
	for _, msg := range q.enqueued {
		assert.Equal(t, domain.ReminderType2Hour, msg.Type)
	}
}

func TestScheduleIneligible(t *testing.T) {
	tests := []struct {
		name        string
		appointment *domain.Appointment
	}{
		{"terminal status", &domain.Appointment{
			ID: "appt-1", PatientID: "p", DoctorID: "d",
			StartsAt: time.Now().Add(48 * time.Hour),
			Status:   domain.AppointmentCancelledByPatient,
		}},
		{"too soon", futureAppointment(10 * time.Minute)},
		{"in the past", futureAppointment(-1 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, jobs, _, _ := newTestEngine(tt.appointment, nil)

			_, err := engine.Schedule(context.Background(), tt.appointment.ID, domain.TriggerAutomatic, nil)

			assert.ErrorIs(t, err, apperrors.ErrIneligible)
			assert.Empty(t, jobs.created)
		})
	}
}

func TestScheduleReplacesPending(t *testing.T) {
	appointment := futureAppointment(48 * time.Hour)
	engine, jobs, _, q := newTestEngine(appointment, nil)

	_, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	result, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Cancelled)
	assert.Equal(t, 6, result.Scheduled)
	assert.Len(t, q.cancelled, 6)
	assert.Len(t, jobs.cancelled, 6)
}

func TestScheduleInactiveSettings(t *testing.T) {
	appointment := futureAppointment(48 * time.Hour)
	settings := domain.DefaultReminderSettings("patient-1", domain.OwnerPatient)
	settings.IsActive = false
	engine, jobs, _, _ := newTestEngine(appointment, settings)

	result, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Scheduled)
	assert.Empty(t, jobs.created)
}

func TestScheduleCustomReminderChannelIntersection(t *testing.T) {
	appointment := futureAppointment(100 * time.Hour)
	settings := domain.DefaultReminderSettings("patient-1", domain.OwnerPatient)
	settings.Reminder24hEnabled = false
	settings.Reminder2hEnabled = false
	settings.CustomReminders = []domain.CustomReminder{
		// sms is disabled by default, so only email survives
		{HoursBefore: 48, Channels: []domain.ReminderChannel{domain.ChannelEmail, domain.ChannelSMS}},
	}
	engine, jobs, _, _ := newTestEngine(appointment, settings)

	result, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scheduled)
	require.Len(t, jobs.created, 1)
	assert.Equal(t, domain.ReminderTypeCustom, jobs.created[0].Type)
	assert.Equal(t, domain.ChannelEmail, jobs.created[0].Channel)
}

func TestScheduleMultipleCustomRemindersSameChannel(t *testing.T) {
	appointment := futureAppointment(100 * time.Hour)
	settings := domain.DefaultReminderSettings("patient-1", domain.OwnerPatient)
	settings.Reminder24hEnabled = false
	settings.Reminder2hEnabled = false
	settings.CustomReminders = []domain.CustomReminder{
		{HoursBefore: 48, Channels: []domain.ReminderChannel{domain.ChannelEmail}},
		{HoursBefore: 12, Channels: []domain.ReminderChannel{domain.ChannelEmail}},
	}
	engine, jobs, _, _ := newTestEngine(appointment, settings)

	result, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	// Both custom reminders share type and channel within one pass, so
	// their tracking ids must not collide on the registry's unique index
	assert.Equal(t, 2, result.Scheduled)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, jobs.created, 2)
	assert.NotEqual(t, jobs.created[0].TrackingID, jobs.created[1].TrackingID)
}

func TestCancelAll(t *testing.T) {
	appointment := futureAppointment(48 * time.Hour)
	engine, jobs, _, q := newTestEngine(appointment, nil)

	_, err := engine.Schedule(context.Background(), appointment.ID, domain.TriggerAutomatic, nil)
	require.NoError(t, err)

	cancelled, err := engine.CancelAll(context.Background(), appointment.ID, "appointment cancelled")
	require.NoError(t, err)

	assert.Equal(t, 6, cancelled)
	assert.Len(t, q.cancelled, 6)
	for _, j := range jobs.created {
		assert.Equal(t, domain.JobStatusCancelled, j.Status)
	}
}

func TestSendTest(t *testing.T) {
	appointment := futureAppointment(48 * time.Hour)
	engine, jobs, _, q := newTestEngine(appointment, nil)

	err := engine.SendTest(context.Background(), appointment.ID, domain.ChannelEmail)
	require.NoError(t, err)

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, domain.TriggerTest, q.enqueued[0].Trigger)
	assert.Equal(t, time.Duration(0), q.delays[0])
	require.Len(t, jobs.created, 1)
	assert.Equal(t, domain.ReminderTypeCustom, jobs.created[0].Type)
}

func TestSendTestUnknownChannel(t *testing.T) {
	appointment := futureAppointment(48 * time.Hour)
	engine, _, _, _ := newTestEngine(appointment, nil)

	err := engine.SendTest(context.Background(), appointment.ID, domain.ReminderChannel("fax"))

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestShiftForQuietHours(t *testing.T) {
	settings := domain.DefaultReminderSettings("p", domain.OwnerPatient)
	settings.QuietHoursStart = "22:00"
	settings.QuietHoursEnd = "08:00"
	settings.Timezone = "UTC"

	appointmentAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	t.Run("inside window shifts to window end", func(t *testing.T) {
		fireAt := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
		shifted := shiftForQuietHours(fireAt, appointmentAt, settings)
		assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), shifted)
	})

	t.Run("outside window unchanged", func(t *testing.T) {
		fireAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, fireAt, shiftForQuietHours(fireAt, appointmentAt, settings))
	})

	t.Run("late evening shifts across midnight", func(t *testing.T) {
		fireAt := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
		shifted := shiftForQuietHours(fireAt, appointmentAt, settings)
		assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), shifted)
	})

	t.Run("shift past appointment keeps original", func(t *testing.T) {
		fireAt := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
		earlyAppointment := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
		assert.Equal(t, fireAt, shiftForQuietHours(fireAt, earlyAppointment, settings))
	})

	t.Run("no quiet hours configured", func(t *testing.T) {
		plain := domain.DefaultReminderSettings("p", domain.OwnerPatient)
		fireAt := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
		assert.Equal(t, fireAt, shiftForQuietHours(fireAt, appointmentAt, plain))
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		minutes int
		ok      bool
	}{
		{"22:00", 1320, true},
		{"08:30", 510, true},
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseClock(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		if tt.ok {
			assert.Equal(t, tt.minutes, got, tt.input)
		}
	}
}
