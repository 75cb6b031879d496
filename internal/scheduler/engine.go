package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/metrics"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// AppointmentSource provides read access to appointments
type AppointmentSource interface {
	FindByID(ctx context.Context, id string) (*domain.Appointment, error)
}

// UserSource provides read access to clinic users
type UserSource interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// SettingsSource provides the patient's reminder settings
type SettingsSource interface {
	GetOrCreate(ctx context.Context, ownerID string, ownerType domain.OwnerType) (*domain.ReminderSettings, error)
}

// JobStore is the job registry surface the engine writes through
type JobStore interface {
	Create(ctx context.Context, job *domain.ScheduledReminderJob) error
	FindPendingByAppointment(ctx context.Context, appointmentID string) ([]*domain.ScheduledReminderJob, error)
	MarkCancelled(ctx context.Context, id, reason string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
}

// LogStore records audit entries for scheduled reminders
type LogStore interface {
	Create(ctx context.Context, entry *domain.ReminderLog) error
	MarkCancelled(ctx context.Context, id, reason string) error
}

// ScheduleResult summarizes one scheduling pass over an appointment
type ScheduleResult struct {
	AppointmentID string `json:"appointment_id"`
	Scheduled     int    `json:"scheduled"`
	Skipped       int    `json:"skipped"`
	Cancelled     int    `json:"cancelled"`
}

// Engine computes reminder instants for an appointment and registers one
// job per (type, channel) pair. Scheduling is idempotent: every pass
// first cancels the appointment's pending jobs, so re-running it after an
// appointment change replaces rather than duplicates.
type Engine struct {
	appointments AppointmentSource
	users        UserSource
	settings     SettingsSource
	jobs         JobStore
	logs         LogStore
	queue        queue.DelayQueue
	logger       *logger.Logger

	// locks serializes scheduling passes per appointment so a cancel
	// and a reschedule cannot interleave
	locks keyedMutex
}

// NewEngine creates a scheduling engine
func NewEngine(
	appointments AppointmentSource,
	users UserSource,
	settings SettingsSource,
	jobs JobStore,
	logs LogStore,
	delayQueue queue.DelayQueue,
	log *logger.Logger,
) *Engine {
	return &Engine{
		appointments: appointments,
		users:        users,
		settings:     settings,
		jobs:         jobs,
		logs:         logs,
		queue:        delayQueue,
		logger:       log,
	}
}

// Schedule plans and enqueues every reminder for one appointment. It
// replaces any pending reminders the appointment already has. A nil
// settings override means the patient's stored settings are used.
func (e *Engine) Schedule(ctx context.Context, appointmentID string, trigger domain.TriggerType, override *domain.ReminderSettings) (*ScheduleResult, error) {
	unlock := e.locks.Lock(appointmentID)
	defer unlock()

	now := time.Now()
	result := &ScheduleResult{AppointmentID: appointmentID}

	appointment, err := e.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := appointment.CheckEligibility(now); err != nil {
		return nil, err
	}

	settings := override
	if settings == nil {
		settings, err = e.settings.GetOrCreate(ctx, appointment.PatientID, domain.OwnerPatient)
		if err != nil {
			return nil, err
		}
	}
	cancelled, err := e.cancelPending(ctx, appointmentID, "rescheduled")
	if err != nil {
		return nil, err
	}
	result.Cancelled = cancelled

	if !settings.IsActive {
		e.logger.Info("Reminders disabled for patient, nothing scheduled",
			"appointment_id", appointmentID,
			"patient_id", appointment.PatientID)
		return result, nil
	}

	enabled := settings.EnabledChannels()
	if len(enabled) == 0 {
		e.logger.Info("No channels enabled, nothing scheduled",
			"appointment_id", appointmentID)
		return result, nil
	}

	payload, err := e.snapshotPayload(ctx, appointment)
	if err != nil {
		return nil, err
	}

	for _, plan := range e.planInstants(appointment, settings) {
		fireAt := shiftForQuietHours(plan.fireAt, appointment.StartsAt, settings)
		if !fireAt.After(now) {
			// The offset already passed, e.g. a 24h reminder for an
			// appointment three hours away
			result.Skipped += len(plan.channels)
			continue
		}

		for _, channel := range plan.channels {
			if err := e.scheduleOne(ctx, appointment, payload, plan.reminderType, channel, fireAt, trigger, now); err != nil {
				e.logger.Error("Failed to schedule reminder",
					"appointment_id", appointmentID,
					"type", plan.reminderType,
					"channel", channel,
					"error", err)
				result.Skipped++
				continue
			}
			result.Scheduled++
		}
	}

	e.logger.Info("Scheduling pass complete",
		"appointment_id", appointmentID,
		"scheduled", result.Scheduled,
		"skipped", result.Skipped,
		"cancelled", result.Cancelled)

	return result, nil
}

// CancelAll cancels every pending reminder for an appointment
func (e *Engine) CancelAll(ctx context.Context, appointmentID, reason string) (int, error) {
	unlock := e.locks.Lock(appointmentID)
	defer unlock()

	if reason == "" {
		reason = "cancelled"
	}
	return e.cancelPending(ctx, appointmentID, reason)
}

// SendTest enqueues an immediate test reminder on one channel, bypassing
// the eligibility gate's lead-time check but not the existence check
func (e *Engine) SendTest(ctx context.Context, appointmentID string, channel domain.ReminderChannel) error {
	if !channel.Valid() {
		return errors.NewValidationError(fmt.Sprintf("unknown channel %q", channel), nil)
	}

	appointment, err := e.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	payload, err := e.snapshotPayload(ctx, appointment)
	if err != nil {
		return err
	}

	now := time.Now()
	job := &domain.ScheduledReminderJob{
		AppointmentID: appointment.ID,
		TrackingID:    domain.ComposeTrackingID(appointment.ID, domain.ReminderTypeCustom, channel, now),
		Type:          domain.ReminderTypeCustom,
		Channel:       channel,
		ScheduledFor:  now,
		Payload:       payload,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return err
	}

	msg := &domain.DeliveryMessage{
		MessageID:     job.ID.Hex(),
		JobID:         job.ID.Hex(),
		TrackingID:    job.TrackingID,
		AppointmentID: appointment.ID,
		UserID:        appointment.PatientID,
		Type:          domain.ReminderTypeCustom,
		Channel:       channel,
		Trigger:       domain.TriggerTest,
		ScheduledFor:  now,
		Payload:       payload,
	}
	return e.queue.EnqueueWithDelay(ctx, msg, 0)
}

type reminderPlan struct {
	reminderType domain.ReminderType
	fireAt       time.Time
	channels     []domain.ReminderChannel
}

// planInstants expands the settings into concrete (type, fire time,
// channels) triples, without filtering past instants
func (e *Engine) planInstants(appointment *domain.Appointment, settings *domain.ReminderSettings) []reminderPlan {
	enabled := settings.EnabledChannels()
	var plans []reminderPlan

	if settings.Reminder24hEnabled {
		plans = append(plans, reminderPlan{
			reminderType: domain.ReminderType24Hour,
			fireAt:       appointment.StartsAt.Add(-time.Duration(settings.FirstReminderHours) * time.Hour),
			channels:     enabled,
		})
	}
	if settings.Reminder2hEnabled {
		plans = append(plans, reminderPlan{
			reminderType: domain.ReminderType2Hour,
			fireAt:       appointment.StartsAt.Add(-time.Duration(settings.SecondReminderHours) * time.Hour),
			channels:     enabled,
		})
	}

	for _, custom := range settings.CustomReminders {
		if custom.HoursBefore <= 0 {
			continue
		}
		channels := enabled
		if len(custom.Channels) > 0 {
			channels = intersectChannels(custom.Channels, settings)
		}
		if len(channels) == 0 {
			continue
		}
		plans = append(plans, reminderPlan{
			reminderType: domain.ReminderTypeCustom,
			fireAt:       appointment.StartsAt.Add(-time.Duration(custom.HoursBefore) * time.Hour),
			channels:     channels,
		})
	}

	return plans
}

// scheduleOne registers and enqueues a single (type, channel) reminder
func (e *Engine) scheduleOne(
	ctx context.Context,
	appointment *domain.Appointment,
	payload domain.ReminderPayload,
	reminderType domain.ReminderType,
	channel domain.ReminderChannel,
	fireAt time.Time,
	trigger domain.TriggerType,
	now time.Time,
) error {
	job := &domain.ScheduledReminderJob{
		AppointmentID: appointment.ID,
		TrackingID:    domain.ComposeTrackingID(appointment.ID, reminderType, channel, now),
		Type:          reminderType,
		Channel:       channel,
		ScheduledFor:  fireAt,
		Payload:       payload,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}

	entry := &domain.ReminderLog{
		AppointmentID: appointment.ID,
		UserID:        appointment.PatientID,
		Type:          reminderType,
		Channel:       channel,
		Trigger:       trigger,
		ScheduledFor:  fireAt,
		Status:        domain.LogStatusPending,
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to create log entry: %w", err)
	}

	msg := &domain.DeliveryMessage{
		MessageID:     job.ID.Hex(),
		JobID:         job.ID.Hex(),
		TrackingID:    job.TrackingID,
		AppointmentID: appointment.ID,
		UserID:        appointment.PatientID,
		Type:          reminderType,
		Channel:       channel,
		Trigger:       trigger,
		ScheduledFor:  fireAt,
		LogID:         entry.ID.Hex(),
		Payload:       payload,
	}

	delay := time.Until(fireAt)
	if delay < 0 {
		// The instant slipped past while this pass ran; deliver now,
		// the worker re-checks eligibility anyway
		delay = 0
	}
	if err := e.queue.EnqueueWithDelay(ctx, msg, delay); err != nil {
		return fmt.Errorf("failed to enqueue reminder: %w", err)
	}
	metrics.ScheduledJobs.Inc()
	return nil
}

// cancelPending cancels the appointment's pending jobs and their queue
// entries. Queue cancellation is best-effort; a job the broker still
// fires is dropped by the worker's registry status check.
func (e *Engine) cancelPending(ctx context.Context, appointmentID, reason string) (int, error) {
	pending, err := e.jobs.FindPendingByAppointment(ctx, appointmentID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, job := range pending {
		e.queue.Cancel(job.ID.Hex())
		ok, err := e.jobs.MarkCancelled(ctx, job.ID.Hex(), reason)
		if err != nil {
			// One stuck row must not block the rest; mark it and move on
			e.logger.Error("Failed to cancel job",
				"job_id", job.ID.Hex(),
				"error", err)
			if _, ferr := e.jobs.MarkFailed(ctx, job.ID.Hex(), "cancellation_failed: "+err.Error()); ferr != nil {
				e.logger.Error("Failed to flag job after cancellation error",
					"job_id", job.ID.Hex(),
					"error", ferr)
			}
			continue
		}
		if ok {
			cancelled++
			metrics.ScheduledJobs.Dec()
		}
	}
	return cancelled, nil
}

// snapshotPayload captures the names and location the delivery templates
// need, so a fired reminder does not depend on live appointment state
func (e *Engine) snapshotPayload(ctx context.Context, appointment *domain.Appointment) (domain.ReminderPayload, error) {
	payload := domain.ReminderPayload{
		StartsAt: appointment.StartsAt,
		Location: appointment.Location,
	}

	patient, err := e.users.FindByID(ctx, appointment.PatientID)
	if err != nil {
		return payload, fmt.Errorf("failed to load patient: %w", err)
	}
	payload.PatientName = patient.Name

	doctor, err := e.users.FindByID(ctx, appointment.DoctorID)
	if err != nil {
		return payload, fmt.Errorf("failed to load doctor: %w", err)
	}
	payload.DoctorName = doctor.Name

	return payload, nil
}

// intersectChannels keeps the requested channels that are also enabled
func intersectChannels(requested []domain.ReminderChannel, settings *domain.ReminderSettings) []domain.ReminderChannel {
	var out []domain.ReminderChannel
	for _, c := range requested {
		if c.Valid() && settings.ChannelEnabled(c) {
			out = append(out, c)
		}
	}
	return out
}

// shiftForQuietHours moves a fire time that lands inside the patient's
// quiet window to the window's end, unless the shifted instant would no
// longer precede the appointment
func shiftForQuietHours(fireAt, appointmentAt time.Time, settings *domain.ReminderSettings) time.Time {
	startMin, okStart := parseClock(settings.QuietHoursStart)
	endMin, okEnd := parseClock(settings.QuietHoursEnd)
	if !okStart || !okEnd || startMin == endMin {
		return fireAt
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := fireAt.In(loc)
	cur := local.Hour()*60 + local.Minute()

	var inWindow bool
	if startMin < endMin {
		inWindow = cur >= startMin && cur < endMin
	} else {
		// Window wraps midnight, e.g. 22:00 to 08:00
		inWindow = cur >= startMin || cur < endMin
	}
	if !inWindow {
		return fireAt
	}

	windowEnd := time.Date(local.Year(), local.Month(), local.Day(), endMin/60, endMin%60, 0, 0, loc)
	if !windowEnd.After(local) {
		windowEnd = windowEnd.Add(24 * time.Hour)
	}
	if !windowEnd.Before(appointmentAt) {
		return fireAt
	}
	return windowEnd
}

// parseClock parses "HH:MM" into minutes since midnight
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// keyedMutex provides one mutex per key with refcounted cleanup
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
