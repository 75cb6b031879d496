package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/sender"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/config"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledReminderJob
}

func newFakeJobs(jobs ...*domain.ScheduledReminderJob) *fakeJobs {
	f := &fakeJobs{jobs: make(map[string]*domain.ScheduledReminderJob)}
	for _, j := range jobs {
		f.jobs[j.ID.Hex()] = j
	}
	return f
}

func (f *fakeJobs) FindByID(ctx context.Context, id string) (*domain.ScheduledReminderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, assert.AnError
}

func (f *fakeJobs) transition(id string, to domain.JobStatus, mutate func(*domain.ScheduledReminderJob)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return false, assert.AnError
	}
	if !domain.CanTransition(j.Status, to) {
		return false, nil
	}
	j.Status = to
	if mutate != nil {
		mutate(j)
	}
	return true, nil
}

func (f *fakeJobs) MarkProcessing(ctx context.Context, id string, attempts int) (bool, error) {
	return f.transition(id, domain.JobStatusProcessing, func(j *domain.ScheduledReminderJob) {
		j.Attempts = attempts
	})
}

func (f *fakeJobs) MarkSent(ctx context.Context, id string) (bool, error) {
	return f.transition(id, domain.JobStatusSent, nil)
}

func (f *fakeJobs) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	return f.transition(id, domain.JobStatusFailed, func(j *domain.ScheduledReminderJob) {
		j.FailureReason = reason
	})
}

func (f *fakeJobs) MarkCancelled(ctx context.Context, id, reason string) (bool, error) {
	return f.transition(id, domain.JobStatusCancelled, func(j *domain.ScheduledReminderJob) {
		j.FailureReason = reason
	})
}

type fakeAppointments struct {
	byID map[string]*domain.Appointment
	err  error
}

func (f *fakeAppointments) FindByIDIncludingDeleted(ctx context.Context, id string) (*domain.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, apperrors.NewNotFoundError("appointment not found", nil)
}

type fakeUsers struct {
	user *domain.User
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if f.user != nil {
		return f.user, nil
	}
	return &domain.User{ID: id, Name: "Pat"}, nil
}

type fakeLogs struct {
	mu        sync.Mutex
	created   []*domain.ReminderLog
	sent      map[string]string
	failed    map[string]string
	cancelled map[string]string
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{
		sent:      make(map[string]string),
		failed:    make(map[string]string),
		cancelled: make(map[string]string),
	}
}

func (f *fakeLogs) Create(ctx context.Context, entry *domain.ReminderLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeLogs) MarkSent(ctx context.Context, id, trackingToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = trackingToken
	return nil
}

func (f *fakeLogs) MarkFailed(ctx context.Context, id, errorDetail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errorDetail
	return nil
}

func (f *fakeLogs) MarkCancelled(ctx context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[id] = reason
	return nil
}

type fakeAnalytics struct {
	mu     sync.Mutex
	sent   int
	failed int
}

func (f *fakeAnalytics) IncrementSent(ctx context.Context, doctorID string, channel domain.ReminderChannel, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return nil
}

func (f *fakeAnalytics) IncrementFailed(ctx context.Context, doctorID string, channel domain.ReminderChannel, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed++
	return nil
}

type fakeDeadLetters struct {
	mu     sync.Mutex
	parked []*domain.FailedReminder
}

func (f *fakeDeadLetters) Add(ctx context.Context, failed *domain.FailedReminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parked = append(f.parked, failed)
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []*domain.DeliveryMessage
	delays   []time.Duration
}

func (f *fakeQueue) EnqueueWithDelay(ctx context.Context, msg *domain.DeliveryMessage, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, msg)
	f.delays = append(f.delays, delay)
	return nil
}

func (f *fakeQueue) Cancel(messageID string) bool { return false }

func (f *fakeQueue) Consume(ctx context.Context, handle queue.Handler) error { return nil }

// stubSender returns a fixed outcome for its channel
type stubSender struct {
	channel domain.ReminderChannel
	outcome sender.Outcome
	sent    int
}

func (s *stubSender) Channel() domain.ReminderChannel { return s.channel }

func (s *stubSender) Send(ctx context.Context, user *domain.User, msg *domain.DeliveryMessage, content sender.Content) sender.Outcome {
	s.sent++
	if s.outcome.Success && s.outcome.TrackingID == "" {
		s.outcome.TrackingID = msg.TrackingID
	}
	return s.outcome
}

func workerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		Concurrency:   1,
		MaxAttempts:   3,
		SendTimeout:   time.Second,
		RetryBackoffs: []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute},
	}
}

type fixture struct {
	worker       *DeliveryWorker
	jobs         *fakeJobs
	appointments *fakeAppointments
	logs         *fakeLogs
	analytics    *fakeAnalytics
	deadLetters  *fakeDeadLetters
	queue        *fakeQueue
	sender       *stubSender
	msg          *domain.DeliveryMessage
	job          *domain.ScheduledReminderJob
	appointment  *domain.Appointment
}

func newFixture(outcome sender.Outcome) *fixture {
	appointment := &domain.Appointment{
		ID:        "appt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		StartsAt:  time.Now().Add(2 * time.Hour),
		Status:    domain.AppointmentScheduled,
	}
	job := &domain.ScheduledReminderJob{
		ID:            primitive.NewObjectID(),
		AppointmentID: appointment.ID,
		TrackingID:    "appt-1:2h:email:1",
		Type:          domain.ReminderType2Hour,
		Channel:       domain.ChannelEmail,
		ScheduledFor:  time.Now(),
		Status:        domain.JobStatusPending,
	}
	msg := &domain.DeliveryMessage{
		MessageID:     job.ID.Hex(),
		JobID:         job.ID.Hex(),
		TrackingID:    job.TrackingID,
		AppointmentID: appointment.ID,
		UserID:        appointment.PatientID,
		Type:          job.Type,
		Channel:       job.Channel,
		Trigger:       domain.TriggerAutomatic,
		ScheduledFor:  job.ScheduledFor,
	}

	f := &fixture{
		jobs:         newFakeJobs(job),
		appointments: &fakeAppointments{byID: map[string]*domain.Appointment{appointment.ID: appointment}},
		logs:         newFakeLogs(),
		analytics:    &fakeAnalytics{},
		deadLetters:  &fakeDeadLetters{},
		queue:        &fakeQueue{},
		sender:       &stubSender{channel: domain.ChannelEmail, outcome: outcome},
		msg:          msg,
		job:          job,
		appointment:  appointment,
	}
	f.worker = NewDeliveryWorker(
		f.queue,
		f.jobs,
		f.appointments,
		&fakeUsers{},
		f.logs,
		f.analytics,
		f.deadLetters,
		sender.NewRegistry(f.sender),
		workerConfig(),
		logger.NewNop(),
	)
	return f
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, domain.JobStatusSent, f.job.Status)
	assert.Equal(t, 1, f.sender.sent)
	assert.Equal(t, 1, f.analytics.sent)
	require.Len(t, f.logs.created, 1)
	assert.Contains(t, f.logs.sent, f.logs.created[0].ID.Hex())
	assert.Empty(t, f.queue.enqueued)
}

func TestProcessTransientFailureRetries(t *testing.T) {
	f := newFixture(sender.Outcome{Error: "smtp timeout"})

	f.worker.Process(context.Background(), f.msg)

	// Still processing, waiting for its retry to fire
	assert.Equal(t, domain.JobStatusProcessing, f.job.Status)
	assert.Equal(t, 1, f.analytics.failed)
	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, 1, f.queue.enqueued[0].Attempt)
	assert.Equal(t, time.Minute, f.queue.delays[0])
	assert.Empty(t, f.deadLetters.parked)
}

func TestProcessRetryBackoffLadder(t *testing.T) {
	f := newFixture(sender.Outcome{Error: "smtp timeout"})

	f.worker.Process(context.Background(), f.msg)
	require.Len(t, f.queue.enqueued, 1)

	f.worker.Process(context.Background(), f.queue.enqueued[0])
	require.Len(t, f.queue.enqueued, 2)
	assert.Equal(t, 5*time.Minute, f.queue.delays[1])

	// Third attempt exhausts the budget
	f.worker.Process(context.Background(), f.queue.enqueued[1])
	require.Len(t, f.queue.enqueued, 2)
	assert.Equal(t, domain.JobStatusFailed, f.job.Status)
	require.Len(t, f.deadLetters.parked, 1)
	assert.Equal(t, 3, f.deadLetters.parked[0].Attempts)
}

func TestProcessPermanentFailureParksImmediately(t *testing.T) {
	f := newFixture(sender.Outcome{Error: "smtp host not configured", Permanent: true})

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, domain.JobStatusFailed, f.job.Status)
	assert.Empty(t, f.queue.enqueued)
	require.Len(t, f.deadLetters.parked, 1)
	assert.Equal(t, 1, f.deadLetters.parked[0].Attempts)
}

func TestProcessCancelledWhenAppointmentTerminal(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	f.appointment.Status = domain.AppointmentCancelledByClinic

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, domain.JobStatusCancelled, f.job.Status)
	assert.Equal(t, 0, f.sender.sent)
	assert.Empty(t, f.queue.enqueued)
}

func TestProcessCancelledWhenAppointmentDeleted(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	deletedAt := time.Now()
	f.appointment.DeletedAt = &deletedAt

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, domain.JobStatusCancelled, f.job.Status)
	assert.Equal(t, 0, f.sender.sent)
}

func TestProcessCancelledWhenAppointmentMissing(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	delete(f.appointments.byID, f.appointment.ID)

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, domain.JobStatusCancelled, f.job.Status)
	assert.Equal(t, 0, f.sender.sent)
}

func TestProcessAppointmentLookupFailureLeavesJobForSweeper(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	f.appointments.err = assert.AnError

	f.worker.Process(context.Background(), f.msg)

	// A transient lookup error settles nothing; the overdue sweep
	// re-enqueues the still-pending job
	assert.Equal(t, domain.JobStatusPending, f.job.Status)
	assert.Equal(t, 0, f.sender.sent)
	assert.Empty(t, f.logs.cancelled)
	assert.Empty(t, f.queue.enqueued)
}

func TestProcessRecoveredProcessingJob(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	f.job.Status = domain.JobStatusProcessing
	f.job.Attempts = 1
	f.msg.Attempt = 1
	f.msg.LogID = ""

	f.worker.Process(context.Background(), f.msg)

	// A sweeper re-delivery of an abandoned processing job runs to
	// completion instead of being dropped as settled
	assert.Equal(t, domain.JobStatusSent, f.job.Status)
	assert.Equal(t, 2, f.job.Attempts)
	assert.Equal(t, 1, f.sender.sent)
}

func TestProcessDropsSettledJob(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	f.job.Status = domain.JobStatusSent

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, 0, f.sender.sent)
	assert.Empty(t, f.logs.created)
}

func TestProcessTestTriggerSkipsLeadTimeGate(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	// Ten minutes out fails the lead-time gate for automatic reminders
	f.appointment.StartsAt = time.Now().Add(10 * time.Minute)
	f.msg.Trigger = domain.TriggerTest

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, 1, f.sender.sent)
	assert.Equal(t, domain.JobStatusSent, f.job.Status)
}

func TestProcessNoSenderForChannel(t *testing.T) {
	f := newFixture(sender.Outcome{Success: true})
	f.msg.Channel = domain.ChannelSMS
	f.job.Channel = domain.ChannelSMS

	f.worker.Process(context.Background(), f.msg)

	assert.Equal(t, domain.JobStatusFailed, f.job.Status)
	require.Len(t, f.deadLetters.parked, 1)
	assert.Contains(t, f.deadLetters.parked[0].Error, "no sender registered")
}

func TestRenderContent(t *testing.T) {
	payload := domain.ReminderPayload{
		PatientName: "Alice Smith",
		DoctorName:  "Dr. Jones",
		StartsAt:    time.Date(2026, 9, 14, 14, 30, 0, 0, time.UTC),
		Location:    "Room 204",
	}

	t.Run("email has subject and greeting", func(t *testing.T) {
		content := RenderContent(&domain.DeliveryMessage{
			Type: domain.ReminderType24Hour, Channel: domain.ChannelEmail, Payload: payload,
		})
		assert.Contains(t, content.Subject, "Appointment Reminder")
		assert.Contains(t, content.Body, "Hello Alice Smith")
		assert.Contains(t, content.Body, "Dr. Jones")
		assert.Contains(t, content.Body, "Room 204")
	})

	t.Run("sms is a single line", func(t *testing.T) {
		content := RenderContent(&domain.DeliveryMessage{
			Type: domain.ReminderType2Hour, Channel: domain.ChannelSMS, Payload: payload,
		})
		assert.Empty(t, content.Subject)
		assert.NotContains(t, content.Body, "\n")
		assert.Contains(t, content.Body, "Dr. Jones")
	})

	t.Run("missing doctor name falls back", func(t *testing.T) {
		content := RenderContent(&domain.DeliveryMessage{
			Type: domain.ReminderTypeCustom, Channel: domain.ChannelPush,
			Payload: domain.ReminderPayload{StartsAt: payload.StartsAt},
		})
		assert.Contains(t, content.Body, "your doctor")
	})
}
