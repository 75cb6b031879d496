package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/metrics"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/sender"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/config"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// JobSource is the registry surface the worker drives job transitions
// through. Every Mark call reports whether the transition applied, so a
// job another path already finished is simply dropped.
type JobSource interface {
	FindByID(ctx context.Context, id string) (*domain.ScheduledReminderJob, error)
	MarkProcessing(ctx context.Context, id string, attempts int) (bool, error)
	MarkSent(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	MarkCancelled(ctx context.Context, id, reason string) (bool, error)
}

// AppointmentSource re-fetches appointment state at fire time
type AppointmentSource interface {
	FindByIDIncludingDeleted(ctx context.Context, id string) (*domain.Appointment, error)
}

// UserSource resolves the reminder recipient
type UserSource interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// LogAccess records the outcome of each attempt on the audit log
type LogAccess interface {
	Create(ctx context.Context, entry *domain.ReminderLog) error
	MarkSent(ctx context.Context, id, trackingToken string) error
	MarkFailed(ctx context.Context, id, errorDetail string) error
	MarkCancelled(ctx context.Context, id, reason string) error
}

// AnalyticsRecorder bumps the per-doctor delivery counters
type AnalyticsRecorder interface {
	IncrementSent(ctx context.Context, doctorID string, channel domain.ReminderChannel, at time.Time) error
	IncrementFailed(ctx context.Context, doctorID string, channel domain.ReminderChannel, at time.Time) error
}

// DeadLetterSink parks reminders that exhausted their retries
type DeadLetterSink interface {
	Add(ctx context.Context, failed *domain.FailedReminder) error
}

// DeliveryWorker consumes fired reminders and drives each one through
// the re-check, send, record pipeline. Retries re-enter the same queue
// with a growing backoff.
type DeliveryWorker struct {
	queue        queue.DelayQueue
	jobs         JobSource
	appointments AppointmentSource
	users        UserSource
	logs         LogAccess
	analytics    AnalyticsRecorder
	deadLetters  DeadLetterSink
	senders      sender.Registry
	cfg          config.WorkerConfig
	logger       *logger.Logger
	slots        chan struct{}
}

// NewDeliveryWorker creates a delivery worker
func NewDeliveryWorker(
	delayQueue queue.DelayQueue,
	jobs JobSource,
	appointments AppointmentSource,
	users UserSource,
	logs LogAccess,
	analytics AnalyticsRecorder,
	deadLetters DeadLetterSink,
	senders sender.Registry,
	cfg config.WorkerConfig,
	log *logger.Logger,
) *DeliveryWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &DeliveryWorker{
		queue:        delayQueue,
		jobs:         jobs,
		appointments: appointments,
		users:        users,
		logs:         logs,
		analytics:    analytics,
		deadLetters:  deadLetters,
		senders:      senders,
		cfg:          cfg,
		logger:       log,
		slots:        make(chan struct{}, cfg.Concurrency),
	}
}

// Start begins consuming fired reminders until the context is cancelled.
// Messages are processed on a bounded pool; a message acknowledged but
// lost mid-processing is recovered by the overdue sweep, since its job
// stays non-terminal.
func (w *DeliveryWorker) Start(ctx context.Context) error {
	w.logger.Info("Delivery worker starting", "concurrency", w.cfg.Concurrency)
	return w.queue.Consume(ctx, func(msgCtx context.Context, msg *domain.DeliveryMessage) {
		select {
		case w.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func() {
			defer func() { <-w.slots }()
			w.Process(ctx, msg)
		}()
	})
}

// Process runs one fired reminder through the delivery pipeline
func (w *DeliveryWorker) Process(ctx context.Context, msg *domain.DeliveryMessage) {
	log := w.logger
	job, err := w.jobs.FindByID(ctx, msg.JobID)
	if err != nil {
		log.Error("Dropping reminder, job lookup failed",
			"job_id", msg.JobID,
			"error", err)
		return
	}
	if job.Status.Terminal() {
		log.Debug("Dropping reminder, job already settled",
			"job_id", msg.JobID,
			"status", job.Status)
		return
	}

	// Appointment state may have changed since scheduling
	appointment, err := w.appointments.FindByIDIncludingDeleted(ctx, msg.AppointmentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			w.cancel(ctx, msg, "appointment no longer exists")
			return
		}
		// A transient lookup failure must not settle the job; left
		// non-terminal, the overdue sweep retries it
		log.Error("Leaving reminder for the sweeper, appointment lookup failed",
			"job_id", msg.JobID,
			"appointment_id", msg.AppointmentID,
			"error", err)
		return
	}
	if appointment.DeletedAt != nil {
		w.cancel(ctx, msg, "appointment was deleted")
		return
	}
	if msg.UserID == "" {
		// Sweeper re-enqueues carry job state only
		msg.UserID = appointment.PatientID
	}
	if msg.Trigger != domain.TriggerTest {
		if err := appointment.CheckEligibility(time.Now()); err != nil {
			w.cancel(ctx, msg, err.Error())
			return
		}
	}

	logID, err := w.ensureLogEntry(ctx, msg, appointment)
	if err != nil {
		log.Error("Failed to prepare log entry",
			"job_id", msg.JobID,
			"error", err)
		return
	}
	msg.LogID = logID

	attempt := msg.Attempt + 1
	ok, err := w.jobs.MarkProcessing(ctx, msg.JobID, attempt)
	if err != nil {
		log.Error("Failed to mark job processing",
			"job_id", msg.JobID,
			"error", err)
		return
	}
	if !ok {
		log.Debug("Dropping reminder, job settled concurrently", "job_id", msg.JobID)
		return
	}

	outcome := w.send(ctx, msg, appointment)
	if outcome.Success {
		w.recordSuccess(ctx, msg, appointment, outcome)
		return
	}
	w.recordFailure(ctx, msg, appointment, attempt, outcome)
}

// send resolves the recipient and dispatches to the channel sender under
// the per-attempt timeout
func (w *DeliveryWorker) send(ctx context.Context, msg *domain.DeliveryMessage, appointment *domain.Appointment) sender.Outcome {
	channelSender, ok := w.senders[msg.Channel]
	if !ok {
		return sender.Outcome{Error: fmt.Sprintf("no sender registered for channel %s", msg.Channel), Permanent: true}
	}

	user, err := w.users.FindByID(ctx, appointment.PatientID)
	if err != nil {
		return sender.Outcome{Error: fmt.Sprintf("failed to load recipient: %v", err)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	outcome := channelSender.Send(sendCtx, user, msg, RenderContent(msg))
	metrics.DeliveryDuration.WithLabelValues(string(msg.Channel)).Observe(time.Since(start).Seconds())
	return outcome
}

func (w *DeliveryWorker) recordSuccess(ctx context.Context, msg *domain.DeliveryMessage, appointment *domain.Appointment, outcome sender.Outcome) {
	if _, err := w.jobs.MarkSent(ctx, msg.JobID); err != nil {
		w.logger.Error("Failed to mark job sent", "job_id", msg.JobID, "error", err)
	}
	if err := w.logs.MarkSent(ctx, msg.LogID, outcome.TrackingID); err != nil {
		w.logger.Error("Failed to mark log sent", "log_id", msg.LogID, "error", err)
	}
	if err := w.analytics.IncrementSent(ctx, appointment.DoctorID, msg.Channel, time.Now()); err != nil {
		w.logger.Error("Failed to record sent analytics", "error", err)
	}
	metrics.RemindersSent.WithLabelValues(string(msg.Channel), string(msg.Type)).Inc()
	metrics.ScheduledJobs.Dec()

	w.logger.Info("Reminder delivered",
		"appointment_id", msg.AppointmentID,
		"channel", msg.Channel,
		"type", msg.Type,
		"tracking_id", outcome.TrackingID)
}

func (w *DeliveryWorker) recordFailure(ctx context.Context, msg *domain.DeliveryMessage, appointment *domain.Appointment, attempt int, outcome sender.Outcome) {
	if err := w.logs.MarkFailed(ctx, msg.LogID, outcome.Error); err != nil {
		w.logger.Error("Failed to mark log failed", "log_id", msg.LogID, "error", err)
	}
	if err := w.analytics.IncrementFailed(ctx, appointment.DoctorID, msg.Channel, time.Now()); err != nil {
		w.logger.Error("Failed to record failed analytics", "error", err)
	}
	metrics.RemindersFailed.WithLabelValues(string(msg.Channel), string(msg.Type)).Inc()

	if outcome.Permanent || attempt >= w.cfg.MaxAttempts {
		w.park(ctx, msg, attempt, outcome)
		return
	}

	backoff := w.backoffFor(attempt)
	retry := *msg
	retry.Attempt = attempt
	if err := w.queue.EnqueueWithDelay(ctx, &retry, backoff); err != nil {
		w.logger.Error("Failed to enqueue retry, leaving job for the sweeper",
			"job_id", msg.JobID,
			"error", err)
		return
	}

	w.logger.Warn("Reminder attempt failed, retrying",
		"appointment_id", msg.AppointmentID,
		"channel", msg.Channel,
		"attempt", attempt,
		"backoff", backoff.String(),
		"error", outcome.Error)
}

// park settles the job as failed and stores it for manual retry
func (w *DeliveryWorker) park(ctx context.Context, msg *domain.DeliveryMessage, attempt int, outcome sender.Outcome) {
	if _, err := w.jobs.MarkFailed(ctx, msg.JobID, outcome.Error); err != nil {
		w.logger.Error("Failed to mark job failed", "job_id", msg.JobID, "error", err)
	}
	metrics.ScheduledJobs.Dec()

	job, err := w.jobs.FindByID(ctx, msg.JobID)
	if err != nil {
		w.logger.Error("Failed to load job for dead letter", "job_id", msg.JobID, "error", err)
		return
	}

	failed := &domain.FailedReminder{
		JobID:         job.ID,
		AppointmentID: msg.AppointmentID,
		UserID:        msg.UserID,
		Type:          msg.Type,
		Channel:       msg.Channel,
		Error:         outcome.Error,
		Attempts:      attempt,
		Payload:       msg.Payload,
		FailedAt:      time.Now(),
	}
	if err := w.deadLetters.Add(ctx, failed); err != nil {
		w.logger.Error("Failed to store dead letter", "job_id", msg.JobID, "error", err)
		return
	}
	metrics.DeadLetters.Inc()

	w.logger.Error("Reminder gave up after final attempt",
		"appointment_id", msg.AppointmentID,
		"channel", msg.Channel,
		"attempts", attempt,
		"error", outcome.Error)
}

// cancel settles both the job and its log entry without sending
func (w *DeliveryWorker) cancel(ctx context.Context, msg *domain.DeliveryMessage, reason string) {
	if _, err := w.jobs.MarkCancelled(ctx, msg.JobID, reason); err != nil {
		w.logger.Error("Failed to cancel job", "job_id", msg.JobID, "error", err)
	}
	if msg.LogID != "" {
		if err := w.logs.MarkCancelled(ctx, msg.LogID, reason); err != nil {
			w.logger.Error("Failed to cancel log entry", "log_id", msg.LogID, "error", err)
		}
	}
	metrics.RemindersCancelled.Inc()
	metrics.ScheduledJobs.Dec()

	w.logger.Info("Reminder cancelled at fire time",
		"appointment_id", msg.AppointmentID,
		"channel", msg.Channel,
		"reason", reason)
}

// ensureLogEntry returns the id of the attempt's log entry, creating one
// when the message carries none, as sweeper re-enqueues do
func (w *DeliveryWorker) ensureLogEntry(ctx context.Context, msg *domain.DeliveryMessage, appointment *domain.Appointment) (string, error) {
	if msg.LogID != "" {
		return msg.LogID, nil
	}
	entry := &domain.ReminderLog{
		AppointmentID: msg.AppointmentID,
		UserID:        appointment.PatientID,
		Type:          msg.Type,
		Channel:       msg.Channel,
		Trigger:       msg.Trigger,
		ScheduledFor:  msg.ScheduledFor,
		Status:        domain.LogStatusPending,
	}
	if err := w.logs.Create(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID.Hex(), nil
}

// backoffFor returns the delay before the next attempt; attempts past the
// configured ladder reuse its last rung
func (w *DeliveryWorker) backoffFor(attempt int) time.Duration {
	if len(w.cfg.RetryBackoffs) == 0 {
		return time.Minute
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(w.cfg.RetryBackoffs) {
		idx = len(w.cfg.RetryBackoffs) - 1
	}
	return w.cfg.RetryBackoffs[idx]
}
