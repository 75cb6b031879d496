package dlq

import (
	"context"
	"fmt"
	"time"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// FailedStore persists dead-lettered reminders
type FailedStore interface {
	Create(ctx context.Context, failed *domain.FailedReminder) error
	FindByID(ctx context.Context, id string) (*domain.FailedReminder, error)
	FindAll(ctx context.Context, page, pageSize int) ([]*domain.FailedReminder, int64, error)
	Delete(ctx context.Context, id string) error
}

// JobStore registers the fresh job a manual retry runs under and exposes
// the lookup that guards against double-scheduling a slot
type JobStore interface {
	Create(ctx context.Context, job *domain.ScheduledReminderJob) error
	FindLatestActive(ctx context.Context, appointmentID string, reminderType domain.ReminderType, channel domain.ReminderChannel) (*domain.ScheduledReminderJob, error)
}

// DeadLetterQueue holds reminders that exhausted their delivery retries.
// Entries sit until an operator inspects them and either retries or
// discards. A retry runs as a fresh job with a fresh attempt budget.
type DeadLetterQueue struct {
	store  FailedStore
	jobs   JobStore
	queue  queue.DelayQueue
	logger *logger.Logger
}

// NewDeadLetterQueue creates a dead letter queue service
func NewDeadLetterQueue(store FailedStore, jobs JobStore, delayQueue queue.DelayQueue, log *logger.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{
		store:  store,
		jobs:   jobs,
		queue:  delayQueue,
		logger: log,
	}
}

// Add parks one failed reminder
func (d *DeadLetterQueue) Add(ctx context.Context, failed *domain.FailedReminder) error {
	return d.store.Create(ctx, failed)
}

// List returns a page of parked reminders, newest first
func (d *DeadLetterQueue) List(ctx context.Context, page, pageSize int) ([]*domain.FailedReminder, int64, error) {
	return d.store.FindAll(ctx, page, pageSize)
}

// Retry re-runs one parked reminder as a brand new job and removes the
// parked entry. The worker's fire-time checks still apply, so retrying a
// reminder for a since-cancelled appointment is harmless.
func (d *DeadLetterQueue) Retry(ctx context.Context, id string) error {
	failed, err := d.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	// A reschedule may already have replaced the failed reminder; don't
	// stack a second live job on the same slot
	active, err := d.jobs.FindLatestActive(ctx, failed.AppointmentID, failed.Type, failed.Channel)
	if err != nil {
		return fmt.Errorf("failed to check for an active job: %w", err)
	}
	if active != nil {
		return apperrors.NewValidationError(
			fmt.Sprintf("an active reminder already exists for appointment %s (%s via %s)",
				failed.AppointmentID, failed.Type, failed.Channel), nil)
	}

	now := time.Now()
	job := &domain.ScheduledReminderJob{
		AppointmentID: failed.AppointmentID,
		TrackingID:    domain.ComposeTrackingID(failed.AppointmentID, failed.Type, failed.Channel, now),
		Type:          failed.Type,
		Channel:       failed.Channel,
		ScheduledFor:  now,
		Payload:       failed.Payload,
	}
	if err := d.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to register retry job: %w", err)
	}

	msg := &domain.DeliveryMessage{
		MessageID:     job.ID.Hex(),
		JobID:         job.ID.Hex(),
		TrackingID:    job.TrackingID,
		AppointmentID: failed.AppointmentID,
		UserID:        failed.UserID,
		Type:          failed.Type,
		Channel:       failed.Channel,
		Trigger:       domain.TriggerManual,
		ScheduledFor:  now,
		Payload:       failed.Payload,
	}
	if err := d.queue.EnqueueWithDelay(ctx, msg, 0); err != nil {
		return fmt.Errorf("failed to enqueue retry: %w", err)
	}

	if err := d.store.Delete(ctx, id); err != nil {
		d.logger.Error("Retried dead letter but failed to remove it",
			"id", id,
			"error", err)
	}

	d.logger.Info("Dead letter retried",
		"id", id,
		"appointment_id", failed.AppointmentID,
		"channel", failed.Channel)
	return nil
}

// Discard removes a parked reminder without retrying it
func (d *DeadLetterQueue) Discard(ctx context.Context, id string) error {
	return d.store.Delete(ctx, id)
}
