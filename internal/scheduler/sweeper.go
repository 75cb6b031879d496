package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/metrics"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

const sweepBatchSize = 200

// OverdueStore lists non-terminal jobs that slipped past their fire time
// without settling, whether never fired or abandoned mid-attempt
type OverdueStore interface {
	FindOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*domain.ScheduledReminderJob, error)
}

// LogPurger deletes old audit entries
type LogPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper is the safety net behind the delay queue. Broker restarts or
// dropped messages can strand a job in pending past its fire time, and a
// worker crash can abandon one in processing; the sweeper re-enqueues
// both every minute. It also purges old log entries nightly.
type Sweeper struct {
	jobs         OverdueStore
	logs         LogPurger
	queue        queue.DelayQueue
	grace        time.Duration
	logRetention time.Duration
	logger       *logger.Logger
	cron         *cron.Cron
}

// NewSweeper creates a sweeper. Grace is how far past the fire time or
// last attempt a job must be before it counts as stranded.
func NewSweeper(jobs OverdueStore, logs LogPurger, delayQueue queue.DelayQueue, grace, logRetention time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		jobs:         jobs,
		logs:         logs,
		queue:        delayQueue,
		grace:        grace,
		logRetention: logRetention,
		logger:       log,
	}
}

// Start registers the cron entries and starts the scheduler
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 55*time.Second)
		defer cancel()
		s.sweepOverdue(ctx)
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("30 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.purgeLogs(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Reminder sweeper started",
		"grace", s.grace.String(),
		"log_retention", s.logRetention.String())
	return nil
}

// Stop stops the cron scheduler and waits for running sweeps
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// sweepOverdue re-enqueues non-terminal jobs stranded past their fire time
func (s *Sweeper) sweepOverdue(ctx context.Context) {
	cutoff := time.Now().Add(-s.grace)
	stranded, err := s.jobs.FindOverdue(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Error("Failed to query overdue jobs", "error", err)
		return
	}
	if len(stranded) == 0 {
		return
	}

	requeued := 0
	for _, job := range stranded {
		msg := &domain.DeliveryMessage{
			MessageID:     job.ID.Hex(),
			JobID:         job.ID.Hex(),
			TrackingID:    job.TrackingID,
			AppointmentID: job.AppointmentID,
			Type:          job.Type,
			Channel:       job.Channel,
			Trigger:       domain.TriggerAutomatic,
			ScheduledFor:  job.ScheduledFor,
			Attempt:       job.Attempts,
			Payload:       job.Payload,
		}
		if err := s.queue.EnqueueWithDelay(ctx, msg, 0); err != nil {
			s.logger.Error("Failed to re-enqueue stranded job",
				"job_id", job.ID.Hex(),
				"error", err)
			continue
		}
		requeued++
	}

	metrics.SweeperRequeued.Add(float64(requeued))
	s.logger.Warn("Re-enqueued stranded reminder jobs",
		"found", len(stranded),
		"requeued", requeued)
}

// purgeLogs deletes audit entries older than the retention window
func (s *Sweeper) purgeLogs(ctx context.Context) {
	if s.logRetention <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.logRetention)
	deleted, err := s.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to purge old reminder logs", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("Purged old reminder logs",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339))
	}
}
