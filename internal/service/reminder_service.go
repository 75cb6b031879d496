package service

import (
	"context"
	"fmt"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/scheduler"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// SchedulingEngine is the planning surface the service drives
type SchedulingEngine interface {
	Schedule(ctx context.Context, appointmentID string, trigger domain.TriggerType, override *domain.ReminderSettings) (*scheduler.ScheduleResult, error)
	CancelAll(ctx context.Context, appointmentID, reason string) (int, error)
	SendTest(ctx context.Context, appointmentID string, channel domain.ReminderChannel) error
}

// LogQuerier is the audit-log surface the service exposes to handlers
type LogQuerier interface {
	Find(ctx context.Context, req *domain.GetLogsRequest) ([]*domain.ReminderLog, int64, error)
	CancelPending(ctx context.Context, appointmentID, reason string) (int64, error)
}

// AnalyticsQuerier reads the per-doctor delivery counters
type AnalyticsQuerier interface {
	FindByDateRange(ctx context.Context, doctorID, from, to string) ([]*domain.ReminderAnalytics, error)
}

// ReminderService is the API-facing facade over the scheduling engine,
// the audit log and the analytics counters
type ReminderService struct {
	engine    SchedulingEngine
	logs      LogQuerier
	analytics AnalyticsQuerier
	logger    *logger.Logger
}

// NewReminderService creates a reminder service
func NewReminderService(engine SchedulingEngine, logs LogQuerier, analytics AnalyticsQuerier, log *logger.Logger) *ReminderService {
	return &ReminderService{
		engine:    engine,
		logs:      logs,
		analytics: analytics,
		logger:    log,
	}
}

// Schedule plans reminders for one appointment
func (s *ReminderService) Schedule(ctx context.Context, req *domain.ScheduleRequest) (*scheduler.ScheduleResult, error) {
	return s.engine.Schedule(ctx, req.AppointmentID, domain.TriggerManual, req.Settings)
}

// Cancel cancels every pending reminder for one appointment. Jobs and
// their audit entries are settled independently; failing to settle the
// audit entries surfaces as an error even when the jobs cancelled fine.
func (s *ReminderService) Cancel(ctx context.Context, req *domain.CancelRequest) (int, error) {
	reason := req.Reason
	if reason == "" {
		reason = "cancelled"
	}

	cancelled, err := s.engine.CancelAll(ctx, req.AppointmentID, reason)
	if err != nil {
		return cancelled, fmt.Errorf("cancellation_failed: %w", err)
	}

	if _, err := s.logs.CancelPending(ctx, req.AppointmentID, reason); err != nil {
		return cancelled, fmt.Errorf("cancellation_failed: jobs cancelled but log update failed: %w", err)
	}

	s.logger.Info("Reminders cancelled",
		"appointment_id", req.AppointmentID,
		"cancelled", cancelled,
		"reason", reason)
	return cancelled, nil
}

// Reschedule replaces the appointment's reminders with a fresh plan
func (s *ReminderService) Reschedule(ctx context.Context, appointmentID string) (*scheduler.ScheduleResult, error) {
	return s.engine.Schedule(ctx, appointmentID, domain.TriggerManual, nil)
}

// SendTest fires an immediate test reminder on one channel
func (s *ReminderService) SendTest(ctx context.Context, appointmentID string, channel domain.ReminderChannel) error {
	return s.engine.SendTest(ctx, appointmentID, channel)
}

// GetLogs returns a filtered page of audit entries
func (s *ReminderService) GetLogs(ctx context.Context, req *domain.GetLogsRequest) ([]*domain.ReminderLog, int64, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	return s.logs.Find(ctx, req)
}

// GetAnalytics returns the daily delivery counters for one doctor over a
// date range (inclusive, "2006-01-02" formatted)
func (s *ReminderService) GetAnalytics(ctx context.Context, doctorID, from, to string) ([]*domain.ReminderAnalytics, error) {
	return s.analytics.FindByDateRange(ctx, doctorID, from, to)
}
