package service

import (
	"context"
	"errors"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/scheduler"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// LifecycleService reacts to appointment lifecycle events from the
// surrounding backend. It keeps the reminder plan in step with the
// appointment: created plans, updated replans, deleted and terminal
// transitions cancel.
type LifecycleService struct {
	reminders *ReminderService
	logger    *logger.Logger
}

// NewLifecycleService creates a lifecycle service
func NewLifecycleService(reminders *ReminderService, log *logger.Logger) *LifecycleService {
	return &LifecycleService{
		reminders: reminders,
		logger:    log,
	}
}

// HandleCreated schedules reminders for a new appointment. An ineligible
// appointment, one already too close for instance, is a quiet no-op.
func (s *LifecycleService) HandleCreated(ctx context.Context, appointmentID string) (*scheduler.ScheduleResult, error) {
	result, err := s.reminders.Reschedule(ctx, appointmentID)
	if errors.Is(err, apperrors.ErrIneligible) {
		s.logger.Info("New appointment not eligible for reminders",
			"appointment_id", appointmentID,
			"reason", err.Error())
		return &scheduler.ScheduleResult{AppointmentID: appointmentID}, nil
	}
	return result, err
}

// HandleUpdated replans after an appointment change. The event does not
// say what changed, so every update runs a full replan; the pass cancels
// the pending plan and rebuilds it, which is a same-instants rebuild when
// nothing relevant changed. A move into a terminal status or inside the
// lead window cancels instead.
func (s *LifecycleService) HandleUpdated(ctx context.Context, appointmentID string, previous *domain.Appointment) (*scheduler.ScheduleResult, error) {
	result, err := s.reminders.Reschedule(ctx, appointmentID)
	if errors.Is(err, apperrors.ErrIneligible) {
		// The appointment became terminal or slipped inside the lead
		// window; drop whatever is still pending
		cancelled, cancelErr := s.reminders.Cancel(ctx, &domain.CancelRequest{
			AppointmentID: appointmentID,
			Reason:        "appointment no longer eligible",
		})
		if cancelErr != nil {
			return nil, cancelErr
		}
		s.logger.Info("Appointment update cancelled its reminders",
			"appointment_id", appointmentID,
			"cancelled", cancelled)
		return &scheduler.ScheduleResult{AppointmentID: appointmentID, Cancelled: cancelled}, nil
	}
	if err != nil {
		return nil, err
	}

	if previous != nil {
		s.logger.Debug("Appointment replanned after update",
			"appointment_id", appointmentID,
			"previous_starts_at", previous.StartsAt,
			"previous_status", previous.Status)
	}
	return result, nil
}

// HandleDeleted cancels every pending reminder for a removed appointment
func (s *LifecycleService) HandleDeleted(ctx context.Context, appointmentID string) (int, error) {
	return s.reminders.Cancel(ctx, &domain.CancelRequest{
		AppointmentID: appointmentID,
		Reason:        "appointment deleted",
	})
}
