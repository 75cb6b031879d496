package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

const bulkWorkers = 8

// BulkService fans one operation out over a batch of appointments. Each
// appointment is processed independently; one failure never aborts the
// batch.
type BulkService struct {
	reminders *ReminderService
	logger    *logger.Logger
}

// NewBulkService creates a bulk service
func NewBulkService(reminders *ReminderService, log *logger.Logger) *BulkService {
	return &BulkService{
		reminders: reminders,
		logger:    log,
	}
}

// Execute runs one bulk request and returns a result per appointment id,
// in the order the request listed them
func (s *BulkService) Execute(ctx context.Context, req *domain.BulkRequest) ([]domain.BulkResult, error) {
	if len(req.AppointmentIDs) == 0 {
		return nil, apperrors.NewValidationError("appointment_ids must not be empty", nil)
	}
	if len(req.AppointmentIDs) > domain.MaxBulkAppointments {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("at most %d appointments per bulk request", domain.MaxBulkAppointments), nil)
	}

	switch req.Operation {
	case domain.BulkOpSchedule, domain.BulkOpCancel, domain.BulkOpReschedule:
	case domain.BulkOpTest:
		if !domain.ReminderChannel(req.Channel).Valid() {
			return nil, apperrors.NewValidationError("test operation requires a valid channel", nil)
		}
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown operation %q", req.Operation), nil)
	}

	results := make([]domain.BulkResult, len(req.AppointmentIDs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, bulkWorkers)

	for i, id := range req.AppointmentIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.executeOne(ctx, req, id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	s.logger.Info("Bulk operation finished",
		"operation", req.Operation,
		"total", len(results),
		"succeeded", succeeded)

	return results, nil
}

func (s *BulkService) executeOne(ctx context.Context, req *domain.BulkRequest, appointmentID string) domain.BulkResult {
	result := domain.BulkResult{AppointmentID: appointmentID}

	switch req.Operation {
	case domain.BulkOpSchedule, domain.BulkOpReschedule:
		scheduled, err := s.reminders.Reschedule(ctx, appointmentID)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Scheduled = scheduled.Scheduled

	case domain.BulkOpCancel:
		cancelled, err := s.reminders.Cancel(ctx, &domain.CancelRequest{
			AppointmentID: appointmentID,
			Reason:        req.Reason,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Cancelled = cancelled

	case domain.BulkOpTest:
		if err := s.reminders.SendTest(ctx, appointmentID, domain.ReminderChannel(req.Channel)); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
	}

	return result
}
