package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

const maxCustomReminders = 10

// SettingsStore persists reminder settings per owner
type SettingsStore interface {
	GetOrCreate(ctx context.Context, ownerID string, ownerType domain.OwnerType) (*domain.ReminderSettings, error)
	Update(ctx context.Context, settings *domain.ReminderSettings) error
}

// SettingsService manages per-owner reminder preferences
type SettingsService struct {
	store  SettingsStore
	logger *logger.Logger
}

// NewSettingsService creates a settings service
func NewSettingsService(store SettingsStore, log *logger.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: log,
	}
}

// Get returns the owner's settings, creating the defaults on first read
func (s *SettingsService) Get(ctx context.Context, ownerID string, ownerType domain.OwnerType) (*domain.ReminderSettings, error) {
	return s.store.GetOrCreate(ctx, ownerID, ownerType)
}

// Update applies a partial settings change. Absent fields keep their
// stored value.
func (s *SettingsService) Update(ctx context.Context, ownerID string, ownerType domain.OwnerType, req *domain.UpdateSettingsRequest) (*domain.ReminderSettings, error) {
	if err := validateSettingsUpdate(req); err != nil {
		return nil, err
	}

	settings, err := s.store.GetOrCreate(ctx, ownerID, ownerType)
	if err != nil {
		return nil, err
	}

	applySettingsUpdate(settings, req)

	if err := s.store.Update(ctx, settings); err != nil {
		return nil, err
	}

	s.logger.Info("Reminder settings updated",
		"owner_id", ownerID,
		"owner_type", ownerType)
	return settings, nil
}

func validateSettingsUpdate(req *domain.UpdateSettingsRequest) error {
	if req.FirstReminderHours != nil && (*req.FirstReminderHours < 1 || *req.FirstReminderHours > 168) {
		return apperrors.NewValidationError("first_reminder_hours must be between 1 and 168", nil)
	}
	if req.SecondReminderHours != nil && (*req.SecondReminderHours < 1 || *req.SecondReminderHours > 168) {
		return apperrors.NewValidationError("second_reminder_hours must be between 1 and 168", nil)
	}
	if len(req.CustomReminders) > maxCustomReminders {
		return apperrors.NewValidationError(
			fmt.Sprintf("at most %d custom reminders", maxCustomReminders), nil)
	}
	for _, custom := range req.CustomReminders {
		if custom.HoursBefore < 1 || custom.HoursBefore > 168 {
			return apperrors.NewValidationError("custom reminder hours_before must be between 1 and 168", nil)
		}
		for _, c := range custom.Channels {
			if !c.Valid() {
				return apperrors.NewValidationError(fmt.Sprintf("unknown channel %q", c), nil)
			}
		}
	}
	if req.QuietHoursStart != nil && *req.QuietHoursStart != "" {
		if !validClock(*req.QuietHoursStart) {
			return apperrors.NewValidationError("quiet_hours_start must be HH:MM", nil)
		}
	}
	if req.QuietHoursEnd != nil && *req.QuietHoursEnd != "" {
		if !validClock(*req.QuietHoursEnd) {
			return apperrors.NewValidationError("quiet_hours_end must be HH:MM", nil)
		}
	}
	if req.Timezone != nil && *req.Timezone != "" {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("unknown timezone %q", *req.Timezone), nil)
		}
	}
	return nil
}

func applySettingsUpdate(settings *domain.ReminderSettings, req *domain.UpdateSettingsRequest) {
	if req.EmailEnabled != nil {
		settings.EmailEnabled = *req.EmailEnabled
	}
	if req.SMSEnabled != nil {
		settings.SMSEnabled = *req.SMSEnabled
	}
	if req.PushEnabled != nil {
		settings.PushEnabled = *req.PushEnabled
	}
	if req.InAppEnabled != nil {
		settings.InAppEnabled = *req.InAppEnabled
	}
	if req.Reminder24hEnabled != nil {
		settings.Reminder24hEnabled = *req.Reminder24hEnabled
	}
	if req.Reminder2hEnabled != nil {
		settings.Reminder2hEnabled = *req.Reminder2hEnabled
	}
	if req.FirstReminderHours != nil {
		settings.FirstReminderHours = *req.FirstReminderHours
	}
	if req.SecondReminderHours != nil {
		settings.SecondReminderHours = *req.SecondReminderHours
	}
	if req.CustomReminders != nil {
		settings.CustomReminders = req.CustomReminders
	}
	if req.QuietHoursStart != nil {
		settings.QuietHoursStart = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		settings.QuietHoursEnd = *req.QuietHoursEnd
	}
	if req.Timezone != nil {
		settings.Timezone = *req.Timezone
	}
	if req.IsActive != nil {
		settings.IsActive = *req.IsActive
	}
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
