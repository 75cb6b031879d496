package sender

import (
	"context"
	"fmt"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// InboxWriter persists in-app notifications
type InboxWriter interface {
	Create(ctx context.Context, notification *domain.InAppNotification) (string, error)
}

// InAppSender delivers reminders by writing rows to the user's inbox.
// It has no external provider, so it never reports a configuration
// failure.
type InAppSender struct {
	inbox  InboxWriter
	logger *logger.Logger
}

// NewInAppSender creates an in-app sender
func NewInAppSender(inbox InboxWriter, log *logger.Logger) *InAppSender {
	return &InAppSender{
		inbox:  inbox,
		logger: log,
	}
}

// Channel returns the in-app channel
func (s *InAppSender) Channel() domain.ReminderChannel {
	return domain.ChannelInApp
}

// Send writes one inbox notification for the reminder
func (s *InAppSender) Send(ctx context.Context, user *domain.User, msg *domain.DeliveryMessage, content Content) Outcome {
	notification := &domain.InAppNotification{
		UserID:        user.ID,
		AppointmentID: msg.AppointmentID,
		Title:         content.Subject,
		Body:          content.Body,
	}

	id, err := s.inbox.Create(ctx, notification)
	if err != nil {
		return failure(fmt.Sprintf("failed to write inbox notification: %v", err))
	}

	s.logger.Debug("In-app reminder written",
		"appointment_id", msg.AppointmentID,
		"notification_id", id)

	return Outcome{Success: true, TrackingID: msg.TrackingID}
}
