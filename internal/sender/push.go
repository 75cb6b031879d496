package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/config"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// DeviceResolver looks up the user's most recently seen registered device
type DeviceResolver interface {
	FindLatestDevice(ctx context.Context, userID string) (*domain.UserDevice, error)
}

// PushSender delivers reminders through an FCM-compatible push API
type PushSender struct {
	config     config.PushConfig
	devices    DeviceResolver
	httpClient *http.Client
	logger     *logger.Logger
}

// NewPushSender creates a push sender
func NewPushSender(cfg config.PushConfig, devices DeviceResolver, httpClient *http.Client, log *logger.Logger) *PushSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PushSender{
		config:     cfg,
		devices:    devices,
		httpClient: httpClient,
		logger:     log,
	}
}

// Channel returns the push channel
func (s *PushSender) Channel() domain.ReminderChannel {
	return domain.ChannelPush
}

// Send delivers one push reminder to the user's most recent device
func (s *PushSender) Send(ctx context.Context, user *domain.User, msg *domain.DeliveryMessage, content Content) Outcome {
	if s.config.ServerKey == "" {
		return configFailure("push server key not configured")
	}

	token, err := s.resolveToken(ctx, user)
	if err != nil {
		return failure(fmt.Sprintf("device lookup failed: %v", err))
	}
	if token == "" {
		return failure("user has no registered device token")
	}

	if err := s.postNotification(ctx, token, msg, content); err != nil {
		return failure(fmt.Sprintf("push send failed: %v", err))
	}

	s.logger.Debug("Push reminder sent",
		"appointment_id", msg.AppointmentID,
		"user_id", user.ID)

	return Outcome{Success: true, TrackingID: msg.TrackingID}
}

// resolveToken prefers the device registry over the legacy token fields
// on the user record
func (s *PushSender) resolveToken(ctx context.Context, user *domain.User) (string, error) {
	if s.devices != nil {
		device, err := s.devices.FindLatestDevice(ctx, user.ID)
		if err != nil {
			return "", err
		}
		if device != nil && device.Token != "" {
			return device.Token, nil
		}
	}
	if user.FCMToken != "" {
		return user.FCMToken, nil
	}
	return user.DeviceTokenV1, nil
}

func (s *PushSender) postNotification(ctx context.Context, token string, msg *domain.DeliveryMessage, content Content) error {
	payload := map[string]interface{}{
		"to": token,
		"notification": map[string]string{
			"title": content.Subject,
			"body":  content.Body,
		},
		"data": map[string]string{
			"appointment_id": msg.AppointmentID,
			"reminder_type":  string(msg.Type),
			"tracking_id":    msg.TrackingID,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "key="+s.config.ServerKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
