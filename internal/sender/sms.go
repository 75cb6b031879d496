package sender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/config"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// SMSSender delivers reminders through a Twilio-compatible REST API
type SMSSender struct {
	config     config.SMSConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewSMSSender creates an SMS sender
func NewSMSSender(cfg config.SMSConfig, httpClient *http.Client, log *logger.Logger) *SMSSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SMSSender{
		config:     cfg,
		httpClient: httpClient,
		logger:     log,
	}
}

// Channel returns the sms channel
func (s *SMSSender) Channel() domain.ReminderChannel {
	return domain.ChannelSMS
}

// Send delivers one SMS reminder to the user's best phone number
func (s *SMSSender) Send(ctx context.Context, user *domain.User, msg *domain.DeliveryMessage, content Content) Outcome {
	if s.config.AccountSID == "" || s.config.AuthToken == "" || s.config.FromNumber == "" {
		return configFailure("sms provider credentials not configured")
	}

	phone := ResolvePhone(user)
	if phone == "" {
		return failure("user has no phone number")
	}

	if err := s.postMessage(ctx, phone, content.Body); err != nil {
		return failure(fmt.Sprintf("sms send failed: %v", err))
	}

	s.logger.Debug("SMS reminder sent",
		"appointment_id", msg.AppointmentID,
		"to", phone)

	return Outcome{Success: true, TrackingID: msg.TrackingID}
}

func (s *SMSSender) postMessage(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.config.APIBaseURL, "/"), s.config.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.config.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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

// ResolvePhone picks the user's best phone number, preferring mobile
func ResolvePhone(user *domain.User) string {
	for _, candidate := range []string{user.MobilePhone, user.Phone, user.WorkPhone} {
		if normalized := NormalizePhone(candidate); normalized != "" {
			return normalized
		}
	}
	return ""
}

// NormalizePhone converts a free-form phone number into E.164-like form.
// Ten-digit numbers are assumed to be North American.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	number := digits.String()
	if len(number) < 10 {
		return ""
	}
	if len(number) == 10 {
		number = "1" + number
	}
	return "+" + number
}
