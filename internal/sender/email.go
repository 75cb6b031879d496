package sender

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/config"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// smtpClient covers the subset of *smtp.Client a send transaction uses
type smtpClient interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
}

// EmailSender delivers reminders over SMTP using a connection pool
type EmailSender struct {
	pool   *SMTPPool
	config config.SMTPConfig
	logger *logger.Logger
}

// NewEmailSender creates an email sender. The pool may be nil when SMTP
// is not configured; Send reports a permanent configuration failure in
// that case.
func NewEmailSender(pool *SMTPPool, cfg config.SMTPConfig, log *logger.Logger) *EmailSender {
	return &EmailSender{
		pool:   pool,
		config: cfg,
		logger: log,
	}
}

// Channel returns the email channel
func (s *EmailSender) Channel() domain.ReminderChannel {
	return domain.ChannelEmail
}

// Send delivers one reminder email to the user's address
func (s *EmailSender) Send(ctx context.Context, user *domain.User, msg *domain.DeliveryMessage, content Content) Outcome {
	if s.config.Host == "" || s.config.FromEmail == "" {
		return configFailure("smtp host or from address not configured")
	}
	if s.pool == nil {
		return configFailure("smtp connection pool unavailable")
	}
	if user.Email == "" {
		return failure("user has no email address")
	}

	client, err := s.pool.Get()
	if err != nil {
		return failure(fmt.Sprintf("failed to get SMTP connection: %v", err))
	}

	if err := s.transmit(client, user.Email, content); err != nil {
		// A failed transaction leaves the connection in an unknown
		// state; do not return it to the pool
		client.Quit()
		return failure(fmt.Sprintf("smtp send failed: %v", err))
	}
	s.pool.Put(client)

	s.logger.Debug("Email reminder sent",
		"appointment_id", msg.AppointmentID,
		"to", user.Email)

	return Outcome{Success: true, TrackingID: msg.TrackingID}
}

func (s *EmailSender) transmit(client smtpClient, to string, content Content) error {
	if err := client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(s.buildMIME(to, content))); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message body: %w", err)
	}
	return nil
}

// buildMIME constructs the raw RFC 5322 message
func (s *EmailSender) buildMIME(to string, content Content) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.FromEmail))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", content.Subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), s.config.Host))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(content.Body)
	b.WriteString("\r\n")
	return b.String()
}
