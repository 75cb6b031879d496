package sender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/config"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ten digits", "5551234567", "+15551234567"},
		{"formatted ten digits", "(555) 123-4567", "+15551234567"},
		{"eleven digits", "15551234567", "+15551234567"},
		{"already e164", "+15551234567", "+15551234567"},
		{"international", "+44 20 7946 0958", "+442079460958"},
		{"with dots", "555.123.4567", "+15551234567"},
		{"too short", "12345", ""},
		{"empty", "", ""},
		{"letters only", "call me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.input))
		})
	}
}

func TestResolvePhone(t *testing.T) {
	t.Run("prefers mobile phone", func(t *testing.T) {
		user := &domain.User{
			MobilePhone: "5551112222",
			Phone:       "5553334444",
			WorkPhone:   "5555556666",
		}
		assert.Equal(t, "+15551112222", ResolvePhone(user))
	})

	t.Run("falls back to primary then work", func(t *testing.T) {
		user := &domain.User{Phone: "5553334444", WorkPhone: "5555556666"}
		assert.Equal(t, "+15553334444", ResolvePhone(user))

		user = &domain.User{WorkPhone: "5555556666"}
		assert.Equal(t, "+15555556666", ResolvePhone(user))
	})

	t.Run("skips unusable candidates", func(t *testing.T) {
		user := &domain.User{MobilePhone: "123", Phone: "5553334444"}
		assert.Equal(t, "+15553334444", ResolvePhone(user))
	})

	t.Run("empty when no numbers", func(t *testing.T) {
		assert.Equal(t, "", ResolvePhone(&domain.User{}))
	})
}

func TestSMSSenderMissingCredentials(t *testing.T) {
	sender := NewSMSSender(config.SMSConfig{}, nil, logger.NewNop())

	outcome := sender.Send(context.Background(), &domain.User{Phone: "5551234567"}, &domain.DeliveryMessage{}, Content{})

	assert.False(t, outcome.Success)
	assert.True(t, outcome.Permanent)
}

func TestSMSSenderMissingPhone(t *testing.T) {
	cfg := config.SMSConfig{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15550000000"}
	sender := NewSMSSender(cfg, nil, logger.NewNop())

	outcome := sender.Send(context.Background(), &domain.User{}, &domain.DeliveryMessage{}, Content{})

	assert.False(t, outcome.Success)
	assert.False(t, outcome.Permanent)
	assert.Contains(t, outcome.Error, "no phone number")
}

func TestSMSSenderPostsToProvider(t *testing.T) {
	var gotPath, gotTo, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := config.SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550000000",
		APIBaseURL: server.URL,
	}
	sender := NewSMSSender(cfg, server.Client(), logger.NewNop())

	msg := &domain.DeliveryMessage{AppointmentID: "appt-1", TrackingID: "appt-1:24h:sms:1"}
	outcome := sender.Send(context.Background(), &domain.User{MobilePhone: "5551234567"}, msg, Content{Body: "Reminder"})

	assert.True(t, outcome.Success)
	assert.Equal(t, "appt-1:24h:sms:1", outcome.TrackingID)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "Reminder", gotBody)
}

func TestSMSSenderProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"queue full"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550000000",
		APIBaseURL: server.URL,
	}
	sender := NewSMSSender(cfg, server.Client(), logger.NewNop())

	outcome := sender.Send(context.Background(), &domain.User{Phone: "5551234567"}, &domain.DeliveryMessage{}, Content{})

	assert.False(t, outcome.Success)
	assert.False(t, outcome.Permanent)
	assert.Contains(t, outcome.Error, "503")
}
