package sender

import (
	"context"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
)

// Content is the rendered reminder handed to a channel sender
type Content struct {
	Subject string
	Body    string
}

// Outcome is the structured result of one send attempt. Missing contact
// info is reported as a failed Outcome, never as a panic or an escaping
// error.
type Outcome struct {
	Success    bool
	TrackingID string
	Error      string
	// Permanent marks failures retrying cannot fix, such as missing
	// provider credentials
	Permanent bool
}

// ChannelSender is implemented once per channel. The delivery worker
// selects the implementation by explicit channel dispatch.
type ChannelSender interface {
	Channel() domain.ReminderChannel
	Send(ctx context.Context, user *domain.User, msg *domain.DeliveryMessage, content Content) Outcome
}

// Registry maps each channel to its sender
type Registry map[domain.ReminderChannel]ChannelSender

// NewRegistry builds the channel dispatch table
func NewRegistry(senders ...ChannelSender) Registry {
	registry := make(Registry, len(senders))
	for _, s := range senders {
		registry[s.Channel()] = s
	}
	return registry
}

func failure(reason string) Outcome {
	return Outcome{Success: false, Error: reason}
}

func configFailure(reason string) Outcome {
	return Outcome{Success: false, Error: reason, Permanent: true}
}
