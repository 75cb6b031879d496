package queue

import (
	"context"
	"time"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
)

// Handler processes one fired delivery message
type Handler func(ctx context.Context, msg *domain.DeliveryMessage)

// DelayQueue enqueues delivery messages that fire after a delay. The
// scheduling engine and the delivery worker depend on this interface, not
// on a concrete broker, so both run against the in-memory implementation
// in tests.
type DelayQueue interface {
	// EnqueueWithDelay queues a message to fire after the delay. A zero or
	// negative delay fires as soon as possible.
	EnqueueWithDelay(ctx context.Context, msg *domain.DeliveryMessage, delay time.Duration) error

	// Cancel removes a queued message before it fires, best-effort.
	// Returns false when the backing queue cannot un-queue it; the
	// delivery worker's eligibility re-check is the backstop then.
	Cancel(messageID string) bool

	// Consume delivers fired messages to the handler until ctx is done
	Consume(ctx context.Context, handle Handler) error
}
