package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/rabbitmq"
)

const (
	delayExchange = "reminders.delay"
	delayQueue    = "reminders.delay.queue"
	fireExchange  = "reminders.fire"
	fireQueue     = "reminders.fire.queue"
	fireKey       = "reminder.fire"
)

// RabbitDelayQueue implements delayed delivery with the per-message TTL +
// dead-letter-exchange pattern: messages sit in the delay queue until
// their TTL expires, then route through the fire exchange to the queue
// the delivery workers consume.
type RabbitDelayQueue struct {
	client *rabbitmq.RabbitMQClient
	log    *logger.Logger
}

// NewRabbitDelayQueue declares the delay/fire topology and returns the queue
func NewRabbitDelayQueue(client *rabbitmq.RabbitMQClient, log *logger.Logger) (*RabbitDelayQueue, error) {
	if err := client.DeclareExchange(delayExchange, "direct"); err != nil {
		return nil, fmt.Errorf("declare delay exchange: %w", err)
	}
	if err := client.DeclareExchange(fireExchange, "direct"); err != nil {
		return nil, fmt.Errorf("declare fire exchange: %w", err)
	}
	if err := client.DeclareQueue(delayQueue, amqp091.Table{
		"x-dead-letter-exchange":    fireExchange,
		"x-dead-letter-routing-key": fireKey,
	}); err != nil {
		return nil, fmt.Errorf("declare delay queue: %w", err)
	}
	if err := client.DeclareQueue(fireQueue, nil); err != nil {
		return nil, fmt.Errorf("declare fire queue: %w", err)
	}
	if err := client.BindQueue(delayQueue, fireKey, delayExchange); err != nil {
		return nil, fmt.Errorf("bind delay queue: %w", err)
	}
	if err := client.BindQueue(fireQueue, fireKey, fireExchange); err != nil {
		return nil, fmt.Errorf("bind fire queue: %w", err)
	}

	return &RabbitDelayQueue{client: client, log: log}, nil
}

// EnqueueWithDelay publishes a message with the delay as its TTL
func (q *RabbitDelayQueue) EnqueueWithDelay(ctx context.Context, msg *domain.DeliveryMessage, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal delivery message: %w", err)
	}

	if delay <= 0 {
		// Nothing to wait for; skip the delay queue entirely
		return q.client.Publish(fireExchange, fireKey, body)
	}

	expiration := strconv.FormatInt(delay.Milliseconds(), 10)
	return q.client.PublishWithExpiration(delayExchange, fireKey, msg.MessageID, expiration, body)
}

// Cancel reports false: a message already sitting in the delay queue
// cannot be removed. Cancellation relies on the worker's eligibility
// re-check at fire time.
func (q *RabbitDelayQueue) Cancel(messageID string) bool {
	return false
}

// Consume reads fired messages until the context is cancelled. Messages
// that fail to decode are dropped without requeueing; the handler is
// responsible for its own retry bookkeeping, so every decoded message is
// acknowledged.
func (q *RabbitDelayQueue) Consume(ctx context.Context, handle Handler) error {
	messages, err := q.client.Consume(fireQueue, "reminder-delivery-worker")
	if err != nil {
		return fmt.Errorf("consume fire queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("fire queue channel closed")
			}

			var delivery domain.DeliveryMessage
			if err := json.Unmarshal(msg.Body, &delivery); err != nil {
				q.log.Error("Failed to unmarshal delivery message", "error", err, "message_id", msg.MessageID)
				msg.Nack(false, false)
				continue
			}

			handle(ctx, &delivery)
			msg.Ack(false)
		}
	}
}
