package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
)

func TestMemoryDelayQueue_FiresAfterDelay(t *testing.T) {
	q := NewMemoryDelayQueue()
	defer q.Close()

	msg := &domain.DeliveryMessage{MessageID: "m1", AppointmentID: "a1"}
	require.NoError(t, q.EnqueueWithDelay(context.Background(), msg, 10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	received := make(chan *domain.DeliveryMessage, 1)
	go q.Consume(ctx, func(ctx context.Context, m *domain.DeliveryMessage) {
		received <- m
	})

	select {
	case got := <-received:
		assert.Equal(t, "m1", got.MessageID)
	case <-ctx.Done():
		t.Fatal("message never fired")
	}
}

func TestMemoryDelayQueue_Cancel(t *testing.T) {
	q := NewMemoryDelayQueue()
	defer q.Close()

	msg := &domain.DeliveryMessage{MessageID: "m1"}
	require.NoError(t, q.EnqueueWithDelay(context.Background(), msg, time.Hour))

	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Cancel("m1"))
	assert.Equal(t, 0, q.Len())

	// Cancelling twice or cancelling an unknown id is a no-op
	assert.False(t, q.Cancel("m1"))
	assert.False(t, q.Cancel("unknown"))
}

func TestMemoryDelayQueue_ZeroDelayFiresImmediately(t *testing.T) {
	q := NewMemoryDelayQueue()
	defer q.Close()

	require.NoError(t, q.EnqueueWithDelay(context.Background(), &domain.DeliveryMessage{MessageID: "m1"}, 0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	received := make(chan struct{}, 1)
	go q.Consume(ctx, func(ctx context.Context, m *domain.DeliveryMessage) {
		received <- struct{}{}
	})

	select {
	case <-received:
	case <-ctx.Done():
		t.Fatal("zero-delay message never fired")
	}
}
