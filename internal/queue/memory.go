package queue

import (
	"context"
	"sync"
	"time"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
)

// MemoryDelayQueue is a timer-based in-process delay queue. It backs
// single-node deployments without a broker and every unit test. Unlike
// the RabbitMQ implementation it supports true cancellation.
type MemoryDelayQueue struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	fired   chan *domain.DeliveryMessage
	closed  bool
	stopped chan struct{}
}

// NewMemoryDelayQueue creates a new in-memory delay queue
func NewMemoryDelayQueue() *MemoryDelayQueue {
	return &MemoryDelayQueue{
		timers:  make(map[string]*time.Timer),
		fired:   make(chan *domain.DeliveryMessage, 256),
		stopped: make(chan struct{}),
	}
}

// EnqueueWithDelay schedules a message to fire after the delay
func (q *MemoryDelayQueue) EnqueueWithDelay(ctx context.Context, msg *domain.DeliveryMessage, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return context.Canceled
	}
	if delay < 0 {
		delay = 0
	}

	id := msg.MessageID
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, id)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		select {
		case q.fired <- msg:
		case <-q.stopped:
		}
	})
	return nil
}

// Cancel stops a queued message before it fires
func (q *MemoryDelayQueue) Cancel(messageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	timer, ok := q.timers[messageID]
	if !ok {
		return false
	}
	delete(q.timers, messageID)
	return timer.Stop()
}

// Consume delivers fired messages to the handler until ctx is done
func (q *MemoryDelayQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q.fired:
			handle(ctx, msg)
		}
	}
}

// Len returns the number of messages still waiting to fire
func (q *MemoryDelayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Close stops the queue; queued timers are discarded
func (q *MemoryDelayQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.stopped)
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
}
