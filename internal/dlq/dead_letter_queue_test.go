package dlq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/queue"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

type fakeFailedStore struct {
	byID    map[string]*domain.FailedReminder
	deleted []string
}

func newFakeFailedStore(parked ...*domain.FailedReminder) *fakeFailedStore {
	f := &fakeFailedStore{byID: make(map[string]*domain.FailedReminder)}
	for _, p := range parked {
		f.byID[p.ID.Hex()] = p
	}
	return f
}

func (f *fakeFailedStore) Create(ctx context.Context, failed *domain.FailedReminder) error {
	failed.ID = primitive.NewObjectID()
	f.byID[failed.ID.Hex()] = failed
	return nil
}

func (f *fakeFailedStore) FindByID(ctx context.Context, id string) (*domain.FailedReminder, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, apperrors.NewNotFoundError("failed reminder not found", nil)
}

func (f *fakeFailedStore) FindAll(ctx context.Context, page, pageSize int) ([]*domain.FailedReminder, int64, error) {
	var all []*domain.FailedReminder
	for _, p := range f.byID {
		all = append(all, p)
	}
	return all, int64(len(all)), nil
}

func (f *fakeFailedStore) Delete(ctx context.Context, id string) error {
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeJobStore struct {
	created []*domain.ScheduledReminderJob
	active  *domain.ScheduledReminderJob
}

func (f *fakeJobStore) Create(ctx context.Context, job *domain.ScheduledReminderJob) error {
	job.ID = primitive.NewObjectID()
	job.Status = domain.JobStatusPending
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobStore) FindLatestActive(ctx context.Context, appointmentID string, reminderType domain.ReminderType, channel domain.ReminderChannel) (*domain.ScheduledReminderJob, error) {
	return f.active, nil
}

type fakeQueue struct {
	enqueued []*domain.DeliveryMessage
	delays   []time.Duration
}

func (f *fakeQueue) EnqueueWithDelay(ctx context.Context, msg *domain.DeliveryMessage, delay time.Duration) error {
	f.enqueued = append(f.enqueued, msg)
	f.delays = append(f.delays, delay)
	return nil
}

func (f *fakeQueue) Cancel(messageID string) bool { return false }

func (f *fakeQueue) Consume(ctx context.Context, handle queue.Handler) error { return nil }

func parkedReminder() *domain.FailedReminder {
	return &domain.FailedReminder{
		ID:            primitive.NewObjectID(),
		JobID:         primitive.NewObjectID(),
		AppointmentID: "appt-1",
		UserID:        "patient-1",
		Type:          domain.ReminderType24Hour,
		Channel:       domain.ChannelEmail,
		Error:         "smtp timeout",
		Attempts:      3,
		FailedAt:      time.Now(),
	}
}

func TestRetryReplaysAsFreshJob(t *testing.T) {
	parked := parkedReminder()
	store := newFakeFailedStore(parked)
	jobs := &fakeJobStore{}
	q := &fakeQueue{}
	d := NewDeadLetterQueue(store, jobs, q, logger.NewNop())

	err := d.Retry(context.Background(), parked.ID.Hex())
	require.NoError(t, err)

	require.Len(t, jobs.created, 1)
	job := jobs.created[0]
	assert.Equal(t, parked.AppointmentID, job.AppointmentID)
	assert.Equal(t, parked.Type, job.Type)
	assert.Equal(t, parked.Channel, job.Channel)

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, domain.TriggerManual, q.enqueued[0].Trigger)
	assert.Equal(t, job.ID.Hex(), q.enqueued[0].JobID)
	assert.Equal(t, time.Duration(0), q.delays[0])

	// The parked entry is consumed by the retry
	assert.Contains(t, store.deleted, parked.ID.Hex())
}

func TestRetrySkipsWhenSlotHasActiveJob(t *testing.T) {
	parked := parkedReminder()
	store := newFakeFailedStore(parked)
	jobs := &fakeJobStore{active: &domain.ScheduledReminderJob{
		ID:            primitive.NewObjectID(),
		AppointmentID: parked.AppointmentID,
		Type:          parked.Type,
		Channel:       parked.Channel,
		Status:        domain.JobStatusPending,
	}}
	q := &fakeQueue{}
	d := NewDeadLetterQueue(store, jobs, q, logger.NewNop())

	err := d.Retry(context.Background(), parked.ID.Hex())

	// A reschedule already replaced this reminder; retrying would
	// double-deliver the slot
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Empty(t, jobs.created)
	assert.Empty(t, q.enqueued)
	assert.Empty(t, store.deleted)
}

func TestRetryUnknownID(t *testing.T) {
	d := NewDeadLetterQueue(newFakeFailedStore(), &fakeJobStore{}, &fakeQueue{}, logger.NewNop())

	err := d.Retry(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDiscardRemovesEntry(t *testing.T) {
	parked := parkedReminder()
	store := newFakeFailedStore(parked)
	d := NewDeadLetterQueue(store, &fakeJobStore{}, &fakeQueue{}, logger.NewNop())

	require.NoError(t, d.Discard(context.Background(), parked.ID.Hex()))
	assert.Contains(t, store.deleted, parked.ID.Hex())
}
