package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/mongodb"
)

const scheduledJobsCollection = "scheduled_reminder_jobs"

// JobRegistry tracks every reminder job that has been queued. Status
// transitions are one-directional; the conditional filters below make
// transitions out of a terminal state a no-op rather than an error, which
// keeps cancellation/delivery races safe.
type JobRegistry struct {
	client *mongodb.MongoClient
}

// NewJobRegistry creates a new job registry
func NewJobRegistry(client *mongodb.MongoClient) *JobRegistry {
	return &JobRegistry{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *JobRegistry) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "appointment_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("appointment_status_idx"),
		},
		{
			Keys: bson.D{
				{Key: "tracking_id", Value: 1},
			},
			Options: options.Index().SetName("tracking_id_idx").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "appointment_id", Value: 1},
				{Key: "type", Value: 1},
				{Key: "channel", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("logical_slot_idx"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "scheduled_for", Value: 1},
			},
			Options: options.Index().SetName("status_scheduled_for_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, scheduledJobsCollection, indexes)
}

// Create creates a new scheduled reminder job in pending state
func (r *JobRegistry) Create(ctx context.Context, job *domain.ScheduledReminderJob) error {
	job.ID = primitive.NewObjectID()
	job.Status = domain.JobStatusPending
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	_, err := r.client.Collection(scheduledJobsCollection).InsertOne(ctx, job)
	return err
}

// FindByID finds a job by ID
func (r *JobRegistry) FindByID(ctx context.Context, id string) (*domain.ScheduledReminderJob, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var job domain.ScheduledReminderJob
	err = r.client.Collection(scheduledJobsCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("scheduled reminder job not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindPendingByAppointment lists every pending job for an appointment
func (r *JobRegistry) FindPendingByAppointment(ctx context.Context, appointmentID string) ([]*domain.ScheduledReminderJob, error) {
	filter := bson.M{
		"appointment_id": appointmentID,
		"status":         domain.JobStatusPending,
	}
	cursor, err := r.client.Collection(scheduledJobsCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*domain.ScheduledReminderJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindLatestActive returns the newest non-terminal job for a logical
// (appointment, type, channel) slot, or nil when none exists. Lookup is by
// composite key rather than tracking-id prefix so multiple attempts for
// the same slot stay unambiguous.
func (r *JobRegistry) FindLatestActive(ctx context.Context, appointmentID string, reminderType domain.ReminderType, channel domain.ReminderChannel) (*domain.ScheduledReminderJob, error) {
	filter := bson.M{
		"appointment_id": appointmentID,
		"type":           reminderType,
		"channel":        channel,
		"status":         bson.M{"$in": []domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}},
	}
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})

	var job domain.ScheduledReminderJob
	err := r.client.Collection(scheduledJobsCollection).FindOne(ctx, filter, opts).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindOverdue lists stranded non-terminal jobs for the sweeper: pending
// jobs whose fire time passed before the cutoff, and processing jobs
// whose last attempt is older than the cutoff. The second arm catches a
// worker that died mid-attempt or failed to enqueue a retry; processing
// to processing is a legal transition, so re-delivery is safe.
func (r *JobRegistry) FindOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*domain.ScheduledReminderJob, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{
				"status":        domain.JobStatusPending,
				"scheduled_for": bson.M{"$lt": cutoff},
			},
			bson.M{
				"status":         domain.JobStatusProcessing,
				"last_attempted": bson.M{"$lt": cutoff},
			},
		},
	}
	opts := options.Find().SetSort(bson.M{"scheduled_for": 1}).SetLimit(int64(limit))

	cursor, err := r.client.Collection(scheduledJobsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*domain.ScheduledReminderJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkProcessing transitions a job to processing, recording the attempt.
// Returns false when the job is already terminal.
func (r *JobRegistry) MarkProcessing(ctx context.Context, id string, attempts int) (bool, error) {
	now := time.Now()
	return r.transition(ctx, id, domain.JobStatusProcessing, bson.M{
		"attempts":       attempts,
		"last_attempted": now,
	})
}

// MarkSent transitions a job to its sent terminal state
func (r *JobRegistry) MarkSent(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, domain.JobStatusSent, bson.M{})
}

// MarkFailed transitions a job to its failed terminal state
func (r *JobRegistry) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	return r.transition(ctx, id, domain.JobStatusFailed, bson.M{
		"failure_reason": reason,
	})
}

// MarkCancelled transitions a job to its cancelled terminal state
func (r *JobRegistry) MarkCancelled(ctx context.Context, id, reason string) (bool, error) {
	now := time.Now()
	return r.transition(ctx, id, domain.JobStatusCancelled, bson.M{
		"failure_reason": reason,
		"cancelled_at":   now,
	})
}

// transition applies a one-directional status change. The filter restricts
// the update to the statuses a job may legally move from; zero matched
// documents means the job was already terminal and the call is a no-op.
func (r *JobRegistry) transition(ctx context.Context, id string, to domain.JobStatus, set bson.M) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, err
	}

	set["status"] = to
	set["updated_at"] = time.Now()

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": domain.AllowedPriorStatuses(to)},
	}

	result, err := r.client.Collection(scheduledJobsCollection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}
