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

const reminderLogsCollection = "reminder_logs"

// ReminderLogRepository handles the append-only reminder audit log.
// Entries are appended once and only their status-transition fields are
// ever updated afterwards.
type ReminderLogRepository struct {
	client *mongodb.MongoClient
}

// NewReminderLogRepository creates a new reminder log repository
func NewReminderLogRepository(client *mongodb.MongoClient) *ReminderLogRepository {
	return &ReminderLogRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *ReminderLogRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "appointment_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("appointment_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("user_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "tracking_token", Value: 1},
			},
			Options: options.Index().SetName("tracking_token_idx").SetSparse(true),
		},
	}

	return r.client.CreateIndexes(ctx, reminderLogsCollection, indexes)
}

// Create appends a new log entry
func (r *ReminderLogRepository) Create(ctx context.Context, entry *domain.ReminderLog) error {
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	if entry.Status == "" {
		entry.Status = domain.LogStatusPending
	}

	_, err := r.client.Collection(reminderLogsCollection).InsertOne(ctx, entry)
	return err
}

// FindByID finds a log entry by ID
func (r *ReminderLogRepository) FindByID(ctx context.Context, id string) (*domain.ReminderLog, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var entry domain.ReminderLog
	err = r.client.Collection(reminderLogsCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("reminder log entry not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkSent records a successful delivery on an entry
func (r *ReminderLogRepository) MarkSent(ctx context.Context, id, trackingToken string) error {
	now := time.Now()
	set := bson.M{
		"status":     domain.LogStatusSent,
		"sent_at":    now,
		"updated_at": now,
	}
	if trackingToken != "" {
		set["tracking_token"] = trackingToken
	}
	return r.updateByID(ctx, id, set)
}

// MarkFailed records a failed delivery attempt on an entry
func (r *ReminderLogRepository) MarkFailed(ctx context.Context, id, errorDetail string) error {
	return r.updateByID(ctx, id, bson.M{
		"status":     domain.LogStatusFailed,
		"error":      errorDetail,
		"updated_at": time.Now(),
	})
}

// MarkCancelled records a cancellation on an entry
func (r *ReminderLogRepository) MarkCancelled(ctx context.Context, id, reason string) error {
	now := time.Now()
	return r.updateByID(ctx, id, bson.M{
		"status":       domain.LogStatusCancelled,
		"cancelled_at": now,
		"error":        reason,
		"updated_at":   now,
	})
}

// CancelPending cancels every pending entry for an appointment, returning
// how many were updated
func (r *ReminderLogRepository) CancelPending(ctx context.Context, appointmentID, reason string) (int64, error) {
	now := time.Now()
	result, err := r.client.Collection(reminderLogsCollection).UpdateMany(ctx,
		bson.M{
			"appointment_id": appointmentID,
			"status":         domain.LogStatusPending,
		},
		bson.M{"$set": bson.M{
			"status":       domain.LogStatusCancelled,
			"cancelled_at": now,
			"error":        reason,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// RecordReceipt applies a provider delivery receipt to the entry holding
// the tracking token
func (r *ReminderLogRepository) RecordReceipt(ctx context.Context, trackingToken, status, reason string) error {
	now := time.Now()
	set := bson.M{"updated_at": now}
	switch status {
	case "delivered":
		set["delivered_at"] = now
	case "failed":
		set["status"] = domain.LogStatusFailed
		set["error"] = reason
	}

	result, err := r.client.Collection(reminderLogsCollection).UpdateOne(ctx,
		bson.M{"tracking_token": trackingToken},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.NewNotFoundError("no log entry for tracking token", nil)
	}
	return nil
}

// Find lists log entries with pagination using one aggregation round trip
func (r *ReminderLogRepository) Find(ctx context.Context, req *domain.GetLogsRequest) ([]*domain.ReminderLog, int64, error) {
	filter := bson.M{}
	if req.AppointmentID != "" {
		filter["appointment_id"] = req.AppointmentID
	}
	if req.UserID != "" {
		filter["user_id"] = req.UserID
	}
	if req.Status != "" {
		filter["status"] = req.Status
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	skip := (page - 1) * pageSize

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$facet", Value: bson.M{
			"metadata": bson.A{bson.M{"$count": "total"}},
			"data": bson.A{
				bson.M{"$sort": bson.M{"created_at": -1}},
				bson.M{"$skip": skip},
				bson.M{"$limit": pageSize},
			},
		}}},
	}

	cursor, err := r.client.Collection(reminderLogsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	type Result struct {
		Metadata []struct {
			Total int64 `bson:"total"`
		} `bson:"metadata"`
		Data []*domain.ReminderLog `bson:"data"`
	}

	var results []Result
	if err = cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}

	if len(results) == 0 || len(results[0].Data) == 0 {
		return []*domain.ReminderLog{}, 0, nil
	}

	total := int64(0)
	if len(results[0].Metadata) > 0 {
		total = results[0].Metadata[0].Total
	}

	return results[0].Data, total, nil
}

// DeleteOlderThan purges log entries created before the cutoff
func (r *ReminderLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.client.Collection(reminderLogsCollection).DeleteMany(ctx, bson.M{
		"created_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *ReminderLogRepository) updateByID(ctx context.Context, id string, set bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.client.Collection(reminderLogsCollection).UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	return err
}
