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

const failedRemindersCollection = "failed_reminders"

// FailedReminderRepository stores reminders that exhausted every retry
type FailedReminderRepository struct {
	client *mongodb.MongoClient
}

// NewFailedReminderRepository creates a new failed reminder repository
func NewFailedReminderRepository(client *mongodb.MongoClient) *FailedReminderRepository {
	return &FailedReminderRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *FailedReminderRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "failed_at", Value: -1},
			},
			Options: options.Index().SetName("failed_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "appointment_id", Value: 1},
			},
			Options: options.Index().SetName("appointment_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, failedRemindersCollection, indexes)
}

// Create creates a new failed reminder record
func (r *FailedReminderRepository) Create(ctx context.Context, failed *domain.FailedReminder) error {
	failed.ID = primitive.NewObjectID()
	failed.CreatedAt = time.Now()

	_, err := r.client.Collection(failedRemindersCollection).InsertOne(ctx, failed)
	return err
}

// FindByID finds a failed reminder by ID
func (r *FailedReminderRepository) FindByID(ctx context.Context, id string) (*domain.FailedReminder, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var failed domain.FailedReminder
	err = r.client.Collection(failedRemindersCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&failed)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("failed reminder not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return &failed, nil
}

// FindAll retrieves failed reminders with pagination using one
// aggregation round trip
func (r *FailedReminderRepository) FindAll(ctx context.Context, page, pageSize int) ([]*domain.FailedReminder, int64, error) {
	skip := (page - 1) * pageSize

	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"metadata": bson.A{bson.M{"$count": "total"}},
			"data": bson.A{
				bson.M{"$sort": bson.M{"failed_at": -1}},
				bson.M{"$skip": skip},
				bson.M{"$limit": pageSize},
			},
		}}},
	}

	cursor, err := r.client.Collection(failedRemindersCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	type Result struct {
		Metadata []struct {
			Total int64 `bson:"total"`
		} `bson:"metadata"`
		Data []*domain.FailedReminder `bson:"data"`
	}

	var results []Result
	if err = cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}

	if len(results) == 0 || len(results[0].Data) == 0 {
		return []*domain.FailedReminder{}, 0, nil
	}

	total := int64(0)
	if len(results[0].Metadata) > 0 {
		total = results[0].Metadata[0].Total
	}

	return results[0].Data, total, nil
}

// Delete deletes a failed reminder by ID
func (r *FailedReminderRepository) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.client.Collection(failedRemindersCollection).DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}
