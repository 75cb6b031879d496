package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/mongodb"
)

const analyticsCollection = "reminder_analytics"

// AnalyticsRepository maintains the daily (date, doctor) counter buckets.
// Increments are atomic upsert-and-increment so concurrent deliveries for
// the same bucket never lose counts.
type AnalyticsRepository struct {
	client *mongodb.MongoClient
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(client *mongodb.MongoClient) *AnalyticsRepository {
	return &AnalyticsRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *AnalyticsRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "date", Value: 1},
				{Key: "doctor_id", Value: 1},
			},
			Options: options.Index().SetName("date_doctor_idx").SetUnique(true),
		},
	}

	return r.client.CreateIndexes(ctx, analyticsCollection, indexes)
}

// IncrementSent bumps the sent counter for (today's date, doctor, channel)
func (r *AnalyticsRepository) IncrementSent(ctx context.Context, doctorID string, channel domain.ReminderChannel, at time.Time) error {
	return r.increment(ctx, doctorID, channel, "sent", at)
}

// IncrementFailed bumps the failed counter for (today's date, doctor, channel)
func (r *AnalyticsRepository) IncrementFailed(ctx context.Context, doctorID string, channel domain.ReminderChannel, at time.Time) error {
	return r.increment(ctx, doctorID, channel, "failed", at)
}

func (r *AnalyticsRepository) increment(ctx context.Context, doctorID string, channel domain.ReminderChannel, outcome string, at time.Time) error {
	filter := bson.M{
		"date":      domain.AnalyticsDate(at),
		"doctor_id": doctorID,
	}
	update := bson.M{
		"$inc": bson.M{fmt.Sprintf("channels.%s.%s", channel, outcome): 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(analyticsCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

// FindByDateRange lists buckets for a doctor between two dates inclusive
func (r *AnalyticsRepository) FindByDateRange(ctx context.Context, doctorID, from, to string) ([]*domain.ReminderAnalytics, error) {
	filter := bson.M{
		"doctor_id": doctorID,
		"date":      bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.M{"date": 1})

	cursor, err := r.client.Collection(analyticsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []*domain.ReminderAnalytics
	if err = cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// FindBucket returns one (date, doctor) bucket, or nil when no reminder
// has been recorded for it yet
func (r *AnalyticsRepository) FindBucket(ctx context.Context, doctorID, date string) (*domain.ReminderAnalytics, error) {
	var bucket domain.ReminderAnalytics
	err := r.client.Collection(analyticsCollection).FindOne(ctx, bson.M{
		"date":      date,
		"doctor_id": doctorID,
	}).Decode(&bucket)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}
