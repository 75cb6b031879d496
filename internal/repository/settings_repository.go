package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/mongodb"
)

const settingsCollection = "reminder_settings"

// SettingsRepository handles reminder settings persistence. One record
// exists per owner, created lazily with defaults the first time it is
// requested.
type SettingsRepository struct {
	client *mongodb.MongoClient
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(client *mongodb.MongoClient) *SettingsRepository {
	return &SettingsRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *SettingsRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "owner_type", Value: 1},
			},
			Options: options.Index().SetName("owner_idx").SetUnique(true),
		},
	}

	return r.client.CreateIndexes(ctx, settingsCollection, indexes)
}

// GetOrCreate returns the owner's settings, inserting the defaults on
// first use. The upsert keeps concurrent first reads from creating
// duplicate records under the unique owner index.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, ownerID string, ownerType domain.OwnerType) (*domain.ReminderSettings, error) {
	filter := bson.M{"owner_id": ownerID, "owner_type": ownerType}

	var settings domain.ReminderSettings
	err := r.client.Collection(settingsCollection).FindOne(ctx, filter).Decode(&settings)
	if err == nil {
		return &settings, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	defaults := domain.DefaultReminderSettings(ownerID, ownerType)
	defaults.CreatedAt = time.Now()
	defaults.UpdatedAt = defaults.CreatedAt

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	err = r.client.Collection(settingsCollection).
		FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": defaults}, opts).
		Decode(&settings)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update replaces the owner's settings record
func (r *SettingsRepository) Update(ctx context.Context, settings *domain.ReminderSettings) error {
	settings.UpdatedAt = time.Now()

	filter := bson.M{"owner_id": settings.OwnerID, "owner_type": settings.OwnerType}
	update := bson.M{"$set": settings}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(settingsCollection).UpdateOne(ctx, filter, update, opts)
	return err
}
