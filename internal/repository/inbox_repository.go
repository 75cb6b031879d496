package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/mongodb"
)

const inboxCollection = "in_app_notifications"

// InboxRepository stores in-app notifications, the write target of the
// in-app channel sender
type InboxRepository struct {
	client *mongodb.MongoClient
}

// NewInboxRepository creates a new inbox repository
func NewInboxRepository(client *mongodb.MongoClient) *InboxRepository {
	return &InboxRepository{client: client}
}

// Create inserts an inbox row and returns its id
func (r *InboxRepository) Create(ctx context.Context, notification *domain.InAppNotification) (string, error) {
	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()

	_, err := r.client.Collection(inboxCollection).InsertOne(ctx, notification)
	if err != nil {
		return "", err
	}
	return notification.ID.Hex(), nil
}

// FindByUserID lists a user's inbox, newest first
func (r *InboxRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]*domain.InAppNotification, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(limit))

	cursor, err := r.client.Collection(inboxCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notifications []*domain.InAppNotification
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead stamps a read time on an inbox row, only once
func (r *InboxRepository) MarkRead(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": objectID, "read_at": nil}
	update := bson.M{"$set": bson.M{"read_at": time.Now()}}

	_, err = r.client.Collection(inboxCollection).UpdateOne(ctx, filter, update)
	return err
}
