package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/mongodb"
)

const (
	usersCollection       = "users"
	userDevicesCollection = "user_devices"
)

// UserRepository reads clinic users and their registered devices
type UserRepository struct {
	client *mongodb.MongoClient
}

// NewUserRepository creates a new user repository
func NewUserRepository(client *mongodb.MongoClient) *UserRepository {
	return &UserRepository{client: client}
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.client.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("user not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindLatestDevice returns the user's most recently seen registered
// device, or nil when none is registered. The push sender falls back to
// the token fields on the user record in that case.
func (r *UserRepository) FindLatestDevice(ctx context.Context, userID string) (*domain.UserDevice, error) {
	var device domain.UserDevice
	opts := options.FindOne().SetSort(bson.M{"last_seen_at": -1})
	err := r.client.Collection(userDevicesCollection).FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&device)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}
