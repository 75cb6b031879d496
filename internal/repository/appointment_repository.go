package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/mongodb"
)

const appointmentsCollection = "appointments"

// AppointmentRepository reads appointments owned by the surrounding admin
// backend. This service never writes to the collection.
type AppointmentRepository struct {
	client *mongodb.MongoClient
}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository(client *mongodb.MongoClient) *AppointmentRepository {
	return &AppointmentRepository{client: client}
}

// FindByID finds an appointment by ID, excluding soft-deleted rows
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*domain.Appointment, error) {
	var appt domain.Appointment
	filter := bson.M{"_id": id, "deleted_at": nil}
	err := r.client.Collection(appointmentsCollection).FindOne(ctx, filter).Decode(&appt)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("appointment not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// FindByIDIncludingDeleted finds an appointment whether or not it has been
// soft-deleted. The delivery worker needs the deleted row to distinguish
// "appointment removed" from "appointment never existed".
func (r *AppointmentRepository) FindByIDIncludingDeleted(ctx context.Context, id string) (*domain.Appointment, error) {
	var appt domain.Appointment
	err := r.client.Collection(appointmentsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("appointment not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}
