package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tattoo-app/appointment-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/mongodb"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	// FindOverlapping returns one booked appointment of the artist that
	// intersects [start, end), or nil.
	FindOverlapping(ctx context.Context, artistID string, start, end time.Time) (*models.Appointment, error)
	// TransitionStatus moves the appointment from one status to another and
	// reports false when it was no longer in the expected status.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, at time.Time) (bool, error)
	SetPaid(ctx context.Context, id primitive.ObjectID, at time.Time) error
	ListByClient(ctx context.Context, clientID string) ([]models.Appointment, error)
	ListByArtist(ctx context.Context, artistID string) ([]models.Appointment, error)
	ListBookedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
	ListBookedEndedBefore(ctx context.Context, t time.Time) ([]models.Appointment, error)
}

type MongoAppointmentRepository struct {
	collection *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) *MongoAppointmentRepository {
	return &MongoAppointmentRepository{collection: db.Collection("appointments")}
}

// EnsureIndexes creates the lookup indexes and the storage backstop: at most
// one booked appointment per (artist, start_time).
func (r *MongoAppointmentRepository) EnsureIndexes(ctx context.Context) error {
	return mongodb.EnsureIndexes(ctx, r.collection,
		mongo.IndexModel{
			Keys: bson.D{{Key: "artist_id", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().
				SetName("uniq_booked_artist_start").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.StatusBooked}),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "artist_id", Value: 1}, {Key: "status", Value: 1}, {Key: "start_time", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "start_time", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_time", Value: 1}}},
	)
}

func (r *MongoAppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	appt.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, appt); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.New(apperr.ErrSlotUnavailable, "artist already has a booking starting at %s", appt.StartTime.Format(time.RFC3339))
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *MongoAppointmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.New(apperr.ErrNotFound, "appointment %s not found", id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appt, nil
}

func (r *MongoAppointmentRepository) FindOverlapping(ctx context.Context, artistID string, start, end time.Time) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.collection.FindOne(ctx, bson.M{
		"artist_id":  artistID,
		"status":     models.StatusBooked,
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}).Decode(&appt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("overlap query: %w", err)
	}
	return &appt, nil
}

func (r *MongoAppointmentRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, at time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": at}},
	)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoAppointmentRepository) SetPaid(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"paid": true, "updated_at": at}})
	return err
}

func (r *MongoAppointmentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{"client_id": clientID}, bson.D{{Key: "start_time", Value: -1}})
}

func (r *MongoAppointmentRepository) ListByArtist(ctx context.Context, artistID string) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{"artist_id": artistID}, bson.D{{Key: "start_time", Value: -1}})
}

func (r *MongoAppointmentRepository) ListBookedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{
		"status":     models.StatusBooked,
		"start_time": bson.M{"$gte": from, "$lt": to},
	}, bson.D{{Key: "start_time", Value: 1}})
}

func (r *MongoAppointmentRepository) ListBookedEndedBefore(ctx context.Context, t time.Time) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{
		"status":   models.StatusBooked,
		"end_time": bson.M{"$lte": t},
	}, bson.D{{Key: "end_time", Value: 1}})
}

func (r *MongoAppointmentRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]models.Appointment, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appts := []models.Appointment{}
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}
