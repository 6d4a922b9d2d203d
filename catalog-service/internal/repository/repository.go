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

	"tattoo-app/catalog-service/internal/models"
	"tattoo-app/pkg/mongodb"
)

const (
	collectionName = "designs"
)

type DesignRepository struct {
	collection *mongo.Collection
}

func NewDesignRepository(db *mongo.Database) *DesignRepository {
	return &DesignRepository{
		collection: db.Collection(collectionName),
	}
}

func (r *DesignRepository) EnsureIndexes(ctx context.Context) error {
	return mongodb.EnsureIndexes(ctx, r.collection,
		mongo.IndexModel{Keys: bson.D{{Key: "artist_id", Value: 1}, {Key: "created_at", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}},
	)
}

// List returns designs newest first, optionally for one artist only.
func (r *DesignRepository) List(ctx context.Context, artistID string) ([]models.Design, error) {
	filter := bson.M{}
	if artistID != "" {
		filter["artist_id"] = artistID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	designs := []models.Design{}
	if err = cursor.All(ctx, &designs); err != nil {
		return nil, err
	}
	return designs, nil
}

func (r *DesignRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Design, error) {
	var design models.Design
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&design)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *DesignRepository) Create(ctx context.Context, design *models.Design) error {
	now := time.Now().UTC()
	design.CreatedAt = now
	design.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, design)
	if err != nil {
		return fmt.Errorf("insert design: %w", err)
	}
	design.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// Update rewrites the editable fields of a design owned by artistID.
// A design owned by someone else is reported as not found.
func (r *DesignRepository) Update(ctx context.Context, artistID string, design *models.Design) error {
	design.UpdatedAt = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": design.ID, "artist_id": artistID},
		bson.M{"$set": bson.M{
			"title":       design.Title,
			"description": design.Description,
			"image_url":   design.ImageURL,
			"price":       design.Price,
			"updated_at":  design.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *DesignRepository) Delete(ctx context.Context, artistID string, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "artist_id": artistID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
