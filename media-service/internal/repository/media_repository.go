package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tattoo-app/media-service/internal/models"
	"tattoo-app/pkg/mongodb"
)

type MediaRepository struct {
	mediaCol       *mongo.Collection
	generationsCol *mongo.Collection
}

func NewMediaRepository(db *mongo.Database) *MediaRepository {
	return &MediaRepository{
		mediaCol:       db.Collection("media"),
		generationsCol: db.Collection("image_generations"),
	}
}

func (r *MediaRepository) EnsureIndexes(ctx context.Context) error {
	if err := mongodb.EnsureIndexes(ctx, r.mediaCol,
		mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	); err != nil {
		return err
	}
	return mongodb.EnsureIndexes(ctx, r.generationsCol,
		mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
	)
}

func (r *MediaRepository) Save(ctx context.Context, m *models.Media) error {
	m.ID = primitive.NewObjectID()
	if _, err := r.mediaCol.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (r *MediaRepository) FindByUserID(ctx context.Context, userID string) ([]models.Media, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.mediaCol.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find media: %w", err)
	}

	// Гарантируем [] вместо null
	res := make([]models.Media, 0)
	if err := cursor.All(ctx, &res); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	return res, nil
}

// Generations

func (r *MediaRepository) RecordGeneration(ctx context.Context, g *models.ImageGeneration) error {
	g.ID = primitive.NewObjectID()
	if _, err := r.generationsCol.InsertOne(ctx, g); err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

func (r *MediaRepository) DeleteGeneration(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.generationsCol.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	return nil
}

func (r *MediaRepository) CountGenerationsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	n, err := r.generationsCol.CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return n, nil
}
