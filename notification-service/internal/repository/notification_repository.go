package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tattoo-app/notification-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/mongodb"
)

type NotificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{col: db.Collection("notifications")}
}

func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	return mongodb.EnsureIndexes(ctx, r.col, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	res, err := r.col.InsertOne(ctx, n)
	if err != nil {
		return err
	}
	n.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// GetByUserID возвращает уведомления пользователя, новые первыми
func (r *NotificationRepository) GetByUserID(ctx context.Context, userID string, limit, offset int64) ([]models.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false})
}

// MarkAsRead отмечает уведомление владельца. Чужое уведомление даёт
// Forbidden, несуществующее NotFound.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id primitive.ObjectID, userID string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	err = r.col.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.New(apperr.ErrNotFound, "notification not found")
	}
	if err != nil {
		return err
	}
	return apperr.New(apperr.ErrForbidden, "notification belongs to another user")
}
