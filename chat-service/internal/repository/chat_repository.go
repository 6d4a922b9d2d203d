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

	"tattoo-app/chat-service/internal/models"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/mongodb"
)

// ErrThreadExists is returned by CreateThread when the pair already has a
// thread; the caller should re-read it.
var ErrThreadExists = errors.New("thread already exists for pair")

const messageCounter = "chat_messages"

type ChatRepository interface {
	FindThreadByPair(ctx context.Context, artistID, clientID string) (*models.Thread, error)
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id primitive.ObjectID) (*models.Thread, error)
	ListThreadsFor(ctx context.Context, userID string) ([]models.Thread, error)
	TouchThread(ctx context.Context, id primitive.ObjectID, at time.Time) error

	NextMessageID(ctx context.Context) (int64, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, threadID primitive.ObjectID, afterID int64, limit int) ([]models.Message, error)
	LastMessage(ctx context.Context, threadID primitive.ObjectID) (*models.Message, error)
	// MarkSeen sets side's flag on messages up to lastID not sent by
	// readerID and returns how many changed.
	MarkSeen(ctx context.Context, threadID primitive.ObjectID, side models.Side, readerID string, lastID int64) (int64, error)
	// ThreadStats returns the last message and unread counts of every listed
	// thread in one round trip. Threads without messages are absent.
	ThreadStats(ctx context.Context, threadIDs []primitive.ObjectID, readerID string) (map[primitive.ObjectID]models.ThreadStats, error)
}

type MongoChatRepository struct {
	threadsCol  *mongo.Collection
	messagesCol *mongo.Collection
	countersCol *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *MongoChatRepository {
	return &MongoChatRepository{
		threadsCol:  db.Collection("chat_threads"),
		messagesCol: db.Collection("chat_messages"),
		countersCol: db.Collection("counters"),
	}
}

func (r *MongoChatRepository) EnsureIndexes(ctx context.Context) error {
	err := mongodb.EnsureIndexes(ctx, r.threadsCol,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "artist_id", Value: 1}, {Key: "client_id", Value: 1}},
			Options: options.Index().SetName("uniq_chat_pair").SetUnique(true),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "artist_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	)
	if err != nil {
		return err
	}
	return mongodb.EnsureIndexes(ctx, r.messagesCol,
		mongo.IndexModel{Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "_id", Value: 1}}},
	)
}

// Threads

func (r *MongoChatRepository) FindThreadByPair(ctx context.Context, artistID, clientID string) (*models.Thread, error) {
	var thread models.Thread
	err := r.threadsCol.FindOne(ctx, bson.M{"artist_id": artistID, "client_id": clientID}).Decode(&thread)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	return &thread, nil
}

func (r *MongoChatRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	thread.ID = primitive.NewObjectID()
	if _, err := r.threadsCol.InsertOne(ctx, thread); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrThreadExists
		}
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func (r *MongoChatRepository) GetThread(ctx context.Context, id primitive.ObjectID) (*models.Thread, error) {
	var thread models.Thread
	err := r.threadsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&thread)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.New(apperr.ErrNotFound, "thread %s not found", id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	return &thread, nil
}

func (r *MongoChatRepository) ListThreadsFor(ctx context.Context, userID string) ([]models.Thread, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.threadsCol.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"artist_id": userID},
		bson.M{"client_id": userID},
	}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	result := []models.Thread{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode threads: %w", err)
	}
	return result, nil
}

// TouchThread only moves updated_at forward.
func (r *MongoChatRepository) TouchThread(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.threadsCol.UpdateOne(ctx,
		bson.M{"_id": id, "updated_at": bson.M{"$lt": at}},
		bson.M{"$set": bson.M{"updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}

// Messages

// NextMessageID bumps the shared counter document atomically.
func (r *MongoChatRepository) NextMessageID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.countersCol.FindOneAndUpdate(ctx,
		bson.M{"_id": messageCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate message id: %w", err)
	}
	return counter.Seq, nil
}

func (r *MongoChatRepository) InsertMessage(ctx context.Context, msg *models.Message) error {
	if _, err := r.messagesCol.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MongoChatRepository) ListMessages(ctx context.Context, threadID primitive.ObjectID, afterID int64, limit int) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := r.messagesCol.Find(ctx, bson.M{
		"thread_id": threadID,
		"_id":       bson.M{"$gt": afterID},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	result := []models.Message{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return result, nil
}

func (r *MongoChatRepository) LastMessage(ctx context.Context, threadID primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := r.messagesCol.FindOne(ctx,
		bson.M{"thread_id": threadID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find last message: %w", err)
	}
	return &msg, nil
}

func (r *MongoChatRepository) MarkSeen(ctx context.Context, threadID primitive.ObjectID, side models.Side, readerID string, lastID int64) (int64, error) {
	field := side.SeenField()
	res, err := r.messagesCol.UpdateMany(ctx, bson.M{
		"thread_id": threadID,
		"_id":       bson.M{"$lte": lastID},
		"sender_id": bson.M{"$ne": readerID},
		field:       false,
	}, bson.M{"$set": bson.M{field: true}})
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoChatRepository) ThreadStats(ctx context.Context, threadIDs []primitive.ObjectID, readerID string) (map[primitive.ObjectID]models.ThreadStats, error) {
	out := make(map[primitive.ObjectID]models.ThreadStats, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"thread_id": bson.M{"$in": threadIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "thread_id", Value: 1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$thread_id",
			"last":          bson.M{"$first": "$$ROOT"},
			"unread_artist": unreadSum(models.SideArtist, readerID),
			"unread_client": unreadSum(models.SideClient, readerID),
		}}},
	}
	cursor, err := r.messagesCol.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate thread stats: %w", err)
	}

	var rows []struct {
		ThreadID     primitive.ObjectID `bson:"_id"`
		Last         models.Message     `bson:"last"`
		UnreadArtist int64              `bson:"unread_artist"`
		UnreadClient int64              `bson:"unread_client"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode thread stats: %w", err)
	}
	for _, row := range rows {
		last := row.Last
		out[row.ThreadID] = models.ThreadStats{
			Last:           &last,
			UnreadByArtist: row.UnreadArtist,
			UnreadByClient: row.UnreadClient,
		}
	}
	return out, nil
}

// unreadSum counts messages of others that side has not seen yet.
func unreadSum(side models.Side, readerID string) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$ne": bson.A{"$sender_id", readerID}},
			bson.M{"$eq": bson.A{"$" + side.SeenField(), false}},
		}},
		1,
		0,
	}}}
}
