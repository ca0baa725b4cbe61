package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const CollectionName = "notifications"

type mongoNotice struct {
	ID        string    `bson:"_id"`
	Content   string    `bson:"content"`
	User      int64     `bson:"user"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"createdAt"`
}

type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return newMongoStoreWithCollection(database.Collection(CollectionName))
}

func newMongoStoreWithCollection(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

// EnsureIndexes creates the (user, createdAt) index used by ListByUser.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create notifications index: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	n.ID = uuid.NewString()
	n.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	doc := mongoNotice{ID: n.ID, Content: n.Content, User: n.UserID, Read: n.Read, CreatedAt: n.CreatedAt}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return model.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.coll.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoNotice
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Notification{
			ID:        d.ID,
			Content:   d.Content,
			UserID:    d.User,
			Read:      d.Read,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// ConnectMongo opens a client and verifies it with a primary ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func MongoReadyCheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}
