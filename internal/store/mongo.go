package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

const (
	logCollection  = "log_entries"
	userCollection = "users"
)

// Mongo stores logs and accounts in a MongoDB database.
type Mongo struct {
	client *mongo.Client
	logs   *mongo.Collection
	users  *mongo.Collection
}

type logDocument struct {
	UserID    string    `bson:"user_id"`
	MessageID string    `bson:"message_id"`
	Sender    string    `bson:"sender"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"created_at"`
}

// OpenMongo connects to uri, pings the primary and ensures indexes.
func OpenMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(dbName)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Log.Infof("MongoDB connected and indexes ensured (db=%s)", dbName)

	return &Mongo{
		client: client,
		logs:   db.Collection(logCollection),
		users:  db.Collection(userCollection),
	}, nil
}

func ensureIndexes(ctx context.Context, d *mongo.Database) error {
	if _, err := d.Collection(logCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("idx_user_created_at"),
	}); err != nil {
		return fmt.Errorf("create log index: %w", err)
	}

	if _, err := d.Collection(userCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_email").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create user index: %w", err)
	}
	return nil
}

func (m *Mongo) Name() string { return "mongo" }

func (m *Mongo) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }

func (m *Mongo) AppendLogEntry(ctx context.Context, userID string, msg chat.Message) error {
	_, err := m.logs.InsertOne(ctx, logDocument{
		UserID:    userID,
		MessageID: msg.ID,
		Sender:    string(msg.Sender),
		Text:      msg.Text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

func (m *Mongo) FetchLogHistory(ctx context.Context, userID string, limit int) ([]chat.LogEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := m.logs.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find log entries: %w", err)
	}

	var docs []logDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode log entries: %w", err)
	}

	entries := make([]chat.LogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, chat.LogEntry{
			Message: chat.Message{
				ID:     doc.MessageID,
				Text:   doc.Text,
				Sender: chat.Sender(doc.Sender),
			},
			CreatedAt: doc.CreatedAt,
		})
	}
	return entries, nil
}

func (m *Mongo) CreateUser(ctx context.Context, user User) error {
	_, err := m.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *Mongo) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := m.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
