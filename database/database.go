package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo holds the client and the collections the application uses.
type Mongo struct {
	Client   *mongo.Client
	Users    *mongo.Collection
	Stories  *mongo.Collection
	PushSubs *mongo.Collection

	// Transactions requires a replica set; without it batch inserts fall back
	// to a compensating delete.
	Transactions bool
}

func Connect(ctx context.Context, uri, dbName string, transactions bool) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	m := &Mongo{
		Client:       client,
		Users:        db.Collection("users"),
		Stories:      db.Collection("stories"),
		PushSubs:     db.Collection("push_subscriptions"),
		Transactions: transactions,
	}

	slog.Info("Connected to MongoDB successfully", slog.String("database", dbName))
	return m, nil
}

// EnsureIndexes creates the indexes the queries rely on. It is idempotent.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := m.Users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "handle", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	if _, err := m.Stories.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "likedBy", Value: 1}}},
		{Keys: bson.D{{Key: "savedBy", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create stories indexes: %w", err)
	}

	if _, err := m.PushSubs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create push subscriptions index: %w", err)
	}
	return nil
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return err
	}

	slog.Info("Disconnected from MongoDB")
	return nil
}
