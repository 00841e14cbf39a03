// internal/database/database.go
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	StoriesCollection        = "stories"
	UsersCollection          = "users"
	CommentsCollection       = "comments"
	RatingsCollection        = "ratings"
	ProgressCollection       = "readingProgress"
	ReportsCollection        = "reports"
	AdminActionsCollection   = "adminActions"
	NotificationsCollection  = "notifications"
	CredentialsCollection    = "credentials"
	PasswordResetsCollection = "passwordResets"
)

type MongoDB struct {
	Client         *mongo.Client
	Database       *mongo.Database
	Stories        *mongo.Collection
	Users          *mongo.Collection
	Comments       *mongo.Collection
	Ratings        *mongo.Collection
	Progress       *mongo.Collection
	Reports        *mongo.Collection
	AdminActions   *mongo.Collection
	Notifications  *mongo.Collection
	Credentials    *mongo.Collection
	PasswordResets *mongo.Collection
}

// NewMongoDB connects to the deployment at uri and verifies it with a ping.
// The ping is retried with exponential backoff for up to connectTimeout.
func NewMongoDB(ctx context.Context, uri, dbName string, connectTimeout time.Duration) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = connectTimeout
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := client.Database("admin").RunCommand(pingCtx, bson.D{{Key: "ping", Value: 1}}).Err()
		if err != nil {
			log.Printf("MongoDB ping failed, retrying: %v", err)
		}
		return err
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("Successfully connected to MongoDB!")

	return NewMongoDBFromDatabase(client.Database(dbName)), nil
}

// NewMongoDBFromDatabase wires the collections of an already connected database.
func NewMongoDBFromDatabase(db *mongo.Database) *MongoDB {
	return &MongoDB{
		Client:         db.Client(),
		Database:       db,
		Stories:        db.Collection(StoriesCollection),
		Users:          db.Collection(UsersCollection),
		Comments:       db.Collection(CommentsCollection),
		Ratings:        db.Collection(RatingsCollection),
		Progress:       db.Collection(ProgressCollection),
		Reports:        db.Collection(ReportsCollection),
		AdminActions:   db.Collection(AdminActionsCollection),
		Notifications:  db.Collection(NotificationsCollection),
		Credentials:    db.Collection(CredentialsCollection),
		PasswordResets: db.Collection(PasswordResetsCollection),
	}
}

func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("Closing MongoDB connection...")
	return m.Client.Disconnect(ctx)
}

// Ping checks the deployment is reachable.
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// EnsureIndexes creates the indexes every listing query relies on.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	specs := map[*mongo.Collection][]mongo.IndexModel{
		m.Stories: {
			{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "updatedAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "deleted", Value: 1}, {Key: "deletedAt", Value: 1}}},
		},
		m.Comments: {
			{Keys: bson.D{{Key: "storyId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		m.Ratings: {
			{
				Keys:    bson.D{{Key: "storyId", Value: 1}, {Key: "userId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		m.Progress: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastReadDate", Value: -1}}},
		},
		m.Reports: {
			{Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		m.AdminActions: {
			{Keys: bson.D{{Key: "storyId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		m.Notifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		m.Credentials: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		m.PasswordResets: {
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "expiresAt", Value: -1}}},
		},
	}

	for coll, indexes := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}
