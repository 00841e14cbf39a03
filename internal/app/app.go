// Package app opens the configured stores and wires the services shared by
// the server and the maintenance commands.
package app

import (
	"context"
	"fmt"
	"log"

	"athemaria/internal/auth"
	"athemaria/internal/config"
	"athemaria/internal/database"
	"athemaria/internal/handlers"
	"athemaria/internal/middleware"
	"athemaria/internal/services"
	"athemaria/internal/storage"
)

// Stores is the persistence backend selected by DB_TYPE.
type Stores struct {
	DB    database.DBAdapter
	Blobs storage.BlobStore
	// Ping is nil for the in-memory backend.
	Ping func(ctx context.Context) error
}

// OpenStores connects to MongoDB (documents plus the GridFS blob bucket) or
// builds the in-memory pair.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Database.Type {
	case config.DBTypeMemory:
		log.Println("Using in-memory store; data is lost on exit")
		return &Stores{DB: database.NewMemoryDB(), Blobs: storage.NewMemoryStore()}, nil

	case config.DBTypeMongo:
		db, err := database.NewMongoDB(ctx, cfg.Database.URI, cfg.Database.Name, cfg.Database.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		blobs, err := storage.NewGridFSStore(db.Database)
		if err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to open blob bucket: %w", err)
		}
		return &Stores{DB: db, Blobs: blobs, Ping: db.Ping}, nil
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
}

func (s *Stores) Close(ctx context.Context) error {
	return s.DB.Close(ctx)
}

// StoryConfig maps the loaded configuration onto the story service settings.
func StoryConfig(cfg *config.Config) services.StoryConfig {
	return services.StoryConfig{
		PublicBaseURL:    cfg.Server.PublicBaseURL,
		PlaceholderCover: cfg.PlaceholderCover,
		Retention:        cfg.Purge.Retention,
	}
}

// NewServices builds the service layer over the opened stores. Realtime
// delivery is attached later through Notifications.SetNotifier.
func NewServices(cfg *config.Config, stores *Stores, tokens *middleware.TokenManager) handlers.Services {
	stories := services.NewStoryService(stores.DB, stores.Blobs, StoryConfig(cfg))
	profiles := services.NewProfileService(stores.DB, stores.Blobs, cfg.Server.PublicBaseURL)
	notifications := services.NewNotificationService(stores.DB)

	return handlers.Services{
		Stories:       stories,
		Profiles:      profiles,
		Comments:      services.NewCommentService(stores.DB, notifications),
		Ratings:       services.NewRatingService(stores.DB),
		Progress:      services.NewProgressService(stores.DB),
		Moderation:    services.NewModerationService(stores.DB, stories, notifications),
		Notifications: notifications,
		Auth:          auth.NewService(stores.DB, profiles, tokens, cfg.Auth.ResetCodeTTL),
	}
}
