// Command purge permanently removes stories whose soft-delete retention has
// elapsed. It is meant to be run from cron against the production store.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"athemaria/internal/app"
	"athemaria/internal/config"
	"athemaria/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("purge: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		log.Printf("purge: %v", err)
		return 1
	}
	defer stores.Close(context.Background())

	stories := services.NewStoryService(stores.DB, stores.Blobs, app.StoryConfig(cfg))
	start := time.Now()
	purged, err := stories.PurgeDeletedStories(ctx, start)
	if err != nil {
		log.Printf("purge: %v (removed %d before failing)", err, len(purged))
		return 1
	}

	log.Printf("purge: removed %d stories older than %s in %s", len(purged), cfg.Purge.Retention, time.Since(start))
	for _, id := range purged {
		log.Printf("purge: removed story %s", id)
	}
	return 0
}
