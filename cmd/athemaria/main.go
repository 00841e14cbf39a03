package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"athemaria/internal/app"
	"athemaria/internal/config"
	"athemaria/internal/engine"
	"athemaria/internal/handlers"
	"athemaria/internal/middleware"
	"athemaria/internal/utils"
	"athemaria/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("athemaria: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()

	metrics := utils.NewMetricsCollector()
	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	svc := app.NewServices(cfg, stores, tokens)
	hub := websocket.NewHub()

	// Initialize actor system and engine
	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, svc.Stories, hub, metrics)
	defer eng.Shutdown()
	svc.Notifications.SetNotifier(eng)

	server := handlers.NewServer(cfg, svc, tokens, eng, hub, stores.Blobs, metrics)
	server.Ping = stores.Ping

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		server.AuthLimiter.RunCleanup(gctx, 10*time.Minute)
		return nil
	})
	if cfg.Purge.ScheduleEnabled {
		g.Go(func() error {
			return eng.RunPurgeSchedule(gctx, cfg.Purge.Interval)
		})
	}
	g.Go(func() error {
		log.Printf("Starting server on %s (store: %s)", httpServer.Addr, cfg.Database.Type)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
