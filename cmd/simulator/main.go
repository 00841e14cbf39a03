package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"athemaria/simulator"
)

func main() {
	config := simulator.DefaultConfig()
	flag.StringVar(&config.ServerURL, "url", config.ServerURL, "base URL of the server")
	flag.IntVar(&config.NumWriters, "writers", config.NumWriters, "number of writers")
	flag.IntVar(&config.NumReaders, "readers", config.NumReaders, "number of readers")
	flag.IntVar(&config.StoriesPerWriter, "stories", config.StoriesPerWriter, "stories published per writer")
	flag.DurationVar(&config.SimulationTime, "duration", config.SimulationTime, "how long readers stay active")
	flag.IntVar(&config.MaxRPS, "rps", config.MaxRPS, "request rate cap, 0 for none")
	flag.Float64Var(&config.ZipfS, "zipf", config.ZipfS, "Zipf exponent for story popularity (> 1)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting simulation with configuration:")
	log.Printf("- Server URL: %s", config.ServerURL)
	log.Printf("- Writers: %d, readers: %d", config.NumWriters, config.NumReaders)
	log.Printf("- Stories per writer: %d, chapters per story: %d", config.StoriesPerWriter, config.ChaptersPerStory)
	log.Printf("- Simulation time: %v", config.SimulationTime)
	log.Printf("- Zipf parameter: %.2f", config.ZipfS)

	sim := simulator.NewSimulator(config)
	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	metrics := sim.GetMetrics()
	log.Printf("Simulation completed in %v. Final metrics:", metrics.Elapsed)
	log.Printf("- Users: %d, stories: %d", metrics.Users, metrics.Stories)
	log.Printf("- Requests: %d (%d failed), average latency %v", metrics.TotalRequests, metrics.FailedRequests, metrics.AverageLatency)
	log.Printf("- Reads: %d, comments: %d, ratings: %d, favorites: %d", metrics.Reads, metrics.Comments, metrics.Ratings, metrics.Favorites)
}
