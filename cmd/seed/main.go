// Command seed populates the database with conferences and demo comments.
package main

import (
	"context"
	"flag"
	"log"

	"guestbook/internal/bootstrap"
	"guestbook/internal/config"
	"guestbook/internal/middleware"
	"guestbook/internal/seed"
)

func main() {
	numComments := flag.Int("comments", 5, "Number of comments to create per conference")
	shouldClean := flag.Bool("clean", false, "Delete existing comments before seeding")
	randSeed := flag.Int64("rand-seed", 0, "Seed for generated content (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.SetLogger(middleware.NewLogger(cfg.Env))

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	ctx := context.Background()
	q, err := bootstrap.BuildQueue(ctx, cfg, rdb, middleware.Logger)
	if err != nil {
		log.Fatalf("Failed to build moderation queue: %v", err)
	}
	if cfg.QueueDriver == "memory" {
		middleware.Logger.Warn("QUEUE_DRIVER is memory: seeded comments stay submitted until requeued")
	}

	s := seed.NewSeeder(db, q, middleware.Logger)
	created, err := s.Seed(ctx, seed.Options{
		NumComments: *numComments,
		ShouldClean: *shouldClean,
		RandSeed:    *randSeed,
		SiteURL:     cfg.SiteURL,
	})
	if err != nil {
		log.Fatalf("Seeding failed after %d comments: %v", len(created), err)
	}
	log.Printf("Seeded %d comments; each one is queued for moderation", len(created))
}
