// Command server runs the guestbook HTTP API.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guestbook/internal/bootstrap"
	"guestbook/internal/config"
	"guestbook/internal/middleware"
	"guestbook/internal/observability"
	"guestbook/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	middleware.SetLogger(middleware.NewLogger(cfg.Env))
	slog.SetDefault(middleware.Logger)

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:  "guestbook-api",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedBuiltIns: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := bootstrap.BuildQueue(ctx, cfg, rdb, middleware.Logger)
	if err != nil {
		log.Fatalf("Failed to build moderation queue: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, rdb, q)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// The in-memory queue only lives in this process, so it is consumed here.
	consumerDone := make(chan struct{})
	if cfg.QueueDriver == "memory" {
		consumer := bootstrap.BuildConsumer(cfg, db, rdb, q, middleware.Logger)
		go func() {
			defer close(consumerDone)
			_ = consumer.Run(ctx)
		}()
	} else {
		close(consumerDone)
	}

	go func() {
		<-ctx.Done()
		middleware.Logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			middleware.Logger.Error("Server shutdown error", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			middleware.Logger.Error("Tracing shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		middleware.Logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
	<-consumerDone
}
