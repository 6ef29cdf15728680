// Command worker consumes the moderation queue and serves /metrics and /health.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"guestbook/internal/bootstrap"
	"guestbook/internal/config"
	"guestbook/internal/middleware"
	"guestbook/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	middleware.SetLogger(middleware.NewLogger(cfg.Env))
	slog.SetDefault(middleware.Logger)
	logger := middleware.Logger.With(slog.String("service", "guestbook-worker"))

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:  "guestbook-worker",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	if cfg.QueueDriver == "memory" {
		logger.Warn("QUEUE_DRIVER is memory: this worker only sees messages enqueued in its own process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := bootstrap.BuildQueue(ctx, cfg, rdb, logger)
	if err != nil {
		log.Fatalf("Failed to build moderation queue: %v", err)
	}

	app := fiber.New(fiber.Config{AppName: "Guestbook Worker", DisableStartupMessage: true})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "up", "queue": cfg.QueueDriver, "time": time.Now()})
	})
	go func() {
		if err := app.Listen(":" + cfg.MetricsPort); err != nil {
			logger.Error("metrics listener stopped", "error", err)
		}
	}()

	logger.Info("worker starting",
		"queue", cfg.QueueDriver,
		"concurrency", cfg.WorkerConcurrency,
		"metrics_port", cfg.MetricsPort,
	)
	if err := bootstrap.BuildConsumer(cfg, db, rdb, q, logger).Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("metrics shutdown error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}
	logger.Info("worker stopped")
}
