// Package bootstrap wires the runtime dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"guestbook/internal/cache"
	"guestbook/internal/config"
	"guestbook/internal/database"
	"guestbook/internal/notifications"
	"guestbook/internal/queue"
	"guestbook/internal/repository"
	"guestbook/internal/seed"
	"guestbook/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const memoryQueueCapacity = 1024

// Options control runtime initialization behavior.
type Options struct {
	SeedBuiltIns bool
}

// InitRuntime connects to DB and Redis and optionally runs built-in seeding.
// Redis is mandatory only when the queue lives there.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	r := cache.InitRedis(cfg.RedisURL)
	if r == nil && cfg.QueueDriver == "redis" {
		return nil, nil, errors.New("redis is required when QUEUE_DRIVER is redis")
	}

	if opts.SeedBuiltIns {
		if _, err := seed.Conferences(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in conferences: %w", err)
		}
	}

	return db, r, nil
}

// BuildQueue returns the moderation queue selected by QUEUE_DRIVER. A Redis
// stream queue has its consumer group created before it is returned.
func BuildQueue(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueDriver {
	case "memory":
		return queue.NewMemory(memoryQueueCapacity, int64(cfg.QueueMaxDeliveries)), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis queue requires a redis client")
		}
		q := queue.NewRedisStream(rdb, queue.RedisStreamOptions{
			Stream:        cfg.QueueStream,
			Group:         cfg.QueueGroup,
			Consumer:      cfg.QueueConsumer,
			ClaimIdle:     cfg.QueueClaimIdle(),
			MaxDeliveries: int64(cfg.QueueMaxDeliveries),
			Logger:        logger,
		})
		if err := q.Setup(ctx); err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER %q", cfg.QueueDriver)
	}
}

// BuildNotifier publishes review events on Redis when available and logs them otherwise.
func BuildNotifier(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) service.ReviewNotifier {
	if rdb == nil || cfg.QueueDriver == "memory" {
		return notifications.NewLogNotifier(logger, cfg.AdminEmail)
	}
	return notifications.NewNotifier(rdb, cfg.NotifyChannel, cfg.AdminEmail)
}

// BuildWorker assembles the moderation worker. Follow-up messages go to q.
func BuildWorker(cfg *config.Config, db *gorm.DB, rdb *redis.Client, q service.Enqueuer, logger *slog.Logger) *service.ModerationWorker {
	images := service.NewImageService(cfg)

	opts := service.ModerationWorkerOptions{
		PhotoDir:            images.PhotoDir(),
		Logger:              logger,
		InertAlertThreshold: cfg.InertAlertThreshold,
	}
	if rdb != nil {
		opts.InertCounter = cache.NewInertTracker(rdb)
	}

	return service.NewModerationWorker(
		repository.NewCommentRepository(db),
		service.NewSpamChecker(cfg),
		images,
		BuildNotifier(cfg, rdb, logger),
		q,
		opts,
	)
}

// BuildConsumer returns a consumer feeding q to a freshly built worker.
func BuildConsumer(cfg *config.Config, db *gorm.DB, rdb *redis.Client, q queue.Queue, logger *slog.Logger) *queue.Consumer {
	worker := BuildWorker(cfg, db, rdb, q, logger)
	return queue.NewConsumer(q, worker, cfg.WorkerConcurrency, logger)
}
