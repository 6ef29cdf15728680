package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"guestbook/internal/models"
	"guestbook/internal/observability"
)

const fetchErrorBackoff = time.Second

// Handler processes one message. A nil error acks the delivery.
type Handler interface {
	Process(ctx context.Context, msg models.ModerationMessage) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg models.ModerationMessage) error

// Process calls f.
func (f HandlerFunc) Process(ctx context.Context, msg models.ModerationMessage) error {
	return f(ctx, msg)
}

// Consumer feeds deliveries from a Queue to a fixed pool of workers.
type Consumer struct {
	source  Queue
	handler Handler
	workers int
	log     *slog.Logger
}

// NewConsumer returns a consumer running workers goroutines.
func NewConsumer(source Queue, handler Handler, workers int, logger *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		source:  source,
		handler: handler,
		workers: workers,
		log:     logger.With(slog.String("component", "consumer")),
	}
}

// Run consumes until ctx is canceled. Deliveries already handed to a worker are
// processed to completion; the rest stay in the queue.
func (c *Consumer) Run(ctx context.Context) error {
	jobs := make(chan Delivery)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				c.handle(context.WithoutCancel(ctx), d)
			}
		}()
	}

	c.log.InfoContext(ctx, "consumer started", slog.Int("workers", c.workers))
	c.loop(ctx, jobs)
	close(jobs)
	wg.Wait()
	c.log.InfoContext(context.WithoutCancel(ctx), "consumer stopped")
	return nil
}

func (c *Consumer) loop(ctx context.Context, jobs chan<- Delivery) {
	for ctx.Err() == nil {
		batch, err := c.source.Fetch(ctx, c.workers)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.ErrorContext(ctx, "fetch failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}

		for _, d := range batch {
			select {
			case jobs <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d Delivery) {
	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())
	logger := c.log.With(
		slog.String("entry_id", d.ID),
		slog.Uint64("comment_id", uint64(d.Message.CommentID)),
		slog.Int64("attempt", d.Attempt),
	)

	if err := c.handler.Process(ctx, d.Message); err != nil {
		logger.WarnContext(ctx, "moderation step failed", slog.String("error", err.Error()))
		if failErr := c.source.Fail(ctx, d, err); failErr != nil {
			logger.ErrorContext(ctx, "failed to record failed delivery", slog.String("error", failErr.Error()))
		}
		return
	}

	if err := c.source.Ack(ctx, d); err != nil {
		logger.ErrorContext(ctx, "ack failed", slog.String("error", err.Error()))
	}
}
