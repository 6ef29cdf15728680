package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"guestbook/internal/models"
	"guestbook/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
)

const (
	payloadField = "payload"
	driverRedis  = "redis"

	defaultClaimIdle     = 30 * time.Second
	defaultMaxDeliveries = 5
	defaultBlock         = 2 * time.Second
	defaultMaxLen        = 100000
)

// RedisStreamOptions configures a RedisStream.
type RedisStreamOptions struct {
	Stream   string
	Group    string
	Consumer string
	// ClaimIdle is how long a delivery may stay unacked before it is handed out again.
	ClaimIdle     time.Duration
	MaxDeliveries int64
	// Block bounds how long Fetch waits for new entries. Negative means no wait.
	Block  time.Duration
	Logger *slog.Logger
}

// RedisStream is a Queue on a Redis stream read through a consumer group.
// Entries that exhaust their attempts are copied to "<stream>:failed".
type RedisStream struct {
	rdb  *redis.Client
	opts RedisStreamOptions
	log  *slog.Logger
}

// NewRedisStream returns a queue on opts.Stream. Call Setup before consuming.
func NewRedisStream(rdb *redis.Client, opts RedisStreamOptions) *RedisStream {
	if opts.Consumer == "" {
		host, _ := os.Hostname()
		opts.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if opts.ClaimIdle <= 0 {
		opts.ClaimIdle = defaultClaimIdle
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = defaultMaxDeliveries
	}
	if opts.Block == 0 {
		opts.Block = defaultBlock
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStream{
		rdb:  rdb,
		opts: opts,
		log:  logger.With(slog.String("component", "redis_stream"), slog.String("stream", opts.Stream)),
	}
}

// FailedStream is the stream holding dead-lettered entries.
func (q *RedisStream) FailedStream() string {
	return q.opts.Stream + ":failed"
}

// Setup creates the stream and the consumer group when missing.
func (q *RedisStream) Setup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", q.opts.Group, q.opts.Stream, err)
	}
	return nil
}

// Enqueue appends msg to the stream.
func (q *RedisStream) Enqueue(ctx context.Context, msg models.ModerationMessage) error {
	ctx, span := observability.TraceRedisOperation(ctx, "XADD", q.opts.Stream)
	defer span.End()
	span.SetAttributes(observability.CommentID(msg.CommentID))

	payload, err := Encode(msg)
	if err != nil {
		span.RecordError(err)
		return err
	}
	err = q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}).Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("enqueue comment %d: %w", msg.CommentID, err)
	}
	return nil
}

// Fetch returns up to max deliveries. Entries left unacked for longer than ClaimIdle
// are reclaimed first; otherwise new entries are read, waiting up to Block.
func (q *RedisStream) Fetch(ctx context.Context, max int) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}

	claimed, err := q.claimStale(ctx, max)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		return claimed, nil
	}
	return q.readNew(ctx, max)
}

func (q *RedisStream) claimStale(ctx context.Context, max int) ([]Delivery, error) {
	msgs, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		MinIdle:  q.opts.ClaimIdle,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("claim stale entries: %w", err)
	}

	out := make([]Delivery, 0, len(msgs))
	for _, m := range msgs {
		attempt, err := q.deliveryCount(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if d, ok := q.toDelivery(ctx, m, attempt); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (q *RedisStream) readNew(ctx context.Context, max int) ([]Delivery, error) {
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    int64(max),
		Block:    q.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read group %s: %w", q.opts.Group, err)
	}

	var out []Delivery
	for _, s := range streams {
		for _, m := range s.Messages {
			if d, ok := q.toDelivery(ctx, m, 1); ok {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (q *RedisStream) deliveryCount(ctx context.Context, id string) (int64, error) {
	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.opts.Stream,
		Group:  q.opts.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("pending info for %s: %w", id, err)
	}
	if len(pending) == 0 {
		return 1, nil
	}
	return pending[0].RetryCount, nil
}

// toDelivery decodes an entry. Undecodable entries are dead-lettered on the spot.
func (q *RedisStream) toDelivery(ctx context.Context, m redis.XMessage, attempt int64) (Delivery, bool) {
	raw, _ := m.Values[payloadField].(string)
	msg, err := Decode([]byte(raw))
	if err != nil {
		q.log.ErrorContext(ctx, "dropping undecodable queue entry", slog.String("entry_id", m.ID), slog.String("error", err.Error()))
		if dlErr := q.deadLetter(ctx, m.ID, raw, attempt, err); dlErr != nil {
			q.log.ErrorContext(ctx, "failed to dead-letter entry", slog.String("entry_id", m.ID), slog.String("error", dlErr.Error()))
		}
		return Delivery{}, false
	}
	return Delivery{ID: m.ID, Message: msg, Attempt: attempt}, true
}

// Ack marks d as done and removes it from the stream.
func (q *RedisStream) Ack(ctx context.Context, d Delivery) error {
	pipe := q.rdb.TxPipeline()
	pipe.XAck(ctx, q.opts.Stream, q.opts.Group, d.ID)
	pipe.XDel(ctx, q.opts.Stream, d.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack %s: %w", d.ID, err)
	}
	observability.QueueDeliveries.WithLabelValues(driverRedis, "acked").Inc()
	return nil
}

// Fail records a failed attempt. The entry stays pending and is reclaimed after
// ClaimIdle, unless it has used all its attempts, in which case it is dead-lettered.
func (q *RedisStream) Fail(ctx context.Context, d Delivery, cause error) error {
	if d.Attempt < q.opts.MaxDeliveries {
		observability.QueueDeliveries.WithLabelValues(driverRedis, "retried").Inc()
		return nil
	}

	payload, err := Encode(d.Message)
	if err != nil {
		return err
	}
	if err := q.deadLetter(ctx, d.ID, string(payload), d.Attempt, cause); err != nil {
		return err
	}
	q.log.WarnContext(ctx, "moderation message dead-lettered",
		slog.String("entry_id", d.ID),
		slog.Uint64("comment_id", uint64(d.Message.CommentID)),
		slog.Int64("attempts", d.Attempt),
		slog.String("error", errString(cause)),
	)
	return nil
}

func (q *RedisStream) deadLetter(ctx context.Context, id, payload string, attempts int64, cause error) error {
	pipe := q.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.FailedStream(),
		Values: map[string]interface{}{
			payloadField:  payload,
			"original_id": id,
			"attempts":    attempts,
			"error":       errString(cause),
			"failed_at":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	pipe.XAck(ctx, q.opts.Stream, q.opts.Group, id)
	pipe.XDel(ctx, q.opts.Stream, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-letter %s: %w", id, err)
	}
	observability.QueueDeliveries.WithLabelValues(driverRedis, "dead_lettered").Inc()
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
