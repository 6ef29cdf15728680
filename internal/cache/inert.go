package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// InertTracker counts, per comment, how many deliveries found nothing to do.
type InertTracker struct {
	rdb *redis.Client
}

// NewInertTracker returns a tracker backed by rdb.
func NewInertTracker(rdb *redis.Client) *InertTracker {
	return &InertTracker{rdb: rdb}
}

// Track records one inert delivery and returns the count inside the current window.
func (t *InertTracker) Track(ctx context.Context, commentID uint) (int64, error) {
	key := InertKey(commentID)

	pipe := t.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, InertTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
