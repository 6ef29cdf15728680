package middleware

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"guestbook/internal/cache"
	"guestbook/internal/models"
	"guestbook/internal/observability"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen lets the request through when Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed answers 503 when Redis is unavailable.
	FailClosed
)

var errNoRateLimitStore = errors.New("rate limit store is not configured")

// RateLimitResult is the outcome of one fixed-window check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true
	}
	return false
}

// CheckRateLimit counts one hit for id against resource in a fixed window.
// Rate limiting is disabled when APP_ENV is "test" or "development".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (RateLimitResult, error) {
	if rateLimitBypassed() {
		return RateLimitResult{Allowed: true, Remaining: limit, ResetIn: window}, nil
	}
	if rdb == nil {
		return RateLimitResult{}, errNoRateLimitStore
	}

	key := cache.RateLimitKey(resource, id)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	}); err != nil {
		observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
		return RateLimitResult{}, err
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		// First hit of the window, or a key that lost its expiry.
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
			return RateLimitResult{}, err
		}
		resetIn = window
	}

	count := int(incr.Val())
	return RateLimitResult{
		Allowed:   count <= limit,
		Remaining: max(limit-count, 0),
		ResetIn:   resetIn,
	}, nil
}

// RateLimit returns a Fiber middleware enforcing limit requests per window, keyed by remote IP.
// It fails open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		res, err := CheckRateLimit(ctx, rdb, resource, "ip:"+c.IP(), limit, window)
		if err != nil {
			Logger.WarnContext(ctx, "rate limit check failed",
				slog.String("resource", resource),
				slog.Bool("fail_closed", policy == FailClosed),
				slog.String("error", err.Error()),
			)
			if policy == FailClosed {
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					&models.AppError{Code: "RATE_LIMIT_UNAVAILABLE", Message: "rate limit unavailable"})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			observability.RateLimitedRequests.WithLabelValues(resource).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(res.ResetIn.Seconds()))))
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				&models.AppError{Code: "RATE_LIMITED", Message: "rate limit exceeded"})
		}
		return c.Next()
	}
}
