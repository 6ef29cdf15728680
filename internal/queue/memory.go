package queue

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"guestbook/internal/models"
	"guestbook/internal/observability"
)

const (
	driverMemory = "memory"

	defaultMemoryCapacity   = 1024
	defaultMemoryBlock      = time.Second
	defaultMemoryRetryDelay = 500 * time.Millisecond
	maxMemoryRetryDelay     = 30 * time.Second
)

// FailedDelivery is a delivery that ran out of attempts.
type FailedDelivery struct {
	Delivery Delivery
	Error    string
	FailedAt time.Time
}

// Memory is an in-process Queue for development and tests. Its contents do not
// survive a restart.
type Memory struct {
	ch            chan Delivery
	maxDeliveries int64
	block         time.Duration
	retryDelay    time.Duration
	seq           atomic.Uint64
	scheduled     atomic.Int64

	mu     sync.Mutex
	failed []FailedDelivery
}

// NewMemory returns a queue holding at most capacity pending deliveries.
func NewMemory(capacity int, maxDeliveries int64) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	if maxDeliveries <= 0 {
		maxDeliveries = defaultMaxDeliveries
	}
	return &Memory{
		ch:            make(chan Delivery, capacity),
		maxDeliveries: maxDeliveries,
		block:         defaultMemoryBlock,
		retryDelay:    defaultMemoryRetryDelay,
	}
}

// Enqueue adds msg or returns ErrQueueFull.
func (q *Memory) Enqueue(_ context.Context, msg models.ModerationMessage) error {
	d := Delivery{
		ID:      strconv.FormatUint(q.seq.Add(1), 10),
		Message: models.NewModerationMessage(msg.CommentID, msg.Context),
		Attempt: 1,
	}
	return q.push(d)
}

func (q *Memory) push(d Delivery) error {
	select {
	case q.ch <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

// Fetch waits for the first delivery, then returns it together with whatever else
// is ready, up to max. It returns nothing once the wait times out.
func (q *Memory) Fetch(ctx context.Context, max int) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}

	timer := time.NewTimer(q.block)
	defer timer.Stop()

	var out []Delivery
	select {
	case d := <-q.ch:
		out = append(out, d)
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(out) < max {
		select {
		case d := <-q.ch:
			out = append(out, d)
		default:
			return out, nil
		}
	}
	return out, nil
}

// Ack drops a processed delivery.
func (q *Memory) Ack(_ context.Context, _ Delivery) error {
	observability.QueueDeliveries.WithLabelValues(driverMemory, "acked").Inc()
	return nil
}

// Fail puts d back with one more attempt after a backoff, or sets it aside once it
// has none left. A retry that finds the queue full is set aside as well.
func (q *Memory) Fail(_ context.Context, d Delivery, cause error) error {
	if d.Attempt >= q.maxDeliveries {
		q.deadLetter(d, errString(cause))
		return nil
	}

	observability.QueueDeliveries.WithLabelValues(driverMemory, "retried").Inc()
	q.scheduled.Add(1)
	time.AfterFunc(q.backoff(d.Attempt), func() {
		q.scheduled.Add(-1)
		d.Attempt++
		if err := q.push(d); err != nil {
			q.deadLetter(d, errString(err)+": "+errString(cause))
		}
	})
	return nil
}

// backoff doubles the retry delay with every failed attempt.
func (q *Memory) backoff(attempt int64) time.Duration {
	delay := q.retryDelay
	for i := int64(1); i < attempt && delay < maxMemoryRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxMemoryRetryDelay)
}

func (q *Memory) deadLetter(d Delivery, reason string) {
	q.mu.Lock()
	q.failed = append(q.failed, FailedDelivery{Delivery: d, Error: reason, FailedAt: time.Now().UTC()})
	q.mu.Unlock()
	observability.QueueDeliveries.WithLabelValues(driverMemory, "dead_lettered").Inc()
}

// Failed returns the dead-lettered deliveries.
func (q *Memory) Failed() []FailedDelivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]FailedDelivery(nil), q.failed...)
}

// Len returns the number of pending deliveries, including retries still waiting out their backoff.
func (q *Memory) Len() int {
	return len(q.ch) + int(q.scheduled.Load())
}
