// Package queue carries moderation messages between the API and the workers with
// at-least-once delivery.
package queue

import (
	"context"
	"errors"
	"fmt"

	"guestbook/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrQueueFull is returned by bounded queues that cannot accept more messages.
var ErrQueueFull = errors.New("queue is full")

// Delivery is one attempt at handing a message to a worker.
type Delivery struct {
	ID      string
	Message models.ModerationMessage
	// Attempt starts at 1 and grows each time the message is handed out again.
	Attempt int64
}

// Queue is a durable work queue. A fetched delivery stays owned by the caller until
// it is acked or failed; a failed delivery is handed out again until it runs out of
// attempts and is set aside.
type Queue interface {
	Enqueue(ctx context.Context, msg models.ModerationMessage) error
	Fetch(ctx context.Context, max int) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Fail(ctx context.Context, d Delivery, cause error) error
}

// Encode serializes a message for the wire.
func Encode(msg models.ModerationMessage) ([]byte, error) {
	b, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("encode moderation message: %w", err)
	}
	return b, nil
}

// Decode parses a message produced by Encode.
func Decode(b []byte) (models.ModerationMessage, error) {
	var msg models.ModerationMessage
	if err := msgpack.Unmarshal(b, &msg); err != nil {
		return models.ModerationMessage{}, fmt.Errorf("decode moderation message: %w", err)
	}
	if msg.CommentID == 0 {
		return models.ModerationMessage{}, errors.New("decode moderation message: missing comment id")
	}
	return msg, nil
}
