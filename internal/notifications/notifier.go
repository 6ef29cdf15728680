// Package notifications tells reviewers that comments are waiting for a decision.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"guestbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventCommentReview is the type of a review request.
const EventCommentReview = "comment_review"

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "moderation:review"

// ReviewEvent is the payload published for a comment awaiting review.
type ReviewEvent struct {
	Type         string              `json:"type"`
	CommentID    uint                `json:"comment_id"`
	ConferenceID uint                `json:"conference_id"`
	Author       string              `json:"author"`
	State        models.CommentState `json:"state"`
	Recipient    string              `json:"recipient"`
	ReviewPath   string              `json:"review_path"`
}

// NewReviewEvent describes comment for recipient.
func NewReviewEvent(comment *models.Comment, recipient string) ReviewEvent {
	return ReviewEvent{
		Type:         EventCommentReview,
		CommentID:    comment.ID,
		ConferenceID: comment.ConferenceID,
		Author:       comment.Author,
		State:        comment.State,
		Recipient:    recipient,
		ReviewPath:   ReviewPath(comment.ID),
	}
}

// ReviewPath is the admin endpoint that records a decision for a comment.
func ReviewPath(commentID uint) string {
	return fmt.Sprintf("/admin/comments/%d/review", commentID)
}

// Notifier publishes review requests into a Redis channel.
type Notifier struct {
	rdb       *redis.Client
	channel   string
	recipient string
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client, channel, recipient string) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{rdb: rdb, channel: channel, recipient: recipient}
}

// NotifyReview publishes a review request for comment.
func (n *Notifier) NotifyReview(ctx context.Context, comment *models.Comment) error {
	if n.rdb == nil {
		return fmt.Errorf("notify review of comment %d: redis client not configured", comment.ID)
	}
	payload, err := json.Marshal(NewReviewEvent(comment, n.recipient))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, n.channel, string(payload)).Err()
}

// SubscribeReviews calls onEvent for each review request until ctx is canceled.
// It returns once the subscription is active.
func (n *Notifier) SubscribeReviews(ctx context.Context, onEvent func(ReviewEvent)) error {
	if n.rdb == nil {
		return fmt.Errorf("subscribe %s: redis client not configured", n.channel)
	}
	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event ReviewEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.WarnContext(ctx, "ignoring malformed review event", "channel", msg.Channel, "err", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.ErrorContext(ctx, "PANIC in review subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onEvent(event)
				}()
			}
		}
	}()

	return nil
}

// LogNotifier writes review requests to the log. It serves setups without Redis.
type LogNotifier struct {
	logger    *slog.Logger
	recipient string
}

// NewLogNotifier returns a notifier that logs through logger.
func NewLogNotifier(logger *slog.Logger, recipient string) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, recipient: recipient}
}

// NotifyReview logs a review request for comment.
func (n *LogNotifier) NotifyReview(ctx context.Context, comment *models.Comment) error {
	event := NewReviewEvent(comment, n.recipient)
	n.logger.InfoContext(ctx, "comment awaiting review",
		slog.Uint64("comment_id", uint64(event.CommentID)),
		slog.Uint64("conference_id", uint64(event.ConferenceID)),
		slog.String("author", event.Author),
		slog.String("state", string(event.State)),
		slog.String("recipient", event.Recipient),
		slog.String("review_path", event.ReviewPath),
	)
	return nil
}
