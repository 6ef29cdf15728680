package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ConferenceKeyPrefix     = "conference:%s"
	ConferenceListKey       = "conferences:all"
	InertKeyPrefix          = "moderation:inert:%d"
	RateLimitKeyPrefix      = "rl:%s:%s"
	PublishedCommentsPrefix = "conference:%d:comments:%d:%d"
)

const (
	ConferenceTTL        = 10 * time.Minute
	InertTTL             = time.Hour
	PublishedCommentsTTL = 30 * time.Second
)

func ConferenceKey(slug string) string {
	return fmt.Sprintf(ConferenceKeyPrefix, slug)
}

func InertKey(commentID uint) string {
	return fmt.Sprintf(InertKeyPrefix, commentID)
}

func RateLimitKey(resource, id string) string {
	return fmt.Sprintf(RateLimitKeyPrefix, resource, id)
}

func PublishedCommentsKey(conferenceID uint, limit, offset int) string {
	return fmt.Sprintf(PublishedCommentsPrefix, conferenceID, limit, offset)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateConferenceComments drops every cached page of published comments for a conference.
func InvalidateConferenceComments(ctx context.Context, conferenceID uint) {
	if client == nil {
		return
	}
	pattern := fmt.Sprintf("conference:%d:comments:*", conferenceID)
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}
