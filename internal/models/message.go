package models

// Context keys carried by a ModerationMessage. They describe the submitting request
// and are only used for spam scoring.
const (
	ContextUserIP    = "user_ip"
	ContextUserAgent = "user_agent"
	ContextReferrer  = "referrer"
	ContextPermalink = "permalink"
)

// ModerationMessage asks the worker to advance one comment through the pipeline.
// It is forwarded unchanged when re-enqueued.
type ModerationMessage struct {
	CommentID uint              `msgpack:"comment_id" json:"comment_id"`
	Context   map[string]string `msgpack:"context" json:"context,omitempty"`
}

// NewModerationMessage builds a message with its own copy of ctx.
func NewModerationMessage(commentID uint, ctx map[string]string) ModerationMessage {
	copied := make(map[string]string, len(ctx))
	for k, v := range ctx {
		copied[k] = v
	}
	return ModerationMessage{CommentID: commentID, Context: copied}
}

// SpamScore is the verdict of the spam checker.
type SpamScore int

const (
	// SpamScoreHam means the comment looks clean.
	SpamScoreHam SpamScore = 0
	// SpamScoreMaybe means the comment might be spam.
	SpamScoreMaybe SpamScore = 1
	// SpamScoreBlatant means the comment is blatant spam.
	SpamScoreBlatant SpamScore = 2
)
