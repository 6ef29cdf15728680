package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"guestbook/internal/cache"
	"guestbook/internal/models"
	"guestbook/internal/repository"
	"guestbook/internal/workflow"

	"gorm.io/gorm"
)

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 500
)

// ModerationService applies human review decisions and exposes the admin view of comments.
type ModerationService struct {
	comments repository.CommentRepository
	queue    Enqueuer
}

// NewModerationService returns a new ModerationService.
func NewModerationService(comments repository.CommentRepository, queue Enqueuer) *ModerationService {
	return &ModerationService{comments: comments, queue: queue}
}

// Get returns any comment regardless of its state.
func (s *ModerationService) Get(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Comment", id)
	}
	return comment, err
}

// Decide publishes or rejects a comment waiting for review, then schedules the
// follow-up pipeline step.
func (s *ModerationService) Decide(ctx context.Context, id uint, approved bool) (*models.Comment, error) {
	comment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	transition, err := workflow.TransitionForDecision(comment.State, approved)
	if err != nil {
		return nil, models.NewConflictError(fmt.Sprintf("Comment %d is not awaiting review (state %s)", id, comment.State), err)
	}
	if err := workflow.Apply(comment, transition); err != nil {
		return nil, models.NewConflictError("Review decision not allowed", err)
	}
	if err := s.comments.SaveState(ctx, comment); err != nil {
		if errors.Is(err, models.ErrPersistenceConflict) {
			return nil, models.NewConflictError("Comment was modified concurrently, retry", err)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "review decision applied",
		"comment_id", id,
		"approved", approved,
		"transition", string(transition),
		"state", string(comment.State),
	)

	if comment.State.Published() {
		cache.InvalidateConferenceComments(ctx, comment.ConferenceID)
	}

	if err := s.queue.Enqueue(ctx, models.NewModerationMessage(comment.ID, nil)); err != nil {
		return comment, fmt.Errorf("enqueue follow-up for comment %d: %w", comment.ID, err)
	}
	return comment, nil
}

// Requeue schedules another pipeline pass for a comment, for example after its
// message was dead-lettered.
func (s *ModerationService) Requeue(ctx context.Context, id uint, reqCtx map[string]string) (*models.Comment, error) {
	comment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.HasNextStep(comment) {
		return nil, models.NewConflictError(fmt.Sprintf("Comment %d has no pending pipeline step (state %s)", id, comment.State), nil)
	}
	if err := s.queue.Enqueue(ctx, models.NewModerationMessage(comment.ID, reqCtx)); err != nil {
		return nil, fmt.Errorf("requeue comment %d: %w", comment.ID, err)
	}
	return comment, nil
}

// ListByState returns comments in state, oldest first.
func (s *ModerationService) ListByState(ctx context.Context, state models.CommentState, limit int) ([]*models.Comment, error) {
	if !state.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("Unknown state %q", state))
	}
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	return s.comments.ListByState(ctx, state, limit)
}
