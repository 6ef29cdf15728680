// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"fmt"
	"time"

	"guestbook/internal/models"
	"guestbook/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListPublishedByConference(ctx context.Context, conferenceID uint, limit, offset int) ([]*models.Comment, error)
	ListByState(ctx context.Context, state models.CommentState, limit int) ([]*models.Comment, error)
	SaveState(ctx context.Context, comment *models.Comment) error
}

type commentRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
	log     *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{
		db:      db,
		metrics: observability.NewDatabaseMetrics(),
		log:     observability.NewRepoLogger("comments"),
	}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer r.metrics.TrackQuery("create", "comments")()

	if comment.State == "" {
		comment.State = models.CommentStateSubmitted
	}
	if !comment.State.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidState, comment.State)
	}
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{"comment_id": comment.ID, "conference_id": comment.ConferenceID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer r.metrics.TrackQuery("get", "comments")()

	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Conference").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListPublishedByConference(ctx context.Context, conferenceID uint, limit, offset int) ([]*models.Comment, error) {
	defer r.metrics.TrackQuery("list_published", "comments")()

	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("conference_id = ? AND state IN ?", conferenceID, []models.CommentState{
			models.CommentStatePublished,
			models.CommentStatePublishedHam,
		}).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListByState(ctx context.Context, state models.CommentState, limit int) ([]*models.Comment, error) {
	defer r.metrics.TrackQuery("list_by_state", "comments")()

	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("created_at asc").
		Order("id asc").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// SaveState persists the moderation fields of comment if nobody else changed them since
// comment was loaded. On success the in-memory version is advanced to match the row.
func (r *commentRepository) SaveState(ctx context.Context, comment *models.Comment) error {
	defer r.metrics.TrackQuery("save_state", "comments")()

	if !comment.State.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidState, comment.State)
	}

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ? AND version = ?", comment.ID, comment.Version).
		Updates(map[string]interface{}{
			"state":      comment.State,
			"optimized":  comment.Optimized,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "save_state")
		return fmt.Errorf("save comment %d state: %w", comment.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: comment %d at version %d", models.ErrPersistenceConflict, comment.ID, comment.Version)
	}

	comment.Version++
	comment.UpdatedAt = now
	r.log.LogUpdate(ctx, map[string]interface{}{
		"comment_id": comment.ID,
		"state":      string(comment.State),
		"optimized":  comment.Optimized,
		"version":    comment.Version,
	})
	return nil
}
