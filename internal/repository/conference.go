package repository

import (
	"context"

	"guestbook/internal/models"
	"guestbook/internal/observability"

	"gorm.io/gorm"
)

// ConferenceRepository defines read operations for conferences.
type ConferenceRepository interface {
	List(ctx context.Context) ([]models.Conference, error)
	GetBySlug(ctx context.Context, slug string) (*models.Conference, error)
}

type conferenceRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

// NewConferenceRepository creates a new ConferenceRepository
func NewConferenceRepository(db *gorm.DB) ConferenceRepository {
	return &conferenceRepository{db: db, metrics: observability.NewDatabaseMetrics()}
}

func (r *conferenceRepository) List(ctx context.Context) ([]models.Conference, error) {
	defer r.metrics.TrackQuery("list", "conferences")()

	var conferences []models.Conference
	err := r.db.WithContext(ctx).Order("year desc").Order("city asc").Find(&conferences).Error
	return conferences, err
}

func (r *conferenceRepository) GetBySlug(ctx context.Context, slug string) (*models.Conference, error) {
	defer r.metrics.TrackQuery("get_by_slug", "conferences")()

	var conference models.Conference
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&conference).Error; err != nil {
		return nil, err
	}
	return &conference, nil
}
