// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"guestbook/internal/models"
	"guestbook/internal/repository"
	"guestbook/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	// NumComments is the number of generated comments per conference.
	NumComments int
	ShouldClean bool
	// RandSeed makes the generated content reproducible; 0 picks a random seed.
	RandSeed int64
	SiteURL  string
}

// Seeder creates demo conferences and comments. Every created comment starts
// in the submitted state and is handed to the moderation queue.
type Seeder struct {
	db       *gorm.DB
	comments repository.CommentRepository
	queue    service.Enqueuer
	log      *slog.Logger
}

// NewSeeder binds a Seeder to db and queue.
func NewSeeder(db *gorm.DB, queue service.Enqueuer, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		db:       db,
		comments: repository.NewCommentRepository(db),
		queue:    queue,
		log:      logger,
	}
}

// ClearAll removes every comment. Conferences are kept because they are upserted.
func (s *Seeder) ClearAll() error {
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("clear comments: %w", err)
	}
	s.log.Info("existing comments cleared")
	return nil
}

// Seed populates the database and returns the created comments.
func (s *Seeder) Seed(ctx context.Context, opts Options) ([]*models.Comment, error) {
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return nil, err
		}
	}

	conferences, err := Conferences(s.db)
	if err != nil {
		return nil, err
	}
	s.log.Info("conferences available", "count", len(conferences))

	faker := gofakeit.New(opts.RandSeed)
	created := make([]*models.Comment, 0, len(conferences)*opts.NumComments)
	for _, conference := range conferences {
		for i := 0; i < opts.NumComments; i++ {
			comment := &models.Comment{
				ConferenceID: conference.ID,
				Author:       faker.Name(),
				Email:        strings.ToLower(faker.Email()),
				Text:         faker.Paragraph(1, faker.Number(1, 4), faker.Number(6, 16), " "),
				State:        models.CommentStateSubmitted,
			}
			if err := s.comments.Create(ctx, comment); err != nil {
				return created, fmt.Errorf("create comment for %s: %w", conference.Slug, err)
			}
			created = append(created, comment)

			msg := models.NewModerationMessage(comment.ID, map[string]string{
				models.ContextUserIP:    faker.IPv4Address(),
				models.ContextUserAgent: faker.UserAgent(),
				models.ContextReferrer:  "",
				models.ContextPermalink: strings.TrimRight(opts.SiteURL, "/") + "/conference/" + conference.Slug,
			})
			if err := s.queue.Enqueue(ctx, msg); err != nil {
				return created, fmt.Errorf("enqueue comment %d: %w", comment.ID, err)
			}
		}
	}

	s.log.Info("seeding completed", "comments", len(created))
	return created, nil
}
