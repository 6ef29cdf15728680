package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"guestbook/internal/cache"
	"guestbook/internal/models"
	"guestbook/internal/repository"
	"guestbook/internal/validation"

	"gorm.io/gorm"
)

const maxCommentLen = 10000

// PhotoStore keeps the photos attached to submitted comments.
type PhotoStore interface {
	StorePhoto(ctx context.Context, in UploadPhotoInput) (string, error)
	RemovePhoto(ctx context.Context, filename string) error
}

// CommentService handles comment submission and the public read side.
type CommentService struct {
	comments    repository.CommentRepository
	conferences repository.ConferenceRepository
	photos      PhotoStore
	queue       Enqueuer
}

// SubmitCommentInput is a comment as received from a visitor.
type SubmitCommentInput struct {
	ConferenceSlug string
	Author         string
	Text           string
	Email          string
	Photo          *UploadPhotoInput
	Context        map[string]string
}

func NewCommentService(
	comments repository.CommentRepository,
	conferences repository.ConferenceRepository,
	photos PhotoStore,
	queue Enqueuer,
) *CommentService {
	return &CommentService{
		comments:    comments,
		conferences: conferences,
		photos:      photos,
		queue:       queue,
	}
}

// Submit stores a new comment in the submitted state and schedules its moderation.
func (s *CommentService) Submit(ctx context.Context, in SubmitCommentInput) (*models.Comment, error) {
	author := strings.TrimSpace(in.Author)
	text := strings.TrimSpace(in.Text)
	email := strings.TrimSpace(in.Email)

	if author == "" {
		return nil, models.NewValidationError("Author is required")
	}
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}
	if email == "" {
		return nil, models.NewValidationError("Email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, models.NewValidationError("Invalid email address")
	}

	conference, err := s.GetConference(ctx, in.ConferenceSlug)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ConferenceID: conference.ID,
		Author:       author,
		Text:         text,
		Email:        email,
		State:        models.CommentStateSubmitted,
	}

	if in.Photo != nil {
		filename, err := s.photos.StorePhoto(ctx, *in.Photo)
		if err != nil {
			return nil, err
		}
		comment.PhotoFilename = filename
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		if comment.PhotoFilename != "" {
			if rmErr := s.photos.RemovePhoto(ctx, comment.PhotoFilename); rmErr != nil {
				slog.WarnContext(ctx, "failed to remove orphaned photo", "photo", comment.PhotoFilename, "err", rmErr)
			}
		}
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, models.NewModerationMessage(comment.ID, in.Context)); err != nil {
		return nil, fmt.Errorf("enqueue moderation of comment %d: %w", comment.ID, err)
	}

	comment.Conference = conference
	return comment, nil
}

// ListConferences returns every conference, newest first.
func (s *CommentService) ListConferences(ctx context.Context) ([]models.Conference, error) {
	var conferences []models.Conference
	err := cache.CacheAside(ctx, cache.ConferenceListKey, &conferences, cache.ConferenceTTL, func() error {
		var err error
		conferences, err = s.conferences.List(ctx)
		return err
	})
	return conferences, err
}

// GetConference returns the conference with the given slug.
func (s *CommentService) GetConference(ctx context.Context, slug string) (*models.Conference, error) {
	slug = strings.TrimSpace(slug)
	if err := validation.ValidateConferenceSlug(slug); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var conference models.Conference
	err := cache.CacheAside(ctx, cache.ConferenceKey(slug), &conference, cache.ConferenceTTL, func() error {
		found, err := s.conferences.GetBySlug(ctx, slug)
		if err != nil {
			return err
		}
		conference = *found
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Conference", slug)
	}
	if err != nil {
		return nil, err
	}
	return &conference, nil
}

// ListPublished returns the published comments of a conference, newest first.
func (s *CommentService) ListPublished(ctx context.Context, slug string, limit, offset int) ([]*models.Comment, error) {
	conference, err := s.GetConference(ctx, slug)
	if err != nil {
		return nil, err
	}

	var comments []*models.Comment
	key := cache.PublishedCommentsKey(conference.ID, limit, offset)
	err = cache.CacheAside(ctx, key, &comments, cache.PublishedCommentsTTL, func() error {
		var err error
		comments, err = s.comments.ListPublishedByConference(ctx, conference.ID, limit, offset)
		return err
	})
	return comments, err
}

// GetPublished returns a comment only once it has been published.
func (s *CommentService) GetPublished(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Comment", id)
	}
	if err != nil {
		return nil, err
	}
	if !comment.State.Published() {
		return nil, models.NewNotFoundError("Comment", id)
	}
	return comment, nil
}
