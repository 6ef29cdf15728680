// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guestbook/internal/models"

	"gorm.io/gorm"
)

// CommentStoreStub is an in-memory comment store with the same version check as the
// real repository. Reads return copies so callers never share state.
type CommentStoreStub struct {
	mu        sync.Mutex
	items     map[uint]models.Comment
	nextID    uint
	saves     int
	GetErr    error
	SaveErr   error
	BeforeGet func(id uint)
}

// NewCommentStoreStub creates an empty store.
func NewCommentStoreStub() *CommentStoreStub {
	return &CommentStoreStub{items: make(map[uint]models.Comment), nextID: 1}
}

// Put stores c as-is, assigning an ID when missing, and returns the ID.
func (s *CommentStoreStub) Put(c models.Comment) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID
	}
	if c.ID >= s.nextID {
		s.nextID = c.ID + 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.items[c.ID] = c
	return c.ID
}

// Create stores a new comment.
func (s *CommentStoreStub) Create(_ context.Context, c *models.Comment) error {
	if c.State == "" {
		c.State = models.CommentStateSubmitted
	}
	c.ID = s.Put(*c)
	return nil
}

// Get returns a copy of the stored comment, for assertions.
func (s *CommentStoreStub) Get(id uint) (models.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	return c, ok
}

// Saves returns the number of successful SaveState calls.
func (s *CommentStoreStub) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// GetByID returns a copy of the comment or gorm.ErrRecordNotFound.
func (s *CommentStoreStub) GetByID(_ context.Context, id uint) (*models.Comment, error) {
	if s.BeforeGet != nil {
		s.BeforeGet(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	c, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

// SaveState persists state and optimized when the version still matches.
func (s *CommentStoreStub) SaveState(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if !c.State.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidState, c.State)
	}
	stored, ok := s.items[c.ID]
	if !ok || stored.Version != c.Version {
		return fmt.Errorf("%w: comment %d", models.ErrPersistenceConflict, c.ID)
	}
	stored.State = c.State
	stored.Optimized = c.Optimized
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	s.items[c.ID] = stored
	c.Version = stored.Version
	s.saves++
	return nil
}

// ScorerStub returns a fixed score or error and records calls.
type ScorerStub struct {
	mu       sync.Mutex
	Result   models.SpamScore
	Err      error
	calls    int
	Contexts []map[string]string
}

// Score implements the spam scorer contract.
func (s *ScorerStub) Score(_ context.Context, _ *models.Comment, reqCtx map[string]string) (models.SpamScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.Contexts = append(s.Contexts, reqCtx)
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Result, nil
}

// Calls returns how many times Score was invoked.
func (s *ScorerStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// OptimizerStub records resized paths.
type OptimizerStub struct {
	mu    sync.Mutex
	Err   error
	paths []string
}

// Resize implements the photo optimizer contract.
func (s *OptimizerStub) Resize(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.paths = append(s.paths, path)
	return nil
}

// Paths returns every path resized so far.
func (s *OptimizerStub) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// NotifierStub records comments sent for review.
type NotifierStub struct {
	mu       sync.Mutex
	Err      error
	reviewed []models.Comment
}

// NotifyReview implements the review notifier contract.
func (s *NotifierStub) NotifyReview(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.reviewed = append(s.reviewed, *c)
	return nil
}

// Reviewed returns the comments sent for review.
func (s *NotifierStub) Reviewed() []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Comment(nil), s.reviewed...)
}

// QueueRecorder records enqueued messages.
type QueueRecorder struct {
	mu       sync.Mutex
	Err      error
	messages []models.ModerationMessage
}

// Enqueue implements the enqueuer contract.
func (q *QueueRecorder) Enqueue(_ context.Context, msg models.ModerationMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.messages = append(q.messages, msg)
	return nil
}

// Messages returns the enqueued messages.
func (q *QueueRecorder) Messages() []models.ModerationMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.ModerationMessage(nil), q.messages...)
}

// Drain returns and clears the enqueued messages.
func (q *QueueRecorder) Drain() []models.ModerationMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.messages
	q.messages = nil
	return out
}

// InertCounterStub counts inert deliveries per comment.
type InertCounterStub struct {
	mu     sync.Mutex
	counts map[uint]int64
}

// Track implements the inert counter contract.
func (s *InertCounterStub) Track(_ context.Context, commentID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[uint]int64)
	}
	s.counts[commentID]++
	return s.counts[commentID], nil
}
