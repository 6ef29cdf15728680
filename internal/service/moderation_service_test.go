package service

import (
	"context"
	"errors"
	"testing"

	"guestbook/internal/cache"
	"guestbook/internal/models"
	"guestbook/internal/repository"
	"guestbook/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newModerationServiceFixture(t *testing.T) (*gorm.DB, *testutil.QueueRecorder, *ModerationService) {
	t.Helper()
	cache.SetClient(nil)
	db := setupServiceDB(t)
	queue := &testutil.QueueRecorder{}
	return db, queue, NewModerationService(repository.NewCommentRepository(db), queue)
}

func createComment(t *testing.T, db *gorm.DB, state models.CommentState) *models.Comment {
	t.Helper()
	c := &models.Comment{ConferenceID: 1, Author: "Fabien", Text: "Nice", Email: "fabien@example.com", State: state}
	require.NoError(t, db.Create(c).Error)
	return c
}

func assertConflictError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestModerationService_Decide(t *testing.T) {
	tests := []struct {
		name     string
		state    models.CommentState
		approved bool
		want     models.CommentState
	}{
		{"approve ham", models.CommentStateHam, true, models.CommentStatePublished},
		{"reject ham", models.CommentStateHam, false, models.CommentStateRejected},
		{"approve potential spam", models.CommentStatePotentialSpam, true, models.CommentStatePublishedHam},
		{"reject potential spam", models.CommentStatePotentialSpam, false, models.CommentStateRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, queue, svc := newModerationServiceFixture(t)
			c := createComment(t, db, tt.state)

			got, err := svc.Decide(context.Background(), c.ID, tt.approved)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.State)

			var stored models.Comment
			require.NoError(t, db.First(&stored, c.ID).Error)
			assert.Equal(t, tt.want, stored.State)
			assert.EqualValues(t, 1, stored.Version)

			msgs := queue.Messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, c.ID, msgs[0].CommentID)
		})
	}
}

func TestModerationService_DecideRejectsIllegalStates(t *testing.T) {
	for _, state := range []models.CommentState{
		models.CommentStateSubmitted,
		models.CommentStatePublished,
		models.CommentStateRejectedSpam,
		models.CommentStateSpam,
	} {
		t.Run(string(state), func(t *testing.T) {
			db, queue, svc := newModerationServiceFixture(t)
			c := createComment(t, db, state)

			_, err := svc.Decide(context.Background(), c.ID, true)
			assertConflictError(t, err)
			assert.ErrorIs(t, err, models.ErrIllegalTransition)

			var stored models.Comment
			require.NoError(t, db.First(&stored, c.ID).Error)
			assert.Equal(t, state, stored.State)
			assert.Empty(t, queue.Messages())
		})
	}
}

func TestModerationService_DecideMissingComment(t *testing.T) {
	_, _, svc := newModerationServiceFixture(t)
	_, err := svc.Decide(context.Background(), 404, true)
	assertNotFoundError(t, err)
}

func TestModerationService_DecideLosesRace(t *testing.T) {
	db, queue, _ := newModerationServiceFixture(t)
	c := createComment(t, db, models.CommentStateHam)

	// Another decision lands between the read and the write.
	repo := &racingRepo{
		CommentRepository: repository.NewCommentRepository(db),
		afterGet: func() {
			require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", c.ID).
				Updates(map[string]interface{}{"state": models.CommentStateRejected, "version": 1}).Error)
		},
	}
	svc := NewModerationService(repo, queue)

	_, err := svc.Decide(context.Background(), c.ID, true)
	assertConflictError(t, err)
	assert.ErrorIs(t, err, models.ErrPersistenceConflict)
	assert.Empty(t, queue.Messages())
}

type racingRepo struct {
	repository.CommentRepository
	afterGet func()
}

func (r *racingRepo) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	c, err := r.CommentRepository.GetByID(ctx, id)
	if err == nil && r.afterGet != nil {
		r.afterGet()
	}
	return c, err
}

func TestModerationService_DecideInvalidatesPublishedPages(t *testing.T) {
	db, _, svc := newModerationServiceFixture(t)
	mr := miniredis.RunT(t)
	rdb, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	c := createComment(t, db, models.CommentStatePotentialSpam)
	require.NoError(t, cache.SetJSON(context.Background(), cache.PublishedCommentsKey(1, 20, 0), []int{}, cache.PublishedCommentsTTL))

	_, err = svc.Decide(context.Background(), c.ID, true)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PublishedCommentsKey(1, 20, 0)))
}

func TestModerationService_DecideEnqueueFailureKeepsDecision(t *testing.T) {
	db, queue, svc := newModerationServiceFixture(t)
	queue.Err = errors.New("queue down")
	c := createComment(t, db, models.CommentStateHam)

	got, err := svc.Decide(context.Background(), c.ID, true)
	require.Error(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.CommentStatePublished, got.State)
}

func TestModerationService_Requeue(t *testing.T) {
	db, queue, svc := newModerationServiceFixture(t)
	pending := createComment(t, db, models.CommentStateSubmitted)
	done := createComment(t, db, models.CommentStateRejectedSpam)

	_, err := svc.Requeue(context.Background(), pending.ID, map[string]string{models.ContextUserIP: "10.0.0.2"})
	require.NoError(t, err)
	msgs := queue.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "10.0.0.2", msgs[0].Context[models.ContextUserIP])

	_, err = svc.Requeue(context.Background(), done.ID, nil)
	assertConflictError(t, err)
	assert.Len(t, queue.Messages(), 1)
}

func TestModerationService_ListByState(t *testing.T) {
	db, _, svc := newModerationServiceFixture(t)
	createComment(t, db, models.CommentStateHam)
	createComment(t, db, models.CommentStateHam)
	createComment(t, db, models.CommentStatePotentialSpam)

	got, err := svc.ListByState(context.Background(), models.CommentStateHam, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.ListByState(context.Background(), models.CommentStateHam, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.ListByState(context.Background(), "approved", 10)
	assertValidationError(t, err)
}
