package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"guestbook/internal/cache"
	"guestbook/internal/models"
	"guestbook/internal/repository"
	"guestbook/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Conference{}, &models.Comment{}))
	require.NoError(t, db.Create(&models.Conference{City: "Amsterdam", Year: "2019", IsInternational: true, Slug: "amsterdam-2019"}).Error)
	require.NoError(t, db.Create(&models.Conference{City: "Paris", Year: "2020", Slug: "paris-2020"}).Error)
	return db
}

type commentServiceFixture struct {
	db     *gorm.DB
	queue  *testutil.QueueRecorder
	images *ImageService
	svc    *CommentService
}

func newCommentServiceFixture(t *testing.T) *commentServiceFixture {
	t.Helper()
	cache.SetClient(nil)
	db := setupServiceDB(t)
	f := &commentServiceFixture{
		db:     db,
		queue:  &testutil.QueueRecorder{},
		images: newTestImageService(t),
	}
	f.svc = NewCommentService(
		repository.NewCommentRepository(db),
		repository.NewConferenceRepository(db),
		f.images,
		f.queue,
	)
	return f
}

func validSubmission() SubmitCommentInput {
	return SubmitCommentInput{
		ConferenceSlug: "amsterdam-2019",
		Author:         "Fabien",
		Text:           "Great talks!",
		Email:          "fabien@example.com",
		Context: map[string]string{
			models.ContextUserIP:    "127.0.0.1",
			models.ContextUserAgent: "Symfony Browser",
		},
	}
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCommentService_Submit(t *testing.T) {
	f := newCommentServiceFixture(t)
	in := validSubmission()

	comment, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)

	assert.NotZero(t, comment.ID)
	assert.Equal(t, models.CommentStateSubmitted, comment.State)
	assert.Equal(t, "Amsterdam 2019", comment.Conference.String())
	assert.Empty(t, comment.PhotoFilename)

	msgs := f.queue.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, comment.ID, msgs[0].CommentID)
	assert.Equal(t, "127.0.0.1", msgs[0].Context[models.ContextUserIP])

	in.Context[models.ContextUserIP] = "changed"
	assert.Equal(t, "127.0.0.1", f.queue.Messages()[0].Context[models.ContextUserIP], "message context is a copy")
}

func TestCommentService_SubmitWithPhoto(t *testing.T) {
	f := newCommentServiceFixture(t)
	in := validSubmission()
	in.Photo = &UploadPhotoInput{Filename: "me.png", ContentType: "image/png", Content: testutil.TinyPNG()}

	comment, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)

	require.NotEmpty(t, comment.PhotoFilename)
	assert.True(t, strings.HasSuffix(comment.PhotoFilename, ".png"))
	assert.Len(t, strings.TrimSuffix(comment.PhotoFilename, ".png"), 12)
	assert.FileExists(t, filepath.Join(f.images.PhotoDir(), comment.PhotoFilename))
}

func TestCommentService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *SubmitCommentInput)
	}{
		{"missing author", func(in *SubmitCommentInput) { in.Author = "  " }},
		{"missing text", func(in *SubmitCommentInput) { in.Text = "" }},
		{"text too long", func(in *SubmitCommentInput) { in.Text = strings.Repeat("x", maxCommentLen+1) }},
		{"missing email", func(in *SubmitCommentInput) { in.Email = "" }},
		{"invalid email", func(in *SubmitCommentInput) { in.Email = "not-an-email" }},
		{"display name email", func(in *SubmitCommentInput) { in.Email = "Fabien <fabien@example.com>" }},
		{"invalid photo", func(in *SubmitCommentInput) { in.Photo = &UploadPhotoInput{Content: []byte("hello world")} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCommentServiceFixture(t)
			in := validSubmission()
			tt.mutate(&in)

			_, err := f.svc.Submit(context.Background(), in)
			assertValidationError(t, err)

			var count int64
			require.NoError(t, f.db.Model(&models.Comment{}).Count(&count).Error)
			assert.Zero(t, count)
			assert.Empty(t, f.queue.Messages())
		})
	}
}

func TestCommentService_SubmitLengthCountsCharacters(t *testing.T) {
	f := newCommentServiceFixture(t)
	in := validSubmission()
	in.Text = strings.Repeat("é", maxCommentLen)

	comment, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.Text, comment.Text)

	in.Text += "é"
	_, err = f.svc.Submit(context.Background(), in)
	assertValidationError(t, err)
}

func TestCommentService_SubmitUnknownConference(t *testing.T) {
	f := newCommentServiceFixture(t)
	in := validSubmission()
	in.ConferenceSlug = "berlin-1999"

	_, err := f.svc.Submit(context.Background(), in)
	assertNotFoundError(t, err)
}

func TestCommentService_SubmitEnqueueFailureKeepsComment(t *testing.T) {
	f := newCommentServiceFixture(t)
	f.queue.Err = errors.New("queue down")

	_, err := f.svc.Submit(context.Background(), validSubmission())
	require.Error(t, err)

	var stored models.Comment
	require.NoError(t, f.db.First(&stored).Error)
	assert.Equal(t, models.CommentStateSubmitted, stored.State)
}

func TestCommentService_SubmitRemovesPhotoWhenCreateFails(t *testing.T) {
	f := newCommentServiceFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&models.Comment{}))

	in := validSubmission()
	in.Photo = &UploadPhotoInput{Content: testutil.TinyPNG()}
	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)

	entries, err := os.ReadDir(f.images.PhotoDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommentService_ListPublished(t *testing.T) {
	f := newCommentServiceFixture(t)
	base := time.Date(2019, 10, 31, 12, 0, 0, 0, time.UTC)
	for i, state := range []models.CommentState{
		models.CommentStatePublished,
		models.CommentStateHam,
		models.CommentStatePublishedHam,
		models.CommentStateRejectedSpam,
	} {
		require.NoError(t, f.db.Create(&models.Comment{
			ConferenceID: 1,
			Author:       "a",
			Text:         string(state),
			Email:        "a@example.com",
			State:        state,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	comments, err := f.svc.ListPublished(context.Background(), "amsterdam-2019", 10, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, models.CommentStatePublishedHam, comments[0].State)
	assert.Equal(t, models.CommentStatePublished, comments[1].State)

	comments, err = f.svc.ListPublished(context.Background(), "amsterdam-2019", 1, 1)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, models.CommentStatePublished, comments[0].State)

	_, err = f.svc.ListPublished(context.Background(), "nowhere", 10, 0)
	assertNotFoundError(t, err)
}

func TestCommentService_GetPublished(t *testing.T) {
	f := newCommentServiceFixture(t)
	published := &models.Comment{ConferenceID: 1, Author: "a", Text: "ok", Email: "a@example.com", State: models.CommentStatePublished}
	pending := &models.Comment{ConferenceID: 1, Author: "b", Text: "wait", Email: "b@example.com", State: models.CommentStatePotentialSpam}
	require.NoError(t, f.db.Create(published).Error)
	require.NoError(t, f.db.Create(pending).Error)

	got, err := f.svc.GetPublished(context.Background(), published.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Text)
	assert.Equal(t, "amsterdam-2019", got.Conference.Slug)

	_, err = f.svc.GetPublished(context.Background(), pending.ID)
	assertNotFoundError(t, err)

	_, err = f.svc.GetPublished(context.Background(), 999)
	assertNotFoundError(t, err)
}

func TestCommentService_ListConferencesIsCached(t *testing.T) {
	f := newCommentServiceFixture(t)
	mr := miniredis.RunT(t)
	rdb, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	conferences, err := f.svc.ListConferences(context.Background())
	require.NoError(t, err)
	require.Len(t, conferences, 2)
	assert.Equal(t, "paris-2020", conferences[0].Slug)
	assert.True(t, mr.Exists(cache.ConferenceListKey))

	require.NoError(t, f.db.Create(&models.Conference{City: "Berlin", Year: "2021", Slug: "berlin-2021"}).Error)
	conferences, err = f.svc.ListConferences(context.Background())
	require.NoError(t, err)
	assert.Len(t, conferences, 2, "served from cache")
}
