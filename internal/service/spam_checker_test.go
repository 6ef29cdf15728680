package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"guestbook/internal/config"
	"guestbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type akismetStub struct {
	mu       sync.Mutex
	lastForm url.Values
	handler  func(w http.ResponseWriter)
}

func newAkismetStub(t *testing.T, handler func(w http.ResponseWriter)) (*akismetStub, *SpamChecker) {
	t.Helper()
	stub := &akismetStub{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		stub.mu.Lock()
		stub.lastForm = r.PostForm
		stub.mu.Unlock()
		stub.handler(w)
	}))
	t.Cleanup(srv.Close)

	checker := NewSpamChecker(&config.Config{
		Env:                     "test",
		AkismetEndpoint:         srv.URL + "/1.1/comment-check",
		SiteURL:                 "https://guestbook.test",
		SpamCheckTimeoutSeconds: 2,
	})
	return stub, checker
}

func (s *akismetStub) form() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm
}

func sampleComment() *models.Comment {
	return &models.Comment{
		ID:        1,
		Author:    "Fabien",
		Email:     "fabien@example.com",
		Text:      "Great conference!",
		CreatedAt: time.Date(2019, 10, 31, 12, 0, 0, 0, time.UTC),
	}
}

func TestSpamChecker_Score(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter)
		want    models.SpamScore
	}{
		{"clean", func(w http.ResponseWriter) { _, _ = w.Write([]byte("false")) }, models.SpamScoreHam},
		{"maybe spam", func(w http.ResponseWriter) { _, _ = w.Write([]byte("true")) }, models.SpamScoreMaybe},
		{"discard wins over body", func(w http.ResponseWriter) {
			w.Header().Set("X-Akismet-Pro-Tip", "discard")
			_, _ = w.Write([]byte("false"))
		}, models.SpamScoreBlatant},
		{"unexpected body is clean", func(w http.ResponseWriter) { _, _ = w.Write([]byte("maybe")) }, models.SpamScoreHam},
		{"body must be exactly true", func(w http.ResponseWriter) { _, _ = w.Write([]byte("true\n")) }, models.SpamScoreHam},
		{"pro tip must be exactly discard", func(w http.ResponseWriter) {
			w.Header().Set("X-Akismet-Pro-Tip", "Discard")
			_, _ = w.Write([]byte("false"))
		}, models.SpamScoreHam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, checker := newAkismetStub(t, tt.handler)
			got, err := checker.Score(context.Background(), sampleComment(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpamChecker_ScoreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter)
	}{
		{"debug help header", func(w http.ResponseWriter) {
			w.Header().Set("X-Akismet-Debug-Help", "Empty \"blog\" value")
			_, _ = w.Write([]byte("invalid"))
		}},
		{"server error", func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, checker := newAkismetStub(t, tt.handler)
			_, err := checker.Score(context.Background(), sampleComment(), nil)
			assert.ErrorIs(t, err, models.ErrScoringUnavailable)
		})
	}
}

func TestSpamChecker_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	checker := NewSpamChecker(&config.Config{AkismetEndpoint: endpoint, SpamCheckTimeoutSeconds: 1})
	_, err := checker.Score(context.Background(), sampleComment(), nil)
	assert.ErrorIs(t, err, models.ErrScoringUnavailable)
}

func TestSpamChecker_SendsCommentMergedOverContext(t *testing.T) {
	stub, checker := newAkismetStub(t, func(w http.ResponseWriter) { _, _ = w.Write([]byte("false")) })

	comment := sampleComment()
	reqCtx := map[string]string{
		models.ContextUserIP:    "127.0.0.1",
		models.ContextUserAgent: "Symfony Browser",
		models.ContextReferrer:  "https://guestbook.test/conference/amsterdam-2019",
		models.ContextPermalink: "https://guestbook.test/conference/amsterdam-2019",
		"comment_author":        "spoofed",
	}

	_, err := checker.Score(context.Background(), comment, reqCtx)
	require.NoError(t, err)

	form := stub.form()
	assert.Equal(t, "https://guestbook.test", form.Get("blog"))
	assert.Equal(t, "comment", form.Get("comment_type"))
	assert.Equal(t, "Fabien", form.Get("comment_author"), "comment fields override context")
	assert.Equal(t, "fabien@example.com", form.Get("comment_author_email"))
	assert.Equal(t, "Great conference!", form.Get("comment_content"))
	assert.Equal(t, "2019-10-31T12:00:00Z", form.Get("comment_date_gmt"))
	assert.Equal(t, "en", form.Get("blog_lang"))
	assert.Equal(t, "UTF-8", form.Get("blog_charset"))
	assert.Equal(t, "true", form.Get("is_test"))
	assert.Equal(t, "127.0.0.1", form.Get("user_ip"))
	assert.Equal(t, "Symfony Browser", form.Get("user_agent"))

	assert.Equal(t, "Fabien", comment.Author, "scoring never mutates the comment")
	assert.Equal(t, "spoofed", reqCtx["comment_author"], "context is not mutated")
}

func TestSpamChecker_ProductionOmitsTestFlag(t *testing.T) {
	checker := &SpamChecker{blogURL: "https://guestbook.test", isTest: false}
	values := checker.formValues(sampleComment(), nil)
	_, ok := values["is_test"]
	assert.False(t, ok)
}
