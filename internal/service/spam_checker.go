package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"guestbook/internal/config"
	"guestbook/internal/models"
	"guestbook/internal/observability"

	"github.com/gofiber/fiber/v2"
)

const (
	akismetProTipHeader    = "X-Akismet-Pro-Tip"
	akismetDebugHelpHeader = "X-Akismet-Debug-Help"
)

// SpamChecker scores comments against the Akismet comment-check API.
type SpamChecker struct {
	endpoint string
	blogURL  string
	isTest   bool
	timeout  time.Duration
}

// NewSpamChecker builds a checker for the configured endpoint.
func NewSpamChecker(cfg *config.Config) *SpamChecker {
	return &SpamChecker{
		endpoint: cfg.SpamEndpoint(),
		blogURL:  cfg.SiteURL,
		isTest:   !cfg.IsProduction(),
		timeout:  cfg.SpamCheckTimeout(),
	}
}

// Score returns 0 for a clean comment, 1 when it might be spam and 2 for blatant spam.
// reqCtx carries the submitting request metadata and is sent along with the comment.
func (s *SpamChecker) Score(ctx context.Context, comment *models.Comment, reqCtx map[string]string) (models.SpamScore, error) {
	span, ctx := observability.NewSpan(ctx, "akismet.comment_check", observability.WithSpanKind(observability.SpanKindClient))
	defer span.End()
	span.AddAttributes(observability.CommentID(comment.ID))

	score, err := s.score(ctx, comment, reqCtx)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	span.AddAttributes(observability.AttrSpamScore.Int(int(score)))
	observability.SpamScores.WithLabelValues(strconv.Itoa(int(score))).Inc()
	return score, nil
}

func (s *SpamChecker) score(ctx context.Context, comment *models.Comment, reqCtx map[string]string) (models.SpamScore, error) {
	if err := ctx.Err(); err != nil {
		observability.SpamCheckErrors.WithLabelValues("canceled").Inc()
		return 0, fmt.Errorf("%w: %v", models.ErrScoringUnavailable, err)
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	for k, v := range s.formValues(comment, reqCtx) {
		args.Set(k, v)
	}

	resp := fiber.AcquireResponse()
	defer fiber.ReleaseResponse(resp)

	agent := fiber.Post(s.endpoint)
	agent.Timeout(s.timeout)
	agent.Form(args)
	agent.SetResponse(resp)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		observability.SpamCheckErrors.WithLabelValues("transport").Inc()
		return 0, fmt.Errorf("%w: %v", models.ErrScoringUnavailable, errors.Join(errs...))
	}
	if status < 200 || status >= 300 {
		observability.SpamCheckErrors.WithLabelValues("status").Inc()
		return 0, fmt.Errorf("%w: unexpected status %d", models.ErrScoringUnavailable, status)
	}

	if string(resp.Header.Peek(akismetProTipHeader)) == "discard" {
		return models.SpamScoreBlatant, nil
	}
	if help := resp.Header.Peek(akismetDebugHelpHeader); len(help) > 0 {
		observability.SpamCheckErrors.WithLabelValues("debug_help").Inc()
		return 0, fmt.Errorf("%w: %s", models.ErrScoringUnavailable, help)
	}

	if string(body) == "true" {
		return models.SpamScoreMaybe, nil
	}
	return models.SpamScoreHam, nil
}

// formValues merges the comment fields over the request context.
func (s *SpamChecker) formValues(comment *models.Comment, reqCtx map[string]string) map[string]string {
	values := make(map[string]string, len(reqCtx)+9)
	for k, v := range reqCtx {
		values[k] = v
	}

	values["blog"] = s.blogURL
	values["comment_type"] = "comment"
	values["comment_author"] = comment.Author
	values["comment_author_email"] = comment.Email
	values["comment_content"] = comment.Text
	values["comment_date_gmt"] = comment.CreatedAt.UTC().Format(time.RFC3339)
	values["blog_lang"] = "en"
	values["blog_charset"] = "UTF-8"
	if s.isTest {
		values["is_test"] = "true"
	}
	return values
}
