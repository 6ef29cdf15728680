package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"guestbook/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestTracingMiddleware_NamesSpanAfterRoute(t *testing.T) {
	rec := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/conferences/:slug/comments", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/comments/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusInternalServerError)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/conferences/amsterdam-2019/comments", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/comments/42", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	ended := rec.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "GET /api/conferences/:slug/comments", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("conference.slug", "amsterdam-2019"))
	assert.Equal(t, codes.Unset, ended[0].Status().Code)

	assert.Equal(t, "GET /api/comments/:id", ended[1].Name())
	assert.Contains(t, ended[1].Attributes(), attribute.Int64("comment.id", 42))
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestContextHandler_AddsRequestAndTraceIDs(t *testing.T) {
	recordSpans(t)

	var buf bytes.Buffer
	logger := slog.New(&ctxHandler{slog.NewTextHandler(&buf, nil)})

	span, ctx := observability.NewSpan(context.Background(), "moderation.process")
	defer span.End()
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")
	ctx = observability.WithCorrelationID(ctx, "req-1")

	logger.InfoContext(ctx, "comment submitted")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "correlation_id=req-1")
	assert.Contains(t, out, "trace_id="+span.TraceID())
}
