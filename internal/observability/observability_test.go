package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestNewSpan_RecordsError(t *testing.T) {
	rec := recordSpans(t)

	span, ctx := NewSpan(context.Background(), "moderation.process", WithSpanKind(SpanKindConsumer))
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	assert.NotEmpty(t, span.TraceID())
	span.SetError(errors.New("scoring unavailable"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "moderation.process", ended[0].Name())
	assert.Equal(t, trace.SpanKindConsumer, ended[0].SpanKind())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestTraceRedisOperation(t *testing.T) {
	rec := recordSpans(t)

	_, span := TraceRedisOperation(context.Background(), "XADD", "moderation")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "redis.XADD", ended[0].Name())
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
	assert.Contains(t, ended[0].Attributes(), attribute.String("db.redis.key", "moderation"))
}

func TestNewSpan_CommentAttributes(t *testing.T) {
	rec := recordSpans(t)

	span, _ := NewSpan(context.Background(), "akismet.comment_check")
	span.AddAttributes(CommentID(7), AttrSpamScore.Int(1))
	span.SetError(nil)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Contains(t, ended[0].Attributes(), attribute.Int64("comment.id", 7))
	assert.Contains(t, ended[0].Attributes(), attribute.Int("spam.score", 1))
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "guestbook-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewExporter(t *testing.T) {
	ctx := context.Background()

	_, err := newExporter(ctx, TracingConfig{Exporter: "jaeger"})
	assert.ErrorContains(t, err, "unknown tracing exporter")

	_, err = newExporter(ctx, TracingConfig{Exporter: "otlp"})
	assert.ErrorContains(t, err, "endpoint")

	exp, err := newExporter(ctx, TracingConfig{Exporter: "STDOUT"})
	require.NoError(t, err)
	assert.NoError(t, exp.Shutdown(ctx))
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ExtractCorrelationID(ctx))

	id := GenerateCorrelationID()
	assert.Len(t, id, 36)
	assert.Equal(t, id, ExtractCorrelationID(WithCorrelationID(ctx, id)))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "production").Debug("hidden")
	NewLogger(&buf, "production").Info("comment processed", "comment_id", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "comment processed", line["msg"])
	assert.Equal(t, float64(3), line["comment_id"])

	buf.Reset()
	NewLogger(&buf, "development").Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestRepoLogger(t *testing.T) {
	prev := GlobalLogger
	t.Cleanup(func() { GlobalLogger = prev })

	var buf bytes.Buffer
	SetGlobalLogger(NewLogger(&buf, "development"))
	l := NewRepoLogger("comments")

	ctx := WithCorrelationID(context.Background(), "corr-1")
	l.LogUpdate(ctx, map[string]interface{}{"comment_id": 9})
	l.LogError(ctx, errors.New("conflict"), "save_state")

	out := buf.String()
	assert.Contains(t, out, "table=comments")
	assert.Contains(t, out, "operation=update")
	assert.Contains(t, out, "correlation_id=corr-1")
	assert.Contains(t, out, "operation=save_state")
	assert.Contains(t, out, "error=conflict")
}
