package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"guestbook/internal/models"
	"guestbook/internal/observability"
	"guestbook/internal/workflow"

	"gorm.io/gorm"
)

// CommentStore loads comments and persists their moderation fields.
type CommentStore interface {
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	SaveState(ctx context.Context, comment *models.Comment) error
}

// SpamScorer rates a comment as ham, possible spam or blatant spam.
type SpamScorer interface {
	Score(ctx context.Context, comment *models.Comment, reqCtx map[string]string) (models.SpamScore, error)
}

// PhotoOptimizer rewrites a stored photo in place.
type PhotoOptimizer interface {
	Resize(ctx context.Context, path string) error
}

// ReviewNotifier tells a human that a comment waits for a decision.
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, comment *models.Comment) error
}

// Enqueuer schedules a moderation message for (re)processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg models.ModerationMessage) error
}

// InertCounter counts deliveries that found nothing to do for a comment.
type InertCounter interface {
	Track(ctx context.Context, commentID uint) (int64, error)
}

// ModerationWorkerOptions holds the optional settings of a ModerationWorker.
type ModerationWorkerOptions struct {
	PhotoDir            string
	Logger              *slog.Logger
	InertCounter        InertCounter
	InertAlertThreshold int
}

// ModerationWorker advances one comment per message through the moderation workflow.
// Process is safe for concurrent use; concurrent steps on the same comment are
// serialized by the store's version check.
type ModerationWorker struct {
	store          CommentStore
	scorer         SpamScorer
	optimizer      PhotoOptimizer
	notifier       ReviewNotifier
	queue          Enqueuer
	photoDir       string
	logger         *slog.Logger
	inert          InertCounter
	inertThreshold int64
}

// NewModerationWorker wires a worker from its collaborators.
func NewModerationWorker(
	store CommentStore,
	scorer SpamScorer,
	optimizer PhotoOptimizer,
	notifier ReviewNotifier,
	queue Enqueuer,
	opts ModerationWorkerOptions,
) *ModerationWorker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	photoDir := opts.PhotoDir
	if photoDir == "" {
		photoDir = DefaultPhotoDir
	}
	return &ModerationWorker{
		store:          store,
		scorer:         scorer,
		optimizer:      optimizer,
		notifier:       notifier,
		queue:          queue,
		photoDir:       photoDir,
		logger:         logger.With(slog.String("component", "moderation_worker")),
		inert:          opts.InertCounter,
		inertThreshold: int64(opts.InertAlertThreshold),
	}
}

// Process handles one delivery of msg. A nil error means the message is done: the
// step committed, the comment no longer exists, or nothing was left to do.
// Any other error leaves the comment as it was so the delivery can be retried.
func (w *ModerationWorker) Process(ctx context.Context, msg models.ModerationMessage) error {
	start := time.Now()
	span, ctx := observability.NewSpan(ctx, "moderation.process", observability.WithSpanKind(observability.SpanKindConsumer))
	defer span.End()
	span.AddAttributes(observability.CommentID(msg.CommentID))

	logger := w.logger.With(slog.Uint64("comment_id", uint64(msg.CommentID)))

	comment, err := w.store.GetByID(ctx, msg.CommentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.DebugContext(ctx, "comment not found, dropping message")
			observability.ModerationMessages.WithLabelValues(workflow.ClassNone.String(), "missing").Inc()
			return nil
		}
		span.SetError(err)
		observability.ModerationMessages.WithLabelValues(workflow.ClassNone.String(), "error").Inc()
		return fmt.Errorf("load comment %d: %w", msg.CommentID, err)
	}

	class := workflow.Classify(comment.State, comment.Optimized)
	span.AddAttributes(
		observability.AttrModerationClass.String(class.String()),
		observability.AttrCommentState.String(string(comment.State)),
	)

	switch class {
	case workflow.ClassClassify:
		err = w.classify(ctx, logger, comment, msg)
	case workflow.ClassReview:
		err = w.requestReview(ctx, logger, comment)
	case workflow.ClassOptimize:
		err = w.optimize(ctx, logger, comment)
	default:
		w.dropInert(ctx, logger, comment)
	}

	observability.ModerationLatency.WithLabelValues(class.String()).Observe(time.Since(start).Seconds())
	observability.ModerationMessages.WithLabelValues(class.String(), outcomeOf(err)).Inc()
	if err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

func (w *ModerationWorker) classify(ctx context.Context, logger *slog.Logger, comment *models.Comment, msg models.ModerationMessage) error {
	score, err := w.scorer.Score(ctx, comment, msg.Context)
	if err != nil {
		return fmt.Errorf("score comment %d: %w", comment.ID, err)
	}

	transition, err := workflow.TransitionForScore(score)
	if err != nil {
		return err
	}
	if err := w.commit(ctx, comment, transition); err != nil {
		return err
	}

	logger.InfoContext(ctx, "comment classified",
		slog.Int("score", int(score)),
		slog.String("transition", string(transition)),
		slog.String("state", string(comment.State)),
	)

	if !workflow.HasNextStep(comment) {
		return nil
	}
	if err := w.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("re-enqueue comment %d: %w", comment.ID, err)
	}
	return nil
}

func (w *ModerationWorker) requestReview(ctx context.Context, logger *slog.Logger, comment *models.Comment) error {
	if err := w.notifier.NotifyReview(ctx, comment); err != nil {
		return fmt.Errorf("notify review of comment %d: %w", comment.ID, err)
	}
	logger.InfoContext(ctx, "comment awaiting review", slog.String("state", string(comment.State)))
	return nil
}

func (w *ModerationWorker) optimize(ctx context.Context, logger *slog.Logger, comment *models.Comment) error {
	if comment.HasPhoto() {
		path := filepath.Join(w.photoDir, filepath.Base(comment.PhotoFilename))
		if err := w.optimizer.Resize(ctx, path); err != nil {
			return fmt.Errorf("optimize photo of comment %d: %w", comment.ID, err)
		}
	}

	if err := w.commit(ctx, comment, workflow.TransitionOptimize); err != nil {
		return err
	}

	logger.InfoContext(ctx, "comment optimized", slog.Bool("photo", comment.HasPhoto()))
	return nil
}

// commit applies t to comment and persists it. The step only counts once SaveState succeeds.
func (w *ModerationWorker) commit(ctx context.Context, comment *models.Comment, t workflow.Transition) error {
	if err := workflow.Apply(comment, t); err != nil {
		return err
	}
	if err := w.store.SaveState(ctx, comment); err != nil {
		return fmt.Errorf("persist %s for comment %d: %w", t, comment.ID, err)
	}
	observability.ModerationTransitions.WithLabelValues(string(t)).Inc()
	return nil
}

func (w *ModerationWorker) dropInert(ctx context.Context, logger *slog.Logger, comment *models.Comment) {
	logger.DebugContext(ctx, "Dropping comment message",
		slog.String("state", string(comment.State)),
		slog.Bool("optimized", comment.Optimized),
	)
	observability.InertDeliveries.Inc()

	if w.inert == nil || w.inertThreshold <= 0 {
		return
	}
	count, err := w.inert.Track(ctx, comment.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to count inert delivery", slog.String("error", err.Error()))
		return
	}
	if count >= w.inertThreshold {
		logger.WarnContext(ctx, "comment keeps receiving messages with nothing to do",
			slog.Int64("inert_deliveries", count),
			slog.String("state", string(comment.State)),
		)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrPersistenceConflict):
		return "conflict"
	case errors.Is(err, models.ErrScoringUnavailable):
		return "scoring_unavailable"
	case errors.Is(err, models.ErrOptimizationFailed):
		return "optimization_failed"
	default:
		return "error"
	}
}
