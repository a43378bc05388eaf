package enrichment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/metrics"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// ArticleStore is the slice of the article store the scheduler needs
type ArticleStore interface {
	FindUnscored(ctx context.Context) ([]models.Article, error)
	UpdateSentiment(ctx context.Context, id string, score float64) error
}

// Scorer converts text into a sentiment score in [-1, 1]. The second
// return value is false when no score is available.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, bool)
}

// Scheduler periodically scores unscored articles. One run pulls a bounded
// batch, scores each article sequentially and writes back successes.
// Failures are logged and skipped; the failed article stays unscored and is
// retried on a later run.
type Scheduler struct {
	store     ArticleStore
	scorer    Scorer
	telemetry *metrics.BufferedMetrics
}

// NewScheduler creates new enrichment scheduler. telemetry may be nil.
func NewScheduler(store ArticleStore, scorer Scorer, telemetry *metrics.BufferedMetrics) *Scheduler {
	return &Scheduler{
		store:     store,
		scorer:    scorer,
		telemetry: telemetry,
	}
}

// Name returns worker name
func (s *Scheduler) Name() string {
	return "sentiment_enrichment"
}

// Run executes one enrichment pass. It never fails the caller: a run where
// every article fails to score still completes normally.
func (s *Scheduler) Run(ctx context.Context) error {
	started := time.Now()

	batch, err := s.store.FindUnscored(ctx)
	if err != nil {
		logger.Error("failed to load unscored articles", zap.Error(err))
		return nil
	}

	if len(batch) == 0 {
		logger.Debug("no unscored articles, enrichment run is a no-op")
		return nil
	}

	scored := 0
	failed := 0
	for i := range batch {
		article := &batch[i]

		select {
		case <-ctx.Done():
			logger.Warn("enrichment run interrupted",
				zap.Int("remaining", len(batch)-i),
			)
			return nil
		default:
		}

		if err := article.Validate(); err != nil {
			logger.Warn("skipping malformed article",
				zap.String("article_id", article.ID),
				zap.Error(err),
			)
			failed++
			continue
		}

		score, ok := s.scorer.Score(ctx, article.Title)
		if !ok {
			logger.Warn("article left unscored, will retry next run",
				zap.String("article_id", article.ID),
			)
			failed++
			continue
		}

		if err := s.store.UpdateSentiment(ctx, article.ID, score); err != nil {
			logger.Warn("failed to store sentiment score",
				zap.String("article_id", article.ID),
				zap.Error(err),
			)
			failed++
			continue
		}
		scored++
	}

	duration := time.Since(started)
	logger.Info("enrichment run completed",
		zap.Int("batch", len(batch)),
		zap.Int("scored", scored),
		zap.Int("failed", failed),
		zap.Duration("duration", duration),
	)

	if s.telemetry != nil {
		_ = s.telemetry.Add(&metrics.PipelineRunMetric{
			Timestamp:  started,
			BatchSize:  len(batch),
			Scored:     scored,
			Failed:     failed,
			DurationMs: int(duration.Milliseconds()),
		})
	}

	return nil
}
