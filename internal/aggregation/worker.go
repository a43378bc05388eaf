package aggregation

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

// Worker periodically reports the current market sentiment summary. The
// summary itself is computed on demand; this worker just keeps a recent
// reading in the logs for operators watching the pipeline.
type Worker struct {
	engine *Engine
}

// NewWorker creates new sentiment summary worker
func NewWorker(engine *Engine) *Worker {
	return &Worker{engine: engine}
}

// Name returns worker name
func (w *Worker) Name() string {
	return "sentiment_summary"
}

// Run computes and logs the current summary
func (w *Worker) Run(ctx context.Context) error {
	summary, err := w.engine.GetSentimentSummary(ctx)
	if err != nil {
		logger.Error("failed to compute sentiment summary", zap.Error(err))
		return err
	}

	fields := []zap.Field{
		zap.Float64("average_sentiment", summary.AverageSentiment),
		zap.Int("total_articles", summary.TotalArticles),
		zap.String("market_mood", summary.MarketMood()),
	}
	if len(summary.BySource) > 0 {
		top := summary.BySource[0]
		fields = append(fields,
			zap.String("top_source", top.Source),
			zap.Float64("top_source_sentiment", top.AverageSentiment),
		)
	}
	logger.Info("sentiment summary", fields...)

	return nil
}
