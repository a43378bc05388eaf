package trends

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

// Worker periodically recomputes trends so cached results stay warm for
// readers
type Worker struct {
	calculator *Calculator
}

// NewWorker creates new trends worker
func NewWorker(calculator *Calculator) *Worker {
	return &Worker{calculator: calculator}
}

// Name returns worker name
func (w *Worker) Name() string {
	return "trend_calculator"
}

// Run recomputes all trends
func (w *Worker) Run(ctx context.Context) error {
	trends, err := w.calculator.CalculateAll(ctx)
	if err != nil {
		return err
	}

	for _, trend := range trends {
		logger.Info("trend",
			zap.String("metric", trend.MetricName),
			zap.String("direction", trend.TrendDirection),
			zap.Float64("current", trend.CurrentValue),
			zap.Float64("change_pct", trend.ChangePercentage),
		)
	}
	return nil
}
