package snapshot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

// Worker periodically regenerates the snapshots for yesterday and today,
// so late-arriving scores and signals are folded in on the next pass.
// Idempotent upserts make the repetition safe.
type Worker struct {
	generator *Generator
}

// NewWorker creates new snapshot worker
func NewWorker(generator *Generator) *Worker {
	return &Worker{generator: generator}
}

// Name returns worker name
func (w *Worker) Name() string {
	return "snapshot_generator"
}

// Run regenerates yesterday's and today's snapshots
func (w *Worker) Run(ctx context.Context) error {
	now := time.Now().UTC()

	for _, date := range []time.Time{now.AddDate(0, 0, -1), now} {
		if _, err := w.generator.GenerateForDate(ctx, date); err != nil {
			logger.Warn("snapshot generation failed",
				zap.Time("date", date),
				zap.Error(err),
			)
		}
	}

	return nil
}
