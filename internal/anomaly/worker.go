package anomaly

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/internal/aggregation"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// SignalSource provides signals observed in a time window
type SignalSource interface {
	SignalsForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Signal, error)
}

// Worker rebuilds the detector baseline from the trailing 24 hours of
// signals and checks the most recent readings against it
type Worker struct {
	source   SignalSource
	detector *Detector
}

// NewWorker creates new anomaly worker
func NewWorker(source SignalSource, detector *Detector) *Worker {
	return &Worker{source: source, detector: detector}
}

// Name returns worker name
func (w *Worker) Name() string {
	return "anomaly_detector"
}

// Run refreshes the baseline and flags anomalous latest readings
func (w *Worker) Run(ctx context.Context) error {
	now := time.Now().UTC()

	signals, err := w.source.SignalsForDay(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return err
	}

	w.detector.Reset()

	var lastVolume, lastSentiment *float64
	for i := range signals {
		volume := aggregation.ParseNullableFloat(signals[i].Volume)
		sentiment := signals[i].SentimentScore
		if volume == nil && sentiment == nil {
			continue
		}

		point := dataPoint{observed: signals[i].ObservedAt}
		if volume != nil {
			point.volume = *volume
			lastVolume = volume
		}
		if sentiment != nil {
			point.sentiment = *sentiment
			lastSentiment = sentiment
		}
		w.detector.AddDataPoint(point.volume, point.sentiment, point.observed)
	}

	if lastVolume != nil {
		if result := w.detector.DetectVolumeAnomaly(*lastVolume); result.IsAnomaly {
			logger.Warn("volume anomaly in latest window",
				zap.Float64("value", result.CurrentValue),
				zap.Float64("severity", result.SeverityScore),
			)
		}
	}
	if lastSentiment != nil {
		if result := w.detector.DetectSentimentAnomaly(*lastSentiment); result.IsAnomaly {
			logger.Warn("sentiment anomaly in latest window",
				zap.Float64("value", result.CurrentValue),
				zap.Float64("severity", result.SeverityScore),
			)
		}
	}

	stats := w.detector.WindowStats()
	logger.Debug("anomaly baseline refreshed",
		zap.Int("points", stats.DataPointsCount),
	)
	return nil
}
