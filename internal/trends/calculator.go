package trends

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator"
	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// Direction values
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStable = "stable"
)

// Change below this magnitude (percent) counts as stable
const stableThresholdPct = 2.0

// Smoothing window for sentiment momentum, in days
const momentumWindow = 7

// Trend describes how one metric moved between the two most recent
// snapshot days
type Trend struct {
	MetricName       string    `json:"metric_name"`
	CurrentValue     float64   `json:"current_value"`
	PreviousValue    float64   `json:"previous_value"`
	ChangePercentage float64   `json:"change_percentage"`
	TrendDirection   string    `json:"trend_direction"`
	Timestamp        time.Time `json:"timestamp"`
}

// HistorySource provides the global daily aggregate series, oldest first
type HistorySource interface {
	GlobalHistory(ctx context.Context, days int) ([]models.AssetAggregationRow, error)
}

// Cache stores computed trend sets; a nil Cache disables caching
type Cache interface {
	GetJSON(ctx context.Context, namespace, rawKey string, dest interface{}) bool
	SetJSON(ctx context.Context, namespace, rawKey string, value interface{}) error
}

// Calculator derives day-over-day trends from the stored global snapshot
// series
type Calculator struct {
	history HistorySource
	cache   Cache
	days    int
	now     func() time.Time
}

// NewCalculator creates new trend calculator. cache may be nil.
func NewCalculator(history HistorySource, cache Cache, days int) *Calculator {
	if days < momentumWindow+1 {
		days = momentumWindow + 1
	}
	return &Calculator{
		history: history,
		cache:   cache,
		days:    days,
		now:     time.Now,
	}
}

// CalculateAll computes all trends from the snapshot history. Needs at
// least two snapshot days; fewer yields an empty set, not an error.
func (c *Calculator) CalculateAll(ctx context.Context) ([]Trend, error) {
	rows, err := c.history.GlobalHistory(ctx, c.days)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}
	if len(rows) < 2 {
		logger.Debug("not enough snapshot history for trends",
			zap.Int("days", len(rows)),
		)
		return []Trend{}, nil
	}

	cacheKey := historyFingerprint(rows)
	if c.cache != nil {
		var cached []Trend
		if c.cache.GetJSON(ctx, "trends", cacheKey, &cached) {
			return cached, nil
		}
	}

	sentiments := make([]float64, len(rows))
	volumes := make([]float64, len(rows))
	counts := make([]float64, len(rows))
	for i := range rows {
		sentiments[i] = rows[i].AvgSentiment
		counts[i] = float64(rows[i].SignalCount)
		if rows[i].TotalVolume != nil {
			volumes[i] = models.ToFloat64(*rows[i].TotalVolume)
		}
	}

	last := len(rows) - 1
	trends := []Trend{
		c.buildTrend("avg_sentiment", sentiments[last], sentiments[last-1]),
		c.buildTrend("signal_count", counts[last], counts[last-1]),
		c.buildTrend("total_volume", volumes[last], volumes[last-1]),
	}

	// Momentum compares the two most recent smoothed values, filtering out
	// single-day sentiment spikes
	if len(sentiments) >= momentumWindow+1 {
		sma := indicator.Sma(momentumWindow, sentiments)
		trends = append(trends, c.buildTrend("sentiment_momentum", sma[last], sma[last-1]))
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, "trends", cacheKey, trends); err != nil {
			logger.Warn("failed to cache trends", zap.Error(err))
		}
	}

	logger.Info("trends calculated", zap.Int("count", len(trends)))
	return trends, nil
}

func (c *Calculator) buildTrend(metric string, current, previous float64) Trend {
	changePct := 0.0
	if previous != 0 {
		changePct = (current - previous) / math.Abs(previous) * 100
	}

	direction := DirectionStable
	switch {
	case changePct > stableThresholdPct:
		direction = DirectionUp
	case changePct < -stableThresholdPct:
		direction = DirectionDown
	}

	trend := Trend{
		MetricName:       metric,
		CurrentValue:     round(current, 4),
		PreviousValue:    round(previous, 4),
		ChangePercentage: round(changePct, 2),
		TrendDirection:   direction,
		Timestamp:        c.now().UTC(),
	}

	logger.Debug("metric trend",
		zap.String("metric", metric),
		zap.String("direction", direction),
		zap.Float64("change_pct", trend.ChangePercentage),
	)
	return trend
}

// historyFingerprint keys the cache on what the series actually contains,
// so regeneration of a day invalidates naturally
func historyFingerprint(rows []models.AssetAggregationRow) string {
	last := rows[len(rows)-1]
	return fmt.Sprintf("%d:%s:%d",
		len(rows),
		last.SnapshotDate.Format("2006-01-02"),
		last.GeneratedAt.Unix(),
	)
}

func round(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
