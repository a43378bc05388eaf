package aggregation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// Store is the article/signal query contract the engine runs over
type Store interface {
	FindUnscored(ctx context.Context) ([]models.Article, error)
	FindBySentimentRange(ctx context.Context, min, max float64) ([]models.Article, error)
	ScoredSourceStats(ctx context.Context) ([]models.SourceSentiment, error)
	SignalsForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Signal, error)
}

// Engine is a stateless aggregation layer over the article store. It backs
// the reporting endpoints and supplies the statistical core for snapshot
// generation.
type Engine struct {
	store Store
}

// NewEngine creates new aggregation engine
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// FindUnscoredArticles returns the current batch of unscored articles,
// newest first, capped by the store's batch limit
func (e *Engine) FindUnscoredArticles(ctx context.Context) ([]models.Article, error) {
	return e.store.FindUnscored(ctx)
}

// FindBySentimentRange returns scored articles with min <= score <= max,
// both ends inclusive. Unscored articles never match.
func (e *Engine) FindBySentimentRange(ctx context.Context, min, max float64) ([]models.Article, error) {
	if min > max {
		return nil, fmt.Errorf("invalid sentiment range: min %.4f > max %.4f", min, max)
	}
	return e.store.FindBySentimentRange(ctx, min, max)
}

// GetSentimentSummary computes the overall and per-source sentiment summary
// over scored articles
func (e *Engine) GetSentimentSummary(ctx context.Context) (*models.SentimentSummary, error) {
	bySource, err := e.store.ScoredSourceStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source stats: %w", err)
	}
	return BuildSummary(bySource), nil
}

// SignalsForDay exposes the day-window signal read model to the snapshot
// generator
func (e *Engine) SignalsForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Signal, error) {
	return e.store.SignalsForDay(ctx, dayStart, dayEnd)
}

// BuildSummary assembles a SentimentSummary from per-source stats. The
// overall average is the article-weighted mean of the source averages, which
// equals the arithmetic mean over all scored articles. Zero scored articles
// yield average exactly 0, not NaN: snapshot consumers rely on that default.
func BuildSummary(bySource []models.SourceSentiment) *models.SentimentSummary {
	summary := &models.SentimentSummary{
		BySource: make([]models.SourceSentiment, 0, len(bySource)),
	}

	weighted := 0.0
	for _, src := range bySource {
		if src.ArticleCount <= 0 {
			continue
		}
		summary.BySource = append(summary.BySource, src)
		summary.TotalArticles += src.ArticleCount
		weighted += src.AverageSentiment * float64(src.ArticleCount)
	}

	if summary.TotalArticles > 0 {
		summary.AverageSentiment = weighted / float64(summary.TotalArticles)
	}

	sort.SliceStable(summary.BySource, func(i, j int) bool {
		return summary.BySource[i].AverageSentiment > summary.BySource[j].AverageSentiment
	})

	return summary
}

// DayStats is the statistical aggregate of one day's signal set
type DayStats struct {
	AvgSentiment            float64
	MinSentiment            *float64
	MaxSentiment            *float64
	SignalCount             int
	TotalVolume             *decimal.Decimal
	VolumeWeightedSentiment *float64
}

// ComputeDayStats aggregates a signal set into daily statistics.
//
// Scores: mean/min/max over present scores only; an empty set yields
// average 0 with nil min/max. Volume: sum over signals that carry a
// parsable volume, nil when none do. Volume-weighted sentiment:
// sum(score*volume)/sum(volume) over signals with a present score and a
// positive volume, nil when that denominator is not positive.
func ComputeDayStats(signals []models.Signal) DayStats {
	var result DayStats

	scores := make([]float64, 0, len(signals))
	totalVolume := decimal.Zero
	haveVolume := false
	weightedSum := decimal.Zero
	weightDenom := decimal.Zero

	for i := range signals {
		sig := &signals[i]
		volume := ParseNullableDecimal(sig.Volume)

		if sig.SentimentScore != nil {
			scores = append(scores, *sig.SentimentScore)
		}
		if volume != nil {
			totalVolume = totalVolume.Add(*volume)
			haveVolume = true
		}
		if sig.SentimentScore != nil && volume != nil && volume.IsPositive() {
			weightedSum = weightedSum.Add(volume.Mul(decimal.NewFromFloat(*sig.SentimentScore)))
			weightDenom = weightDenom.Add(*volume)
		}
	}

	result.SignalCount = len(scores)

	if len(scores) > 0 {
		mean, _ := stats.Mean(scores)
		min, _ := stats.Min(scores)
		max, _ := stats.Max(scores)
		result.AvgSentiment = mean
		result.MinSentiment = &min
		result.MaxSentiment = &max
	}

	if haveVolume {
		result.TotalVolume = &totalVolume
	}

	if weightDenom.IsPositive() {
		vw := models.ToFloat64(weightedSum.Div(weightDenom))
		result.VolumeWeightedSentiment = &vw
	}

	return result
}

// ParseNullableFloat converts a textual numeric from the storage layer into
// a nullable float. Absent or unparsable input stays nil, never zero, so the
// distinction between "observed zero" and "unknown" survives aggregation.
func ParseNullableFloat(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	value, err := strconv.ParseFloat(*raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

// ParseNullableDecimal is ParseNullableFloat for exact decimal arithmetic
func ParseNullableDecimal(raw *string) *decimal.Decimal {
	if raw == nil {
		return nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil
	}
	return &value
}
