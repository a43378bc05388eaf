package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/internal/aggregation"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/metrics"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// SignalSource provides the day's signal set
type SignalSource interface {
	SignalsForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Signal, error)
}

// Store persists aggregate rows
type Store interface {
	Upsert(ctx context.Context, row *models.AssetAggregationRow) error
}

// DateLock serializes whole-date generation across processes
type DateLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context)
}

// Generator materializes one calendar date into a global aggregate row plus
// one row per asset symbol observed that day. Day boundaries are UTC.
// Generation is idempotent: the store upserts by (date, symbol).
type Generator struct {
	signals   SignalSource
	store     Store
	lockFor   func(date time.Time) DateLock // optional, nil without Redis
	telemetry *metrics.BufferedMetrics
	now       func() time.Time
}

// NewGenerator creates new snapshot generator. lockFor and telemetry may
// be nil.
func NewGenerator(signals SignalSource, store Store, lockFor func(time.Time) DateLock, telemetry *metrics.BufferedMetrics) *Generator {
	return &Generator{
		signals:   signals,
		store:     store,
		lockFor:   lockFor,
		telemetry: telemetry,
		now:       time.Now,
	}
}

// DayWindow returns the UTC [start, end) window of date's calendar day
func DayWindow(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// GenerateForDate computes and stores all aggregate rows for one calendar
// date. A failing asset row does not abort the global row or its siblings;
// partial progress is reported through the run result.
func (g *Generator) GenerateForDate(ctx context.Context, date time.Time) (*models.SnapshotRunResult, error) {
	started := g.now()
	dayStart, dayEnd := DayWindow(date)

	if g.lockFor != nil {
		lock := g.lockFor(dayStart)
		acquired, err := lock.TryAcquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire snapshot lock: %w", err)
		}
		if !acquired {
			return nil, fmt.Errorf("snapshot generation for %s already in progress", dayStart.Format("2006-01-02"))
		}
		defer lock.Release(ctx)
	}

	signals, err := g.signals.SignalsForDay(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load signals for %s: %w", dayStart.Format("2006-01-02"), err)
	}

	result := &models.SnapshotRunResult{Date: dayStart}

	// Global row over the full signal set
	globalRow := g.buildRow(dayStart, nil, aggregation.ComputeDayStats(signals))
	if err := g.store.Upsert(ctx, &globalRow); err != nil {
		logger.Error("failed to write global aggregation row",
			zap.Time("date", dayStart),
			zap.Error(err),
		)
		result.FailedAssets = append(result.FailedAssets, models.GlobalAssetSymbol)
	} else {
		result.GlobalRowWritten = true
	}

	// One row per asset symbol present in the day's data
	for _, symbol := range assetSymbols(signals) {
		stats := aggregation.ComputeDayStats(filterBySymbol(signals, symbol))
		row := g.buildRow(dayStart, &symbol, stats)

		if err := g.store.Upsert(ctx, &row); err != nil {
			logger.Error("failed to write asset aggregation row",
				zap.Time("date", dayStart),
				zap.String("asset", symbol),
				zap.Error(err),
			)
			result.FailedAssets = append(result.FailedAssets, symbol)
			continue
		}
		result.AssetRowsWritten++
	}

	result.Duration = g.now().Sub(started)

	logger.Info("snapshot generated",
		zap.Time("date", dayStart),
		zap.Int("signals", len(signals)),
		zap.Int("asset_rows", result.AssetRowsWritten),
		zap.Bool("global_row", result.GlobalRowWritten),
		zap.Int("failed", len(result.FailedAssets)),
		zap.Duration("duration", result.Duration),
	)

	if g.telemetry != nil {
		_ = g.telemetry.Add(&metrics.SnapshotRunMetric{
			Timestamp:        started,
			SnapshotDate:     dayStart,
			AssetRowsWritten: result.AssetRowsWritten,
			GlobalRowWritten: result.GlobalRowWritten,
			FailedAssets:     len(result.FailedAssets),
			DurationMs:       int(result.Duration.Milliseconds()),
		})
	}

	return result, nil
}

func (g *Generator) buildRow(date time.Time, symbol *string, stats aggregation.DayStats) models.AssetAggregationRow {
	return models.AssetAggregationRow{
		SnapshotDate:            date,
		AssetSymbol:             symbol,
		AvgSentiment:            stats.AvgSentiment,
		MinSentiment:            stats.MinSentiment,
		MaxSentiment:            stats.MaxSentiment,
		SignalCount:             stats.SignalCount,
		TotalVolume:             stats.TotalVolume,
		VolumeWeightedSentiment: stats.VolumeWeightedSentiment,
		GeneratedAt:             g.now().UTC(),
	}
}

// assetSymbols returns the distinct non-global symbols, sorted for
// deterministic write order
func assetSymbols(signals []models.Signal) []string {
	seen := make(map[string]struct{})
	for i := range signals {
		if signals[i].AssetSymbol != nil {
			seen[*signals[i].AssetSymbol] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func filterBySymbol(signals []models.Signal, symbol string) []models.Signal {
	filtered := make([]models.Signal, 0)
	for i := range signals {
		if signals[i].AssetSymbol != nil && *signals[i].AssetSymbol == symbol {
			filtered = append(filtered, signals[i])
		}
	}
	return filtered
}
