package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// Generator produces the aggregate rows for one calendar date
type Generator interface {
	GenerateForDate(ctx context.Context, date time.Time) (*models.SnapshotRunResult, error)
}

// Refresher pulls upstream on-chain data for a window before the window is
// snapshotted
type Refresher interface {
	Refresh(ctx context.Context, from, to time.Time) (RefreshResult, error)
}

// ArticleCounter reports how many articles were published in a window
type ArticleCounter interface {
	CountArticlesInWindow(ctx context.Context, from, to time.Time) (int, error)
}

// RefreshResult reports what one ingestion refresh brought in
type RefreshResult struct {
	SignalsUpserted int
	TotalVolume     decimal.Decimal
}

// WindowResult is the outcome of one 24-hour backfill window
type WindowResult struct {
	Date       time.Time
	Planned    bool // dry-run only
	Succeeded  bool
	Articles   int
	Volume     decimal.Decimal
	AssetRows  int
	GlobalRow  bool
	FailReason string
}

// Summary aggregates a whole backfill run
type Summary struct {
	TotalPeriods  int
	Successful    int
	Failed        int
	SuccessRate   float64 // percent
	TotalArticles int
	TotalVolume   decimal.Decimal
	DryRun        bool
	Duration      time.Duration
}

// Options control one backfill invocation
type Options struct {
	Days    int
	DryRun  bool
	Verbose bool
}

// Validate checks the options before a run starts
func (o Options) Validate() error {
	if o.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", o.Days)
	}
	return nil
}

// Driver replays snapshot generation over a range of past dates, oldest
// first, one 24-hour window per calendar day. A window's failure never halts
// the remaining windows; the run reports a rate instead of being
// all-or-nothing.
type Driver struct {
	generator Generator
	refresher Refresher // optional, nil skips the ingestion step
	articles  ArticleCounter
	delay     time.Duration
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)
}

// NewDriver creates new backfill driver. refresher may be nil. delay is the
// pause between windows to respect upstream rate limits.
func NewDriver(generator Generator, refresher Refresher, articles ArticleCounter, delay time.Duration) *Driver {
	return &Driver{
		generator: generator,
		refresher: refresher,
		articles:  articles,
		delay:     delay,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Windows returns the UTC day-start of each window, oldest first, ending at
// today's day
func (d *Driver) Windows(days int) []time.Time {
	now := d.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	windows := make([]time.Time, 0, days)
	for offset := days - 1; offset >= 0; offset-- {
		windows = append(windows, today.AddDate(0, 0, -offset))
	}
	return windows
}

// Run executes the backfill and returns the run summary. Setup and
// validation errors are returned; window failures are counted, not
// propagated.
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, []WindowResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if opts.Days > 365 {
		logger.Warn("backfilling more than a year may take a very long time",
			zap.Int("days", opts.Days),
		)
	}

	started := d.now()
	windows := d.Windows(opts.Days)

	logger.Info("starting historical backfill",
		zap.Int("days", opts.Days),
		zap.Bool("dry_run", opts.DryRun),
		zap.Time("first_window", windows[0]),
		zap.Time("last_window", windows[len(windows)-1]),
	)

	results := make([]WindowResult, 0, len(windows))
	for i, date := range windows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		results = append(results, d.processWindow(ctx, date, opts))

		// No delay after the final window, and none in dry-run
		if !opts.DryRun && d.delay > 0 && i < len(windows)-1 {
			d.sleep(ctx, d.delay)
		}
	}

	summary := buildSummary(results, opts.DryRun)
	summary.Duration = d.now().Sub(started)

	logger.Info("backfill finished",
		zap.Int("total_periods", summary.TotalPeriods),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Float64("success_rate_pct", summary.SuccessRate),
		zap.Int("total_articles", summary.TotalArticles),
		zap.String("total_volume", summary.TotalVolume.String()),
		zap.Duration("duration", summary.Duration),
	)

	return summary, results, nil
}

func (d *Driver) processWindow(ctx context.Context, date time.Time, opts Options) WindowResult {
	windowEnd := date.Add(24 * time.Hour)
	result := WindowResult{Date: date}

	if opts.DryRun {
		logger.Info("would process window",
			zap.Time("from", date),
			zap.Time("to", windowEnd),
		)
		result.Planned = true
		return result
	}

	if opts.Verbose {
		logger.Debug("processing window",
			zap.Time("from", date),
			zap.Time("to", windowEnd),
		)
	}

	// Ingestion refresh is best-effort: existing stored data can still be
	// snapshotted when upstream is down
	if d.refresher != nil {
		refresh, err := d.refresher.Refresh(ctx, date, windowEnd)
		if err != nil {
			logger.Warn("ingestion refresh failed, snapshotting stored data only",
				zap.Time("window", date),
				zap.Error(err),
			)
		} else {
			result.Volume = refresh.TotalVolume
			if opts.Verbose {
				logger.Debug("ingestion refresh complete",
					zap.Time("window", date),
					zap.Int("signals", refresh.SignalsUpserted),
					zap.String("volume", refresh.TotalVolume.String()),
				)
			}
		}
	}

	if d.articles != nil {
		count, err := d.articles.CountArticlesInWindow(ctx, date, windowEnd)
		if err != nil {
			logger.Warn("failed to count window articles",
				zap.Time("window", date),
				zap.Error(err),
			)
		} else {
			result.Articles = count
		}
	}

	run, err := d.generator.GenerateForDate(ctx, date)
	if err != nil {
		logger.Error("window snapshot failed",
			zap.Time("window", date),
			zap.Error(err),
		)
		result.FailReason = err.Error()
		return result
	}

	result.AssetRows = run.AssetRowsWritten
	result.GlobalRow = run.GlobalRowWritten

	// Partial progress counts as success; only a run that wrote nothing at
	// all is a failed window
	if run.Failed() {
		result.FailReason = "no aggregation rows written"
		return result
	}

	result.Succeeded = true
	logger.Info("window processed",
		zap.Time("window", date),
		zap.Int("articles", result.Articles),
		zap.Int("asset_rows", result.AssetRows),
		zap.Bool("global_row", result.GlobalRow),
	)
	return result
}

func buildSummary(results []WindowResult, dryRun bool) *Summary {
	summary := &Summary{
		TotalPeriods: len(results),
		DryRun:       dryRun,
		TotalVolume:  decimal.Zero,
	}

	for i := range results {
		r := &results[i]
		if r.Succeeded {
			summary.Successful++
		} else if !r.Planned {
			summary.Failed++
		}
		summary.TotalArticles += r.Articles
		summary.TotalVolume = summary.TotalVolume.Add(r.Volume)
	}

	if summary.TotalPeriods > 0 && !dryRun {
		summary.SuccessRate = float64(summary.Successful) / float64(summary.TotalPeriods) * 100
	}
	return summary
}
