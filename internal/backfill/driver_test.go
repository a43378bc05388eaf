package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

func init() {
	_ = logger.Init("error", "")
}

type fakeGenerator struct {
	calls   []time.Time
	failOn  map[string]error
	emptyOn map[string]bool // dates whose run writes nothing
	rowsPer int
}

func (fg *fakeGenerator) GenerateForDate(ctx context.Context, date time.Time) (*models.SnapshotRunResult, error) {
	fg.calls = append(fg.calls, date)
	key := date.Format("2006-01-02")
	if err, ok := fg.failOn[key]; ok {
		return nil, err
	}
	if fg.emptyOn[key] {
		return &models.SnapshotRunResult{
			Date:         date,
			FailedAssets: []string{models.GlobalAssetSymbol},
		}, nil
	}
	return &models.SnapshotRunResult{
		Date:             date,
		AssetRowsWritten: fg.rowsPer,
		GlobalRowWritten: true,
	}, nil
}

type fakeRefresher struct {
	calls  int
	volume decimal.Decimal
	err    error
}

func (fr *fakeRefresher) Refresh(ctx context.Context, from, to time.Time) (RefreshResult, error) {
	fr.calls++
	if fr.err != nil {
		return RefreshResult{}, fr.err
	}
	return RefreshResult{SignalsUpserted: 3, TotalVolume: fr.volume}, nil
}

type fakeCounter struct {
	calls  int
	perDay int
	err    error
}

func (fc *fakeCounter) CountArticlesInWindow(ctx context.Context, from, to time.Time) (int, error) {
	fc.calls++
	if fc.err != nil {
		return 0, fc.err
	}
	return fc.perDay, nil
}

func newTestDriver(gen *fakeGenerator, ref *fakeRefresher, counter *fakeCounter) *Driver {
	// Avoid wrapping typed nil pointers in the interfaces: the driver's
	// nil checks must see a nil interface when no fake is supplied.
	var refresher Refresher
	if ref != nil {
		refresher = ref
	}
	var articles ArticleCounter
	if counter != nil {
		articles = counter
	}
	d := NewDriver(gen, refresher, articles, 0)
	d.now = func() time.Time {
		return time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)
	}
	d.sleep = func(ctx context.Context, dur time.Duration) {}
	return d
}

func TestDriver_WindowsOldestFirst(t *testing.T) {
	d := newTestDriver(&fakeGenerator{}, nil, nil)

	windows := d.Windows(3)
	require.Len(t, windows, 3)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), windows[0])
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), windows[1])
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), windows[2])
}

func TestDriver_Run(t *testing.T) {
	gen := &fakeGenerator{rowsPer: 2}
	ref := &fakeRefresher{volume: decimal.NewFromInt(1500)}
	counter := &fakeCounter{perDay: 4}
	d := newTestDriver(gen, ref, counter)

	summary, results, err := d.Run(context.Background(), Options{Days: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalPeriods)
	assert.Equal(t, 3, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	assert.InDelta(t, 100, summary.SuccessRate, 1e-9)
	assert.Equal(t, 12, summary.TotalArticles)
	assert.Equal(t, "4500", summary.TotalVolume.String())

	require.Len(t, results, 3)
	assert.True(t, results[0].Date.Before(results[2].Date), "oldest window first")
	assert.Equal(t, 3, ref.calls)
	assert.Equal(t, 3, counter.calls)
}

func TestDriver_DryRunPerformsNoMutations(t *testing.T) {
	gen := &fakeGenerator{}
	ref := &fakeRefresher{}
	counter := &fakeCounter{}
	d := newTestDriver(gen, ref, counter)

	summary, results, err := d.Run(context.Background(), Options{Days: 3, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalPeriods)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 0, summary.Failed)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Planned)
	}
	assert.Empty(t, gen.calls, "dry-run must not generate snapshots")
	assert.Zero(t, ref.calls, "dry-run must not hit upstream")
	assert.Zero(t, counter.calls, "dry-run must not query storage")
}

func TestDriver_WindowFailureDoesNotHalt(t *testing.T) {
	gen := &fakeGenerator{
		rowsPer: 1,
		failOn:  map[string]error{"2026-08-30": errors.New("db down")},
	}
	d := newTestDriver(gen, nil, nil)

	summary, results, err := d.Run(context.Background(), Options{Days: 3})
	require.NoError(t, err, "window failures are reported, never raised")

	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 66.666, summary.SuccessRate, 0.01)
	assert.Len(t, gen.calls, 3, "remaining windows still processed")

	assert.False(t, results[1].Succeeded)
	assert.Contains(t, results[1].FailReason, "db down")
}

func TestDriver_RefreshFailureStillSnapshots(t *testing.T) {
	gen := &fakeGenerator{rowsPer: 1}
	ref := &fakeRefresher{err: errors.New("horizon unreachable")}
	d := newTestDriver(gen, ref, nil)

	summary, _, err := d.Run(context.Background(), Options{Days: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Successful)
	assert.Len(t, gen.calls, 2)
	assert.Equal(t, "0", summary.TotalVolume.String())
}

func TestDriver_RunWithNothingWrittenIsFailure(t *testing.T) {
	gen := &fakeGenerator{emptyOn: map[string]bool{"2026-08-31": true}}
	d := newTestDriver(gen, nil, nil)

	summary, results, err := d.Run(context.Background(), Options{Days: 1})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "no aggregation rows written", results[0].FailReason)
}

func TestOptions_Validate(t *testing.T) {
	assert.Error(t, Options{Days: 0}.Validate())
	assert.Error(t, Options{Days: -5}.Validate())
	assert.NoError(t, Options{Days: 1}.Validate())
}

func TestDriver_ContextCancellation(t *testing.T) {
	gen := &fakeGenerator{rowsPer: 1}
	d := newTestDriver(gen, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := d.Run(ctx, Options{Days: 5})
	assert.ErrorIs(t, err, context.Canceled)
}
