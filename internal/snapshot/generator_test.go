package snapshot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

func init() {
	_ = logger.Init("error", "")
}

var day = time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	signals map[string][]models.Signal // day -> signals
	err     error
}

func (fs *fakeSource) SignalsForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Signal, error) {
	if fs.err != nil {
		return nil, fs.err
	}
	return fs.signals[dayStart.Format("2006-01-02")], nil
}

type fakeStore struct {
	rows       map[string]models.AssetAggregationRow // "date|symbol" -> row
	failSymbol map[string]bool
	writes     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:       make(map[string]models.AssetAggregationRow),
		failSymbol: make(map[string]bool),
	}
}

func (fs *fakeStore) key(row *models.AssetAggregationRow) string {
	symbol := models.GlobalAssetSymbol
	if row.AssetSymbol != nil {
		symbol = *row.AssetSymbol
	}
	return row.SnapshotDate.Format("2006-01-02") + "|" + symbol
}

func (fs *fakeStore) Upsert(ctx context.Context, row *models.AssetAggregationRow) error {
	symbol := models.GlobalAssetSymbol
	if row.AssetSymbol != nil {
		symbol = *row.AssetSymbol
	}
	if fs.failSymbol[symbol] {
		return fmt.Errorf("write failed for %s", symbol)
	}
	fs.writes++
	fs.rows[fs.key(row)] = *row
	return nil
}

func onchain(symbol string, score *float64, volume *string, at time.Time) models.Signal {
	return models.Signal{
		AssetSymbol:    &symbol,
		Source:         "horizon",
		SentimentScore: score,
		Volume:         volume,
		ObservedAt:     at,
	}
}

func articleSignal(score *float64, at time.Time) models.Signal {
	return models.Signal{
		Source:         "coindesk",
		SentimentScore: score,
		ObservedAt:     at,
	}
}

func daySignals() []models.Signal {
	noon := day.Add(12 * time.Hour)
	return []models.Signal{
		articleSignal(models.Float64Ptr(0.6), noon),
		articleSignal(models.Float64Ptr(0.2), noon),
		articleSignal(nil, noon),
		onchain("XLM", models.Float64Ptr(0.4), models.StringPtr("1000"), noon),
		onchain("XLM", models.Float64Ptr(-0.2), models.StringPtr("3000"), noon),
		onchain("USDC", nil, models.StringPtr("500"), noon),
	}
}

func TestGenerator_GenerateForDate(t *testing.T) {
	source := &fakeSource{signals: map[string][]models.Signal{
		"2026-08-29": daySignals(),
	}}
	store := newFakeStore()

	result, err := NewGenerator(source, store, nil, nil).GenerateForDate(context.Background(), day.Add(15*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, day, result.Date)
	assert.True(t, result.GlobalRowWritten)
	assert.Equal(t, 2, result.AssetRowsWritten)
	assert.Empty(t, result.FailedAssets)

	global := store.rows["2026-08-29|*"]
	assert.Equal(t, 4, global.SignalCount)
	assert.InDelta(t, 0.25, global.AvgSentiment, 1e-9) // (0.6+0.2+0.4-0.2)/4
	require.NotNil(t, global.MinSentiment)
	assert.InDelta(t, -0.2, *global.MinSentiment, 1e-9)
	require.NotNil(t, global.MaxSentiment)
	assert.InDelta(t, 0.6, *global.MaxSentiment, 1e-9)
	require.NotNil(t, global.TotalVolume)
	assert.Equal(t, "4500", global.TotalVolume.String())
	// (0.4*1000 + -0.2*3000) / 4000 = -0.05
	require.NotNil(t, global.VolumeWeightedSentiment)
	assert.InDelta(t, -0.05, *global.VolumeWeightedSentiment, 1e-9)

	xlm := store.rows["2026-08-29|XLM"]
	assert.Equal(t, 2, xlm.SignalCount)
	assert.InDelta(t, 0.1, xlm.AvgSentiment, 1e-9)
	require.NotNil(t, xlm.TotalVolume)
	assert.Equal(t, "4000", xlm.TotalVolume.String())

	usdc := store.rows["2026-08-29|USDC"]
	assert.Equal(t, 0, usdc.SignalCount)
	assert.Equal(t, 0.0, usdc.AvgSentiment)
	assert.Nil(t, usdc.MinSentiment)
	assert.Nil(t, usdc.MaxSentiment)
	require.NotNil(t, usdc.TotalVolume)
	assert.Equal(t, "500", usdc.TotalVolume.String())
	assert.Nil(t, usdc.VolumeWeightedSentiment, "no scored signal with volume, weighting undefined")
}

func TestGenerator_EmptyDay(t *testing.T) {
	source := &fakeSource{signals: map[string][]models.Signal{}}
	store := newFakeStore()

	result, err := NewGenerator(source, store, nil, nil).GenerateForDate(context.Background(), day)
	require.NoError(t, err)

	assert.True(t, result.GlobalRowWritten)
	assert.Equal(t, 0, result.AssetRowsWritten)

	global := store.rows["2026-08-29|*"]
	assert.Equal(t, 0, global.SignalCount)
	assert.Equal(t, 0.0, global.AvgSentiment)
	assert.Nil(t, global.MinSentiment)
	assert.Nil(t, global.TotalVolume)
	assert.Nil(t, global.VolumeWeightedSentiment)
}

func TestGenerator_Idempotent(t *testing.T) {
	source := &fakeSource{signals: map[string][]models.Signal{
		"2026-08-29": daySignals(),
	}}
	store := newFakeStore()
	gen := NewGenerator(source, store, nil, nil)

	_, err := gen.GenerateForDate(context.Background(), day)
	require.NoError(t, err)
	firstRows := make(map[string]models.AssetAggregationRow, len(store.rows))
	for k, v := range store.rows {
		firstRows[k] = v
	}

	_, err = gen.GenerateForDate(context.Background(), day)
	require.NoError(t, err)

	assert.Len(t, store.rows, len(firstRows), "re-run must overwrite, not duplicate")
	for key, row := range store.rows {
		prev := firstRows[key]
		assert.Equal(t, prev.SignalCount, row.SignalCount, key)
		assert.InDelta(t, prev.AvgSentiment, row.AvgSentiment, 1e-12, key)
	}
}

func TestGenerator_RerunTakesSecondValues(t *testing.T) {
	source := &fakeSource{signals: map[string][]models.Signal{
		"2026-08-29": daySignals(),
	}}
	store := newFakeStore()
	gen := NewGenerator(source, store, nil, nil)

	_, err := gen.GenerateForDate(context.Background(), day)
	require.NoError(t, err)

	// Materially change the article set and regenerate
	source.signals["2026-08-29"] = []models.Signal{
		articleSignal(models.Float64Ptr(-1), day.Add(time.Hour)),
	}
	_, err = gen.GenerateForDate(context.Background(), day)
	require.NoError(t, err)

	global := store.rows["2026-08-29|*"]
	assert.Equal(t, 1, global.SignalCount, "second run values must fully replace the first")
	assert.InDelta(t, -1, global.AvgSentiment, 1e-12)
	assert.Nil(t, global.TotalVolume)
	// Old per-asset rows for the date remain in the store untouched by design:
	// the upsert contract is per (date, symbol) key, not per date
}

func TestGenerator_AssetFailureDoesNotAbortSiblings(t *testing.T) {
	source := &fakeSource{signals: map[string][]models.Signal{
		"2026-08-29": daySignals(),
	}}
	store := newFakeStore()
	store.failSymbol["XLM"] = true

	result, err := NewGenerator(source, store, nil, nil).GenerateForDate(context.Background(), day)
	require.NoError(t, err)

	assert.True(t, result.GlobalRowWritten)
	assert.Equal(t, 1, result.AssetRowsWritten)
	assert.Equal(t, []string{"XLM"}, result.FailedAssets)
	_, ok := store.rows["2026-08-29|USDC"]
	assert.True(t, ok, "sibling asset must still be written")
}

func TestGenerator_GlobalFailureStillWritesAssets(t *testing.T) {
	source := &fakeSource{signals: map[string][]models.Signal{
		"2026-08-29": daySignals(),
	}}
	store := newFakeStore()
	store.failSymbol[models.GlobalAssetSymbol] = true

	result, err := NewGenerator(source, store, nil, nil).GenerateForDate(context.Background(), day)
	require.NoError(t, err)

	assert.False(t, result.GlobalRowWritten)
	assert.Equal(t, 2, result.AssetRowsWritten)
	assert.Contains(t, result.FailedAssets, models.GlobalAssetSymbol)
	assert.False(t, result.Failed(), "partial progress is not a failed run")
}

type fakeLock struct {
	busy     bool
	acquired int
	released int
}

func (fl *fakeLock) TryAcquire(ctx context.Context) (bool, error) {
	if fl.busy {
		return false, nil
	}
	fl.acquired++
	return true, nil
}

func (fl *fakeLock) Release(ctx context.Context) {
	fl.released++
}

func TestGenerator_DateLock(t *testing.T) {
	source := &fakeSource{signals: map[string][]models.Signal{}}
	store := newFakeStore()

	lock := &fakeLock{}
	gen := NewGenerator(source, store, func(time.Time) DateLock { return lock }, nil)

	_, err := gen.GenerateForDate(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, lock.acquired)
	assert.Equal(t, 1, lock.released)

	lock.busy = true
	_, err = gen.GenerateForDate(context.Background(), day)
	assert.Error(t, err, "busy date lock must reject the run")
	assert.Equal(t, 0, store.writes-len(store.rows), "no writes while locked out")
}
