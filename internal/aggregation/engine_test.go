package aggregation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

func TestBuildSummary_Empty(t *testing.T) {
	summary := BuildSummary(nil)

	assert.Equal(t, 0.0, summary.AverageSentiment)
	assert.Equal(t, 0, summary.TotalArticles)
	assert.Empty(t, summary.BySource)
}

func TestBuildSummary_TwoSources(t *testing.T) {
	// coindesk: 0.6, 0.7 / cointelegraph: 0.1, 0.2, 0.3, 0.5
	summary := BuildSummary([]models.SourceSentiment{
		{Source: "cointelegraph", AverageSentiment: 0.275, ArticleCount: 4},
		{Source: "coindesk", AverageSentiment: 0.65, ArticleCount: 2},
	})

	assert.Equal(t, 6, summary.TotalArticles)
	assert.InDelta(t, 0.4, summary.AverageSentiment, 1e-9)

	require.Len(t, summary.BySource, 2)
	assert.Equal(t, "coindesk", summary.BySource[0].Source)
	assert.InDelta(t, 0.65, summary.BySource[0].AverageSentiment, 1e-9)
	assert.Equal(t, 2, summary.BySource[0].ArticleCount)
	assert.Equal(t, "cointelegraph", summary.BySource[1].Source)
	assert.InDelta(t, 0.275, summary.BySource[1].AverageSentiment, 1e-9)
	assert.Equal(t, 4, summary.BySource[1].ArticleCount)
}

func TestBuildSummary_DropsEmptySources(t *testing.T) {
	summary := BuildSummary([]models.SourceSentiment{
		{Source: "coindesk", AverageSentiment: 0.5, ArticleCount: 1},
		{Source: "reuters", AverageSentiment: 0, ArticleCount: 0},
	})

	require.Len(t, summary.BySource, 1)
	assert.Equal(t, "coindesk", summary.BySource[0].Source)
	assert.Equal(t, 1, summary.TotalArticles)
}

func signal(symbol string, score *float64, volume *string) models.Signal {
	var sym *string
	if symbol != "" {
		sym = &symbol
	}
	return models.Signal{
		AssetSymbol:    sym,
		Source:         "horizon",
		SentimentScore: score,
		Volume:         volume,
		ObservedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestComputeDayStats_Empty(t *testing.T) {
	result := ComputeDayStats(nil)

	assert.Equal(t, 0.0, result.AvgSentiment)
	assert.Nil(t, result.MinSentiment)
	assert.Nil(t, result.MaxSentiment)
	assert.Equal(t, 0, result.SignalCount)
	assert.Nil(t, result.TotalVolume)
	assert.Nil(t, result.VolumeWeightedSentiment)
}

func TestComputeDayStats_ScoresOnly(t *testing.T) {
	result := ComputeDayStats([]models.Signal{
		signal("", models.Float64Ptr(0.2), nil),
		signal("", models.Float64Ptr(-0.4), nil),
		signal("", nil, nil), // unscored, must not pull the mean toward zero
		signal("", models.Float64Ptr(0.8), nil),
	})

	assert.Equal(t, 3, result.SignalCount)
	assert.InDelta(t, 0.2, result.AvgSentiment, 1e-9)
	require.NotNil(t, result.MinSentiment)
	assert.InDelta(t, -0.4, *result.MinSentiment, 1e-9)
	require.NotNil(t, result.MaxSentiment)
	assert.InDelta(t, 0.8, *result.MaxSentiment, 1e-9)
	assert.Nil(t, result.TotalVolume)
	assert.Nil(t, result.VolumeWeightedSentiment)
}

func TestComputeDayStats_VolumeWeighted(t *testing.T) {
	result := ComputeDayStats([]models.Signal{
		signal("XLM", models.Float64Ptr(0.5), models.StringPtr("100")),
		signal("XLM", models.Float64Ptr(-0.5), models.StringPtr("300")),
		signal("XLM", nil, models.StringPtr("50")), // volume counts, weighting does not
	})

	assert.Equal(t, 2, result.SignalCount)
	require.NotNil(t, result.TotalVolume)
	assert.Equal(t, "450", result.TotalVolume.String())

	// (0.5*100 + -0.5*300) / 400 = -0.25
	require.NotNil(t, result.VolumeWeightedSentiment)
	assert.InDelta(t, -0.25, *result.VolumeWeightedSentiment, 1e-9)
}

func TestComputeDayStats_ZeroVolumeExcludedFromWeighting(t *testing.T) {
	result := ComputeDayStats([]models.Signal{
		signal("XLM", models.Float64Ptr(0.9), models.StringPtr("0")),
	})

	require.NotNil(t, result.TotalVolume)
	assert.True(t, result.TotalVolume.IsZero())
	assert.Nil(t, result.VolumeWeightedSentiment, "weighted sentiment undefined when total weight is zero")
}

func TestComputeDayStats_UnparsableVolumeStaysNull(t *testing.T) {
	result := ComputeDayStats([]models.Signal{
		signal("XLM", models.Float64Ptr(0.3), models.StringPtr("n/a")),
	})

	assert.Nil(t, result.TotalVolume, "unparsable volume must not become zero")
	assert.Nil(t, result.VolumeWeightedSentiment)
	assert.Equal(t, 1, result.SignalCount)
}

func TestParseNullableFloat(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want *float64
	}{
		{"nil input", nil, nil},
		{"plain number", models.StringPtr("42.5"), models.Float64Ptr(42.5)},
		{"negative", models.StringPtr("-0.75"), models.Float64Ptr(-0.75)},
		{"scientific", models.StringPtr("1e3"), models.Float64Ptr(1000)},
		{"garbage", models.StringPtr("unknown"), nil},
		{"empty string", models.StringPtr(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNullableFloat(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, math.Abs(*got-*tt.want) < 1e-12)
		})
	}
}
