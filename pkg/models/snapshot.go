package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GlobalAssetSymbol is the storage sentinel for the global aggregate row.
// Postgres unique indexes do not collide on NULL, so the global row is
// stored under this symbol and mapped back to a nil AssetSymbol at the
// model boundary.
const GlobalAssetSymbol = "*"

// Signal is one scored unit of input to daily aggregation: an article
// (global, no volume) or an on-chain observation (per-asset, with volume).
// Volume arrives as the storage layer's textual numeric and is parsed by
// the aggregation engine; absent or unparsable volume must stay nil, not 0.
type Signal struct {
	AssetSymbol    *string   `db:"asset_symbol"`
	Source         string    `db:"source"`
	SentimentScore *float64  `db:"sentiment_score"`
	Volume         *string   `db:"volume"`
	ObservedAt     time.Time `db:"observed_at"`
}

// Validate checks required fields on an ingested on-chain signal
func (s *Signal) Validate() error {
	if s.Source == "" {
		return fmt.Errorf("signal source is required")
	}
	if s.ObservedAt.IsZero() {
		return fmt.Errorf("signal observed_at is required")
	}
	if s.SentimentScore != nil && (*s.SentimentScore < -1 || *s.SentimentScore > 1) {
		return fmt.Errorf("signal sentiment %.4f out of range [-1, 1]", *s.SentimentScore)
	}
	return nil
}

// AssetAggregationRow is one persisted daily aggregate: either the global
// row (AssetSymbol nil) or a per-asset row. Keyed by (date, symbol) in the
// snapshot store; regeneration overwrites, never duplicates.
type AssetAggregationRow struct {
	SnapshotDate            time.Time        `json:"snapshot_date" db:"snapshot_date"`
	AssetSymbol             *string          `json:"asset_symbol,omitempty" db:"asset_symbol"`
	AvgSentiment            float64          `json:"avg_sentiment" db:"avg_sentiment"`
	MinSentiment            *float64         `json:"min_sentiment,omitempty" db:"min_sentiment"`
	MaxSentiment            *float64         `json:"max_sentiment,omitempty" db:"max_sentiment"`
	SignalCount             int              `json:"signal_count" db:"signal_count"`
	TotalVolume             *decimal.Decimal `json:"total_volume,omitempty" db:"total_volume"`
	VolumeWeightedSentiment *float64         `json:"volume_weighted_sentiment,omitempty" db:"volume_weighted_sentiment"`
	GeneratedAt             time.Time        `json:"generated_at" db:"generated_at"`
}

// IsGlobal reports whether this is the all-assets aggregate row
func (r *AssetAggregationRow) IsGlobal() bool {
	return r.AssetSymbol == nil
}

// SnapshotRunResult reports the outcome of one generation run for one date.
// Telemetry only, not domain data.
type SnapshotRunResult struct {
	Date             time.Time     `json:"date"`
	AssetRowsWritten int           `json:"asset_rows_written"`
	GlobalRowWritten bool          `json:"global_row_written"`
	FailedAssets     []string      `json:"failed_assets,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// Failed reports whether the run made no progress at all
func (r *SnapshotRunResult) Failed() bool {
	return !r.GlobalRowWritten && r.AssetRowsWritten == 0 && len(r.FailedAssets) > 0
}
