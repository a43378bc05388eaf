package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lumenpulse/pulse-analytics/internal/aggregation"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// Repository persists daily aggregate rows keyed by (date, asset symbol).
// The global row is stored under models.GlobalAssetSymbol so the key stays
// NOT NULL and ON CONFLICT remains a single atomic statement.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new snapshot repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes one aggregate row. Re-generating a date overwrites the
// previous values for that key; it never duplicates and never merges.
func (r *Repository) Upsert(ctx context.Context, row *models.AssetAggregationRow) error {
	symbol := models.GlobalAssetSymbol
	if row.AssetSymbol != nil {
		symbol = *row.AssetSymbol
	}

	var totalVolume *string
	if row.TotalVolume != nil {
		s := row.TotalVolume.String()
		totalVolume = &s
	}

	query := `
		INSERT INTO asset_aggregations (
			snapshot_date, asset_symbol, avg_sentiment, min_sentiment, max_sentiment,
			signal_count, total_volume, volume_weighted_sentiment, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
		ON CONFLICT (snapshot_date, asset_symbol) DO UPDATE SET
			avg_sentiment = EXCLUDED.avg_sentiment,
			min_sentiment = EXCLUDED.min_sentiment,
			max_sentiment = EXCLUDED.max_sentiment,
			signal_count = EXCLUDED.signal_count,
			total_volume = EXCLUDED.total_volume,
			volume_weighted_sentiment = EXCLUDED.volume_weighted_sentiment,
			generated_at = EXCLUDED.generated_at
	`

	if _, err := r.db.ExecContext(ctx, query,
		row.SnapshotDate,
		symbol,
		row.AvgSentiment,
		row.MinSentiment,
		row.MaxSentiment,
		row.SignalCount,
		totalVolume,
		row.VolumeWeightedSentiment,
		row.GeneratedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert aggregation row (%s, %s): %w",
			row.SnapshotDate.Format("2006-01-02"), symbol, err)
	}

	return nil
}

// FindByDate returns all aggregate rows for one date, global row first
func (r *Repository) FindByDate(ctx context.Context, date time.Time) ([]models.AssetAggregationRow, error) {
	query := `
		SELECT snapshot_date, asset_symbol, avg_sentiment, min_sentiment, max_sentiment,
		       signal_count, total_volume::text AS total_volume, volume_weighted_sentiment, generated_at
		FROM asset_aggregations
		WHERE snapshot_date = $1
		ORDER BY (asset_symbol = '*') DESC, asset_symbol
	`
	return r.selectRows(ctx, query, date)
}

// GlobalHistory returns the global rows for the most recent days, oldest
// first, for trend computation
func (r *Repository) GlobalHistory(ctx context.Context, days int) ([]models.AssetAggregationRow, error) {
	query := `
		SELECT snapshot_date, asset_symbol, avg_sentiment, min_sentiment, max_sentiment,
		       signal_count, total_volume::text AS total_volume, volume_weighted_sentiment, generated_at
		FROM asset_aggregations
		WHERE asset_symbol = '*'
		ORDER BY snapshot_date DESC
		LIMIT $1
	`

	rows, err := r.selectRows(ctx, query, days)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

type aggregationScan struct {
	SnapshotDate            time.Time `db:"snapshot_date"`
	AssetSymbol             string    `db:"asset_symbol"`
	AvgSentiment            float64   `db:"avg_sentiment"`
	MinSentiment            *float64  `db:"min_sentiment"`
	MaxSentiment            *float64  `db:"max_sentiment"`
	SignalCount             int       `db:"signal_count"`
	TotalVolume             *string   `db:"total_volume"`
	VolumeWeightedSentiment *float64  `db:"volume_weighted_sentiment"`
	GeneratedAt             time.Time `db:"generated_at"`
}

func (r *Repository) selectRows(ctx context.Context, query string, args ...interface{}) ([]models.AssetAggregationRow, error) {
	scans := make([]aggregationScan, 0)
	if err := r.db.SelectContext(ctx, &scans, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query aggregation rows: %w", err)
	}

	rows := make([]models.AssetAggregationRow, 0, len(scans))
	for i := range scans {
		rows = append(rows, scans[i].toModel())
	}
	return rows, nil
}

func (s *aggregationScan) toModel() models.AssetAggregationRow {
	row := models.AssetAggregationRow{
		SnapshotDate:            s.SnapshotDate,
		AvgSentiment:            s.AvgSentiment,
		MinSentiment:            s.MinSentiment,
		MaxSentiment:            s.MaxSentiment,
		SignalCount:             s.SignalCount,
		VolumeWeightedSentiment: s.VolumeWeightedSentiment,
		GeneratedAt:             s.GeneratedAt,
	}
	if s.AssetSymbol != models.GlobalAssetSymbol {
		symbol := s.AssetSymbol
		row.AssetSymbol = &symbol
	}
	row.TotalVolume = aggregation.ParseNullableDecimal(s.TotalVolume)
	return row
}
