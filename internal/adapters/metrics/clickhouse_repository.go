package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

// Columns per telemetry table, in metrics.Metric Values() order
var tableColumns = map[string][]string{
	"pipeline_run_metrics": {
		"timestamp", "batch_size", "scored", "failed", "duration_ms",
	},
	"snapshot_run_metrics": {
		"timestamp", "snapshot_date", "asset_rows_written",
		"global_row_written", "failed_assets", "duration_ms",
	},
}

// ClickHouseRepository implements Repository for ClickHouse
type ClickHouseRepository struct {
	db *sqlx.DB
}

// NewClickHouseRepository creates new ClickHouse repository
func NewClickHouseRepository(db *sqlx.DB) *ClickHouseRepository {
	return &ClickHouseRepository{db: db}
}

// InsertBatch inserts batch of telemetry rows into a ClickHouse table
func (r *ClickHouseRepository) InsertBatch(ctx context.Context, tableName string, values [][]interface{}) error {
	if len(values) == 0 {
		return nil
	}

	columns, ok := tableColumns[tableName]
	if !ok {
		return fmt.Errorf("unknown telemetry table %q", tableName)
	}

	placeholders := make([]string, len(values))
	args := make([]interface{}, 0, len(values)*len(columns))

	for i, row := range values {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has wrong column count: expected %d, got %d", i, len(columns), len(row))
		}

		valuePlaceholders := make([]string, len(columns))
		for j := range row {
			valuePlaceholders[j] = "?"
		}
		placeholders[i] = "(" + strings.Join(valuePlaceholders, ", ") + ")"

		args = append(args, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ClickHouse insert failed: %w", err)
	}

	logger.Debug("ClickHouse batch insert successful",
		zap.String("table", tableName),
		zap.Int("rows", len(values)),
	)

	return nil
}

// Close closes ClickHouse repository
func (r *ClickHouseRepository) Close() error {
	// DB is managed externally, don't close it
	return nil
}
