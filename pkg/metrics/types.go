package metrics

import "time"

// PipelineRunMetric records one enrichment scheduler run
type PipelineRunMetric struct {
	Timestamp      time.Time
	BatchSize      int
	Scored         int
	Failed         int
	DurationMs     int
}

func (m *PipelineRunMetric) TableName() string {
	return "pipeline_run_metrics"
}

func (m *PipelineRunMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.BatchSize,
		m.Scored,
		m.Failed,
		m.DurationMs,
	}
}

// SnapshotRunMetric records one snapshot generation run
type SnapshotRunMetric struct {
	Timestamp        time.Time
	SnapshotDate     time.Time
	AssetRowsWritten int
	GlobalRowWritten bool
	FailedAssets     int
	DurationMs       int
}

func (m *SnapshotRunMetric) TableName() string {
	return "snapshot_run_metrics"
}

func (m *SnapshotRunMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.SnapshotDate,
		m.AssetRowsWritten,
		m.GlobalRowWritten,
		m.FailedAssets,
		m.DurationMs,
	}
}
