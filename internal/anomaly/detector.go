package anomaly

import (
	"math"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

const (
	// DefaultWindowHours is the rolling baseline window
	DefaultWindowHours = 24
	// DefaultZThreshold marks how many deviations count as anomalous
	DefaultZThreshold = 2.5

	// Baseline needs at least this many points before detection fires
	minDataPoints = 10

	// Substitute for a zero deviation so z-scores stay finite on a flat
	// baseline
	stdEpsilon = 1e-9
)

// Result is the outcome of checking one value against the baseline
type Result struct {
	MetricName    string    `json:"metric_name"`
	CurrentValue  float64   `json:"current_value"`
	ZScore        float64   `json:"z_score"`
	IsAnomaly     bool      `json:"is_anomaly"`
	SeverityScore float64   `json:"severity_score"` // 0 to 1
	BaselineMean  float64   `json:"baseline_mean"`
	BaselineStd   float64   `json:"baseline_std"`
	Timestamp     time.Time `json:"timestamp"`
}

// MetricStats summarizes one metric's rolling window
type MetricStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// WindowStats reports the detector's current window contents
type WindowStats struct {
	WindowHours     int         `json:"window_size_hours"`
	DataPointsCount int         `json:"data_points_count"`
	VolumeStats     MetricStats `json:"volume_stats"`
	SentimentStats  MetricStats `json:"sentiment_stats"`
}

type dataPoint struct {
	volume    float64
	sentiment float64
	observed  time.Time
}

// Detector flags volume and sentiment readings that deviate from a rolling
// baseline by more than zThreshold sample deviations. Safe for concurrent
// use.
type Detector struct {
	mu          sync.Mutex
	points      []dataPoint
	windowHours int
	zThreshold  float64
	now         func() time.Time
}

// NewDetector creates new anomaly detector. Zero arguments select the
// defaults.
func NewDetector(windowHours int, zThreshold float64) *Detector {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	if zThreshold <= 0 {
		zThreshold = DefaultZThreshold
	}
	return &Detector{
		windowHours: windowHours,
		zThreshold:  zThreshold,
		now:         time.Now,
	}
}

// AddDataPoint records one observation and drops points that fell out of
// the rolling window
func (d *Detector) AddDataPoint(volume, sentiment float64, observed time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.points = append(d.points, dataPoint{
		volume:    volume,
		sentiment: sentiment,
		observed:  observed,
	})

	cutoff := d.now().UTC().Add(-time.Duration(d.windowHours) * time.Hour)
	kept := d.points[:0]
	for _, p := range d.points {
		if !p.observed.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	d.points = kept
}

// DetectVolumeAnomaly checks one volume reading against the baseline
func (d *Detector) DetectVolumeAnomaly(current float64) Result {
	d.mu.Lock()
	baseline := d.volumesLocked()
	d.mu.Unlock()

	return d.detect("volume", current, baseline)
}

// DetectSentimentAnomaly checks one sentiment reading against the baseline
func (d *Detector) DetectSentimentAnomaly(current float64) Result {
	d.mu.Lock()
	baseline := d.sentimentsLocked()
	d.mu.Unlock()

	return d.detect("sentiment", current, baseline)
}

// DetectAnomalies checks both metrics at once, volume first
func (d *Detector) DetectAnomalies(volume, sentiment float64) []Result {
	return []Result{
		d.DetectVolumeAnomaly(volume),
		d.DetectSentimentAnomaly(sentiment),
	}
}

// Reset drops all recorded observations
func (d *Detector) Reset() {
	d.mu.Lock()
	d.points = nil
	d.mu.Unlock()
}

// Size returns the number of points currently in the window
func (d *Detector) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.points)
}

// WindowStats reports current window statistics
func (d *Detector) WindowStats() WindowStats {
	d.mu.Lock()
	volumes := d.volumesLocked()
	sentiments := d.sentimentsLocked()
	d.mu.Unlock()

	return WindowStats{
		WindowHours:     d.windowHours,
		DataPointsCount: len(volumes),
		VolumeStats:     metricStats(volumes),
		SentimentStats:  metricStats(sentiments),
	}
}

func (d *Detector) detect(metric string, current float64, baseline []float64) Result {
	result := Result{
		MetricName:   metric,
		CurrentValue: current,
		Timestamp:    d.now().UTC(),
	}

	if len(baseline) < minDataPoints {
		return result
	}

	mean, std := baselineStats(baseline)
	result.BaselineMean = mean
	result.BaselineStd = std
	result.ZScore = (current - mean) / std

	if math.Abs(result.ZScore) > d.zThreshold {
		result.IsAnomaly = true
		result.SeverityScore = d.severity(result.ZScore)

		logger.Warn("anomaly detected",
			zap.String("metric", metric),
			zap.Float64("value", current),
			zap.Float64("z_score", result.ZScore),
			zap.Float64("severity", result.SeverityScore),
		)
	}

	return result
}

// severity maps |z| linearly from the threshold (0) to twice the threshold
// (1)
func (d *Detector) severity(zScore float64) float64 {
	excess := math.Abs(zScore) - d.zThreshold
	if excess <= 0 {
		return 0
	}
	return math.Min(excess/d.zThreshold, 1)
}

func (d *Detector) volumesLocked() []float64 {
	values := make([]float64, len(d.points))
	for i, p := range d.points {
		values[i] = p.volume
	}
	return values
}

func (d *Detector) sentimentsLocked() []float64 {
	values := make([]float64, len(d.points))
	for i, p := range d.points {
		values[i] = p.sentiment
	}
	return values
}

// baselineStats returns mean and sample deviation, with a floor on the
// deviation for flat baselines
func baselineStats(values []float64) (float64, float64) {
	mean, _ := stats.Mean(values)
	std, _ := stats.StandardDeviationSample(values)
	if std < stdEpsilon {
		std = stdEpsilon
	}
	return mean, std
}

func metricStats(values []float64) MetricStats {
	if len(values) == 0 {
		return MetricStats{}
	}
	mean, std := baselineStats(values)
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	return MetricStats{Mean: mean, Std: std, Min: min, Max: max}
}

// DetectSpike is a one-shot check of value against an arbitrary baseline
// using the default threshold
func DetectSpike(value float64, baseline []float64) (bool, float64) {
	if len(baseline) < 3 {
		return false, 0
	}

	mean, std := baselineStats(baseline)
	zScore := (value - mean) / std

	d := Detector{zThreshold: DefaultZThreshold}
	if math.Abs(zScore) > d.zThreshold {
		return true, d.severity(zScore)
	}
	return false, 0
}
