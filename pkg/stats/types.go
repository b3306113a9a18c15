package stats

import (
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

// PerformanceMetrics summarizes classification performance over the
// trailing 24 hours.
type PerformanceMetrics struct {
	// AverageProcessingTime is the mean value of image_processed events, in
	// seconds.
	AverageProcessingTime float64

	// SuccessRate is processed / (processed + failed), or 1.0 with no attempts.
	SuccessRate float64

	// ThroughputPerHour is processed / 24.
	ThroughputPerHour float64

	TotalProcessed int64
	FailureRate    float64
}

// StorageMetrics summarizes storage activity over the trailing 24 hours.
type StorageMetrics struct {
	TotalImagesStored         int64
	SuccessfulClassifications int64
	FailedClassifications     int64

	// ImagesPerCategory counts processed images by category. Uncategorized
	// events are not included.
	ImagesPerCategory map[string]int64

	Performance PerformanceMetrics
	GeneratedAt time.Time
}

// AggregatedStats is the result of GetAggregatedStats.
type AggregatedStats struct {
	Period    lifecycle.TimePeriod
	StartTime time.Time
	EndTime   time.Time

	TotalImagesStored         int64
	SuccessfulClassifications int64
	FailedClassifications     int64
	ImagesPerCategory         map[string]int64

	// EventCounts totals every event type in the window.
	EventCounts map[lifecycle.EventType]int64

	// Rows are the raw bucketed aggregates, ordered by bucket.
	Rows []lifecycle.AggregateRow

	AnomaliesDetected int
}

// Severity ranks an anomaly.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly types reported by DetectAnomalies.
const (
	AnomalyRapidGrowth      = "rapid_growth"
	AnomalyHighFailureRate  = "high_failure_rate"
	AnomalyHighAccessVolume = "high_access_volume"
)

// Anomaly is a detected irregularity. Anomalies are reported only; nothing
// acts on them automatically.
type Anomaly struct {
	Type              string
	Description       string
	Severity          Severity
	RecommendedAction string
	DetectedAt        time.Time

	// Value is the measurement that triggered the anomaly (growth rate,
	// failure rate or access count).
	Value float64
}
