package stats

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

const (
	// rapidGrowthThreshold flags hour-over-hour event growth above 200%.
	rapidGrowthThreshold = 2.0

	highFailureRateThreshold     = 0.2
	criticalFailureRateThreshold = 0.5

	// highAccessVolumeThreshold is accesses per hour.
	highAccessVolumeThreshold = 1000
)

// DetectAnomalies runs every heuristic over recent events.
func (t *Tracker) DetectAnomalies(ctx context.Context) []Anomaly {
	now := t.now()

	anomalies := []Anomaly{}
	anomalies = append(anomalies, t.detectRapidGrowth(ctx, now)...)
	anomalies = append(anomalies, t.detectHighFailureRate(ctx, now)...)
	anomalies = append(anomalies, t.detectStorageSpace(ctx, now)...)
	anomalies = append(anomalies, t.detectHighAccessVolume(ctx, now)...)

	for _, a := range anomalies {
		t.logger.Warn("anomaly detected",
			"anomaly_type", a.Type,
			"severity", string(a.Severity),
			"value", a.Value,
		)
		if t.observer != nil {
			t.observer.ObserveAnomaly(a.Type, string(a.Severity))
		}
	}
	return anomalies
}

// detectRapidGrowth compares the event count of the last hour against the
// hour before it. No baseline means no anomaly.
func (t *Tracker) detectRapidGrowth(ctx context.Context, now time.Time) []Anomaly {
	mid := now.Add(-time.Hour)
	current := t.storage.CountEvents(ctx, mid, now)
	previous := t.storage.CountEvents(ctx, now.Add(-2*time.Hour), mid)

	if previous == 0 {
		return nil
	}

	growth := float64(current-previous) / float64(previous)
	if growth <= rapidGrowthThreshold {
		return nil
	}

	return []Anomaly{{
		Type:              AnomalyRapidGrowth,
		Description:       fmt.Sprintf("event volume grew %.1f%% over the previous hour", growth*100),
		Severity:          SeverityHigh,
		RecommendedAction: "check for bulk imports or a misbehaving producer",
		DetectedAt:        now,
		Value:             growth,
	}}
}

func (t *Tracker) detectHighFailureRate(ctx context.Context, now time.Time) []Anomaly {
	start := now.Add(-time.Hour)
	processed := t.storage.CountEvents(ctx, start, now, lifecycle.EventImageProcessed)
	failed := t.storage.CountEvents(ctx, start, now, lifecycle.EventImageFailed)

	attempts := processed + failed
	if attempts == 0 {
		return nil
	}

	rate := float64(failed) / float64(attempts)
	if rate <= highFailureRateThreshold {
		return nil
	}

	severity := SeverityHigh
	if rate > criticalFailureRateThreshold {
		severity = SeverityCritical
	}

	return []Anomaly{{
		Type:              AnomalyHighFailureRate,
		Description:       fmt.Sprintf("classification failure rate is %.1f%%", rate*100),
		Severity:          severity,
		RecommendedAction: "check the classifier and system resources",
		DetectedAt:        now,
		Value:             rate,
	}}
}

// detectStorageSpace is a placeholder for disk-usage checks and never
// reports anything.
func (t *Tracker) detectStorageSpace(_ context.Context, _ time.Time) []Anomaly {
	return nil
}

func (t *Tracker) detectHighAccessVolume(ctx context.Context, now time.Time) []Anomaly {
	accesses := t.storage.CountEvents(ctx, now.Add(-time.Hour), now, lifecycle.EventImageAccessed)
	if accesses <= highAccessVolumeThreshold {
		return nil
	}

	return []Anomaly{{
		Type:              AnomalyHighAccessVolume,
		Description:       fmt.Sprintf("%d accesses in the last hour", accesses),
		Severity:          SeverityMedium,
		RecommendedAction: "check for unusual access patterns or crawlers",
		DetectedAt:        now,
		Value:             float64(accesses),
	}}
}
