package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"mercator-hq/keeper/pkg/lifecycle"
)

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 5 * time.Minute

	// metricsWindow is the trailing window for storage and performance metrics.
	metricsWindow = 24 * time.Hour

	storageMetricsKey     = "storage_metrics"
	performanceMetricsKey = "performance_metrics"
)

// Config configures the statistics tracker.
type Config struct {
	// CacheSize is the maximum number of cached metric snapshots.
	CacheSize int

	// CacheTTL is how long a cached snapshot stays valid.
	// Default: 5 minutes
	CacheTTL time.Duration
}

// cacheEntry holds a computed snapshot along with the time it was stored.
type cacheEntry struct {
	value    any
	storedAt time.Time
}

// AnomalyObserver is notified of each detected anomaly.
type AnomalyObserver interface {
	ObserveAnomaly(anomalyType string, severity string)
}

// Tracker records statistics events and derives metrics and anomalies from
// them.
type Tracker struct {
	storage lifecycle.EventStore
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	group   singleflight.Group

	// cacheMu orders invalidations against cache fills. generation counts
	// invalidations; a computation only stores its result if no
	// invalidation happened since it started reading.
	cacheMu    sync.Mutex
	generation uint64

	observer AnomalyObserver
	now      func() time.Time
	logger   *slog.Logger
}

// NewTracker creates a statistics tracker. Zero config values fall back to
// defaults.
func NewTracker(storage lifecycle.EventStore, config Config) *Tracker {
	if config.CacheSize <= 0 {
		config.CacheSize = defaultCacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}

	cache, err := lru.New[string, cacheEntry](config.CacheSize)
	if err != nil {
		// lru.New only errors on non-positive size, guarded above.
		panic(fmt.Sprintf("stats: create cache: %v", err))
	}

	return &Tracker{
		storage: storage,
		cache:   cache,
		ttl:     config.CacheTTL,
		now:     time.Now,
		logger:  slog.Default().With("component", "stats.tracker"),
	}
}

// SetClock overrides time.Now. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// SetAnomalyObserver registers an observer for detected anomalies.
func (t *Tracker) SetAnomalyObserver(o AnomalyObserver) {
	t.observer = o
}

// RecordProcessingEvent appends an event. The category is taken from
// metadata["category"] and the value from metadata["value"] (default 1).
func (t *Tracker) RecordProcessingEvent(ctx context.Context, eventType lifecycle.EventType, metadata map[string]any) {
	event := lifecycle.StatisticsEvent{
		Timestamp: t.now(),
		EventType: eventType,
		Value:     1.0,
		Metadata:  metadata,
	}
	if c, ok := metadata["category"].(string); ok && c != "" {
		event.Category = &c
	}
	if v, ok := numeric(metadata["value"]); ok {
		event.Value = v
	}

	if !t.storage.RecordEvent(ctx, event) {
		t.logger.Warn("failed to record processing event", "event_type", string(eventType))
	}
	t.InvalidateCache()
}

// RecordAccessEvent appends an image_accessed event for path.
func (t *Tracker) RecordAccessEvent(ctx context.Context, path string, accessType lifecycle.AccessType) {
	now := t.now()
	event := lifecycle.StatisticsEvent{
		Timestamp: now,
		EventType: lifecycle.EventImageAccessed,
		Value:     1.0,
		Metadata: map[string]any{
			"image_path":  path,
			"access_type": string(accessType),
			"timestamp":   now.UTC().Format(time.RFC3339),
		},
	}

	if !t.storage.RecordEvent(ctx, event) {
		t.logger.Warn("failed to record access event", "path", path)
	}
	t.InvalidateCache()
}

// InvalidateCache drops every cached snapshot. Computations already in
// flight finish for their callers but are not cached, and later reads start
// a new computation instead of joining them.
func (t *Tracker) InvalidateCache() {
	t.cacheMu.Lock()
	t.generation++
	t.cache.Purge()
	t.cacheMu.Unlock()

	t.group.Forget(storageMetricsKey)
	t.group.Forget(performanceMetricsKey)
}

// cached returns a fresh cached value for key or computes and stores it.
// Concurrent misses for the same key share one computation.
func (t *Tracker) cached(key string, compute func() any) any {
	if entry, ok := t.cache.Get(key); ok && t.now().Sub(entry.storedAt) < t.ttl {
		return entry.value
	}

	value, _, _ := t.group.Do(key, func() (any, error) {
		t.cacheMu.Lock()
		gen := t.generation
		t.cacheMu.Unlock()

		v := compute()

		t.cacheMu.Lock()
		if t.generation == gen {
			t.cache.Add(key, cacheEntry{value: v, storedAt: t.now()})
		}
		t.cacheMu.Unlock()
		return v, nil
	})
	return value
}

// GetStorageMetrics returns storage metrics for the trailing 24 hours.
func (t *Tracker) GetStorageMetrics(ctx context.Context) StorageMetrics {
	return t.cached(storageMetricsKey, func() any {
		return t.computeStorageMetrics(ctx)
	}).(StorageMetrics)
}

func (t *Tracker) computeStorageMetrics(ctx context.Context) StorageMetrics {
	end := t.now()
	start := end.Add(-metricsWindow)

	rows := t.storage.GetAggregatedStats(ctx, lifecycle.PeriodDaily, start, end)
	totals := summarizeRows(rows)

	metrics := StorageMetrics{
		TotalImagesStored:         totals.stored,
		SuccessfulClassifications: totals.processed,
		FailedClassifications:     totals.failed,
		ImagesPerCategory:         totals.perCategory,
		Performance:               t.GetPerformanceMetrics(ctx),
		GeneratedAt:               end,
	}

	t.logger.Debug("storage metrics computed",
		"stored", metrics.TotalImagesStored,
		"processed", metrics.SuccessfulClassifications,
		"failed", metrics.FailedClassifications,
	)
	return metrics
}

// GetPerformanceMetrics returns processing performance for the trailing 24
// hours.
func (t *Tracker) GetPerformanceMetrics(ctx context.Context) PerformanceMetrics {
	return t.cached(performanceMetricsKey, func() any {
		return t.computePerformanceMetrics(ctx)
	}).(PerformanceMetrics)
}

func (t *Tracker) computePerformanceMetrics(ctx context.Context) PerformanceMetrics {
	end := t.now()
	start := end.Add(-metricsWindow)

	totals := summarizeRows(t.storage.GetAggregatedStats(ctx, lifecycle.PeriodHourly, start, end))

	perf := PerformanceMetrics{
		SuccessRate:       1.0,
		TotalProcessed:    totals.processed,
		ThroughputPerHour: float64(totals.processed) / 24.0,
	}
	if totals.processed > 0 {
		perf.AverageProcessingTime = totals.processedSum / float64(totals.processed)
	}
	if attempts := totals.processed + totals.failed; attempts > 0 {
		perf.SuccessRate = float64(totals.processed) / float64(attempts)
	}
	perf.FailureRate = 1.0 - perf.SuccessRate

	return perf
}

// GetAggregatedStats aggregates events for period. A nil end defaults to now
// and a nil start to one period before end, where a month is 30 days.
func (t *Tracker) GetAggregatedStats(ctx context.Context, period lifecycle.TimePeriod, start, end *time.Time) AggregatedStats {
	endTime := t.now()
	if end != nil {
		endTime = *end
	}
	startTime := endTime.Add(-period.Duration())
	if start != nil {
		startTime = *start
	}

	rows := t.storage.GetAggregatedStats(ctx, period, startTime, endTime)
	totals := summarizeRows(rows)

	return AggregatedStats{
		Period:                    period,
		StartTime:                 startTime,
		EndTime:                   endTime,
		TotalImagesStored:         totals.stored,
		SuccessfulClassifications: totals.processed,
		FailedClassifications:     totals.failed,
		ImagesPerCategory:         totals.perCategory,
		EventCounts:               totals.byType,
		Rows:                      rows,
		AnomaliesDetected:         len(t.DetectAnomalies(ctx)),
	}
}

// rowTotals folds aggregate rows into per-type totals.
type rowTotals struct {
	stored       int64
	processed    int64
	processedSum float64
	failed       int64
	perCategory  map[string]int64
	byType       map[lifecycle.EventType]int64
}

func summarizeRows(rows []lifecycle.AggregateRow) rowTotals {
	totals := rowTotals{
		perCategory: make(map[string]int64),
		byType:      make(map[lifecycle.EventType]int64),
	}
	for _, row := range rows {
		totals.byType[row.EventType] += row.Count

		switch row.EventType {
		case lifecycle.EventImageStored:
			totals.stored += row.Count
		case lifecycle.EventImageProcessed:
			totals.processed += row.Count
			totals.processedSum += row.Sum
			if row.Category != lifecycle.UncategorizedBucket {
				totals.perCategory[row.Category] += row.Count
			}
		case lifecycle.EventImageFailed:
			totals.failed += row.Count
		}
	}
	return totals
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
