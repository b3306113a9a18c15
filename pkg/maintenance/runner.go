package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/keeper/pkg/cleanup"
	"mercator-hq/keeper/pkg/lifecycle"
	"mercator-hq/keeper/pkg/quota"
	"mercator-hq/keeper/pkg/stats"
)

// Cleaner runs a coordinated cleanup.
type Cleaner interface {
	PerformCoordinatedCleanup(ctx context.Context, policy cleanup.RetentionPolicy, rawDir, categoriesDir string) *cleanup.Result
}

// QuotaEnforcer enforces storage quotas.
type QuotaEnforcer interface {
	EnforceQuotaLimits(ctx context.Context) *quota.EnforcementResult
}

// AnomalyDetector reports operational anomalies.
type AnomalyDetector interface {
	DetectAnomalies(ctx context.Context) []stats.Anomaly
}

// Store is the storage housekeeping used by a tick.
type Store interface {
	CleanupExpiredCache(ctx context.Context) int64
	PruneEvents(ctx context.Context, cutoff time.Time) int64
}

// Checkpointer is implemented by stores that can compact their write-ahead
// log. storage.SQLiteStorage implements it.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// StatusSource reports record counts.
type StatusSource interface {
	GetStatistics(ctx context.Context) lifecycle.Summary
}

// StatusGauge receives record counts by status after each tick.
type StatusGauge interface {
	SetRecordsByStatus(counts map[lifecycle.ProcessingStatus]int)
}

// Tracer wraps the tick and each step in a span. end receives the step's
// error, if any.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (_ context.Context, end func(err error))
}

// Config configures a maintenance tick.
type Config struct {
	// Policy is the retention policy passed to cleanup.
	Policy cleanup.RetentionPolicy

	// RawDir and CategoriesDir are the storage roots. Empty skips the pass.
	RawDir        string
	CategoriesDir string

	// EventRetentionDays prunes statistics events older than this many days.
	// Zero keeps events forever.
	EventRetentionDays int
}

// TickReport summarizes one maintenance tick.
type TickReport struct {
	StartedAt time.Time
	Duration  time.Duration

	Cleanup *cleanup.Result
	Quota   *quota.EnforcementResult

	ExpiredCacheEntries int64
	PrunedEvents        int64

	Anomalies []stats.Anomaly

	// Err is set when the context was cancelled before every step ran.
	Err error
}

// Runner executes maintenance steps in order: cleanup, quota enforcement,
// dedup cache expiry, event pruning, status gauges, anomaly detection and
// a storage checkpoint. Any dependency left nil skips its step.
type Runner struct {
	Cleaner   Cleaner
	Quota     QuotaEnforcer
	Anomalies AnomalyDetector
	Store     Store
	Status    StatusSource
	Gauge     StatusGauge
	Tracer    Tracer

	configMu sync.RWMutex
	config   Config

	// tickMu prevents overlapping ticks.
	tickMu sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// NewRunner creates a runner with the given configuration.
func NewRunner(config Config) *Runner {
	return &Runner{
		config: config,
		now:    time.Now,
		logger: slog.Default().With("component", "maintenance.runner"),
	}
}

// SetConfig replaces the configuration used by subsequent ticks.
func (r *Runner) SetConfig(config Config) {
	r.configMu.Lock()
	r.config = config
	r.configMu.Unlock()
}

// Config returns the active configuration.
func (r *Runner) Config() Config {
	r.configMu.RLock()
	defer r.configMu.RUnlock()
	return r.config
}

// RunOnce executes one maintenance tick.
func (r *Runner) RunOnce(ctx context.Context) *TickReport {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	config := r.Config()
	report := &TickReport{StartedAt: r.now()}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	ctx, endTick := r.startSpan(ctx, "maintenance.tick")
	defer func() { endTick(report.Err) }()

	steps := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		// Quota only marks; the cleanup step that follows removes the files.
		{"quota", func(ctx context.Context) error {
			if r.Quota != nil {
				report.Quota = r.Quota.EnforceQuotaLimits(ctx)
			}
			return nil
		}},
		{"cleanup", func(ctx context.Context) error {
			if r.Cleaner != nil {
				report.Cleanup = r.Cleaner.PerformCoordinatedCleanup(ctx, config.Policy, config.RawDir, config.CategoriesDir)
			}
			return nil
		}},
		{"dedup_cache", func(ctx context.Context) error {
			if r.Store != nil {
				report.ExpiredCacheEntries = r.Store.CleanupExpiredCache(ctx)
			}
			return nil
		}},
		{"event_pruning", func(ctx context.Context) error {
			if r.Store != nil && config.EventRetentionDays > 0 {
				cutoff := report.StartedAt.AddDate(0, 0, -config.EventRetentionDays)
				report.PrunedEvents = r.Store.PruneEvents(ctx, cutoff)
			}
			return nil
		}},
		{"status_gauges", func(ctx context.Context) error {
			if r.Status != nil && r.Gauge != nil {
				r.Gauge.SetRecordsByStatus(r.Status.GetStatistics(ctx).ByStatus)
			}
			return nil
		}},
		{"anomalies", func(ctx context.Context) error {
			if r.Anomalies != nil {
				report.Anomalies = r.Anomalies.DetectAnomalies(ctx)
			}
			return nil
		}},
		{"checkpoint", func(ctx context.Context) error {
			if cp, ok := r.Store.(Checkpointer); ok {
				return cp.Checkpoint(ctx)
			}
			return nil
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			report.Err = err
			r.logger.WarnContext(ctx, "maintenance tick interrupted", "step", step.name, "error", err)
			return report
		}

		stepCtx, end := r.startSpan(ctx, "maintenance."+step.name)
		err := step.run(stepCtx)
		end(err)
		if err != nil {
			r.logger.WarnContext(ctx, "maintenance step failed", "step", step.name, "error", err)
		}
	}

	attrs := []any{
		"expired_cache_entries", report.ExpiredCacheEntries,
		"pruned_events", report.PrunedEvents,
		"anomalies", len(report.Anomalies),
		"duration", time.Since(start),
	}
	if report.Cleanup != nil {
		attrs = append(attrs, "files_removed", report.Cleanup.TotalFilesRemoved(), "cleanup_errors", len(report.Cleanup.Errors))
	}
	if report.Quota != nil {
		attrs = append(attrs, "quota_usage", report.Quota.UsageBefore, "quota_marked", report.Quota.FilesMarked)
	}
	r.logger.InfoContext(ctx, "maintenance tick completed", attrs...)

	return report
}

func (r *Runner) startSpan(ctx context.Context, name string) (context.Context, func(error)) {
	if r.Tracer == nil {
		return ctx, func(error) {}
	}
	return r.Tracer.StartSpan(ctx, name)
}
