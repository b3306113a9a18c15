package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

// LifecycleManager is the subset of lifecycle.Manager used for quota
// accounting and enforcement.
type LifecycleManager interface {
	GetStatistics(ctx context.Context) lifecycle.Summary
	GetFilesByStatus(ctx context.Context, status lifecycle.ProcessingStatus) []*lifecycle.LifecycleRecord
	GetRecordByFilePath(ctx context.Context, path string) (*lifecycle.LifecycleRecord, bool)
	MarkForDeletionIf(ctx context.Context, id string, keep func(*lifecycle.LifecycleRecord) bool) (*lifecycle.LifecycleRecord, lifecycle.MarkOutcome)
	SetPriorityLevel(ctx context.Context, id string, level int) bool
}

// Observer receives quota measurements. telemetry/metrics.Collector
// implements it.
type Observer interface {
	ObserveQuotaUsage(strategy string, usage float64)
	ObserveQuotaEnforcement(filesMarked int, bytesMarked int64)
	ObserveOperation(operation string, duration time.Duration)
}

// Manager monitors aggregate usage against the configured ceilings and
// marks low-value records for deletion when usage turns critical.
//
// Usage counts active records only: rows already marked for deletion are
// kept as an audit trail and do not hold quota.
type Manager struct {
	lifecycle LifecycleManager
	events    lifecycle.EventRecorder
	observer  Observer
	now       func() time.Time

	configMu sync.RWMutex
	config   Config

	// enforceMu serializes EnforceQuotaLimits and ReserveSpaceForPriorityImages.
	enforceMu sync.Mutex

	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithEventRecorder emits a quota_enforced event after each enforcement.
func WithEventRecorder(r lifecycle.EventRecorder) Option {
	return func(m *Manager) { m.events = r }
}

// WithObserver reports usage and enforcement to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithClock overrides time.Now for priority scoring.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a quota manager with the given configuration.
func NewManager(lm LifecycleManager, config Config, opts ...Option) *Manager {
	m := &Manager{
		lifecycle: lm,
		config:    config,
		now:       time.Now,
		logger:    slog.Default().With("component", "quota.manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.config
}

// Configure replaces the configuration at runtime. Invalid configurations
// are rejected and the previous one stays active.
func (m *Manager) Configure(config Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid quota configuration: %w", err)
	}

	m.configMu.Lock()
	m.config = config
	m.configMu.Unlock()

	m.logger.Info("quota configuration updated",
		"max_count", config.MaxCount,
		"max_size", config.MaxSize,
		"strategy", config.Strategy,
		"warning_threshold", config.WarningThreshold,
		"critical_threshold", config.CriticalThreshold,
	)
	return nil
}

// CheckQuotaStatus computes current usage against the configured ceilings.
func (m *Manager) CheckQuotaStatus(ctx context.Context) Status {
	config := m.Config()
	summary := m.lifecycle.GetStatistics(ctx)
	status := computeStatus(config, summary.ActiveRecords, summary.ActiveSize)

	if m.observer != nil {
		m.observer.ObserveQuotaUsage(string(config.Strategy), status.UsagePercentage)
	}

	m.logger.Debug("quota status",
		"usage", status.UsagePercentage,
		"current_count", status.CurrentCount,
		"current_size", status.CurrentSize,
		"is_warning", status.IsWarning,
		"is_critical", status.IsCritical,
	)
	return status
}

func computeStatus(config Config, count int, size int64) Status {
	status := Status{
		CurrentCount:      count,
		MaxCount:          config.MaxCount,
		CurrentSize:       size,
		MaxSize:           config.MaxSize,
		Strategy:          config.Strategy,
		WarningThreshold:  config.WarningThreshold,
		CriticalThreshold: config.CriticalThreshold,
	}

	if config.MaxCount > 0 {
		status.CountUsage = float64(count) / float64(config.MaxCount)
	}
	if config.MaxSize > 0 {
		status.SizeUsage = float64(size) / float64(config.MaxSize)
	}

	switch config.Strategy {
	case StrategyCount:
		status.UsagePercentage = status.CountUsage
	case StrategySize:
		status.UsagePercentage = status.SizeUsage
	default:
		status.UsagePercentage = max(status.CountUsage, status.SizeUsage)
	}

	status.IsWarning = status.UsagePercentage >= config.WarningThreshold
	status.IsCritical = status.UsagePercentage >= config.CriticalThreshold
	return status
}

// GetQuotaWarnings returns the threshold crossings for current usage.
func (m *Manager) GetQuotaWarnings(ctx context.Context) []Warning {
	return buildWarnings(m.CheckQuotaStatus(ctx))
}

func buildWarnings(status Status) []Warning {
	warnings := []Warning{}

	switch {
	case status.IsCritical:
		warnings = append(warnings, Warning{
			Type:         WarningCriticalUsage,
			Message:      fmt.Sprintf("storage usage at critical level: %.1f%%", status.UsagePercentage*100),
			CurrentUsage: status.UsagePercentage,
			Threshold:    status.CriticalThreshold,
		})
	case status.IsWarning:
		warnings = append(warnings, Warning{
			Type:         WarningHighUsage,
			Message:      fmt.Sprintf("storage usage high: %.1f%%", status.UsagePercentage*100),
			CurrentUsage: status.UsagePercentage,
			Threshold:    status.WarningThreshold,
		})
	}

	switch status.Strategy {
	case StrategyCount:
		if status.MaxCount > 0 && status.CountUsage >= status.WarningThreshold {
			warnings = append(warnings, Warning{
				Type:         WarningFileCountHigh,
				Message:      fmt.Sprintf("file count approaching limit: %d/%d", status.CurrentCount, status.MaxCount),
				CurrentUsage: status.CountUsage,
				Threshold:    status.WarningThreshold,
			})
		}
	case StrategySize:
		if status.MaxSize > 0 && status.SizeUsage >= status.WarningThreshold {
			const mib = 1024 * 1024
			warnings = append(warnings, Warning{
				Type: WarningStorageSizeHigh,
				Message: fmt.Sprintf("storage size approaching limit: %.1fMB/%.1fMB",
					float64(status.CurrentSize)/mib, float64(status.MaxSize)/mib),
				CurrentUsage: status.SizeUsage,
				Threshold:    status.WarningThreshold,
			})
		}
	}

	return warnings
}

// EnforceQuotaLimits marks records for deletion when usage is critical,
// aiming to bring usage back down to the warning threshold. Below the
// critical threshold it only reports warnings.
func (m *Manager) EnforceQuotaLimits(ctx context.Context) *EnforcementResult {
	m.enforceMu.Lock()
	defer m.enforceMu.Unlock()

	start := time.Now()
	config := m.Config()
	status := m.CheckQuotaStatus(ctx)

	result := &EnforcementResult{
		Warnings:    buildWarnings(status),
		Errors:      []EnforcementError{},
		UsageBefore: status.UsagePercentage,
	}
	defer func() {
		result.Duration = time.Since(start)
		if m.observer != nil {
			m.observer.ObserveOperation("quota_enforcement", result.Duration)
		}
	}()

	if !status.IsCritical {
		m.logger.Debug("quota below critical threshold, warnings only",
			"usage", status.UsagePercentage,
			"warnings", len(result.Warnings),
		)
		return result
	}

	result.Enforced = true
	result.TargetFiles, result.TargetBytes = deficits(config, status)

	m.logger.Info("quota enforcement started",
		"usage", status.UsagePercentage,
		"strategy", config.Strategy,
		"target_files", result.TargetFiles,
		"target_bytes", result.TargetBytes,
	)

	if result.TargetFiles <= 0 && result.TargetBytes <= 0 {
		return result
	}

	for _, candidate := range m.CalculateRemovalPriority(ctx, nil) {
		if result.TargetFiles > 0 && result.FilesMarked >= result.TargetFiles {
			break
		}
		if result.TargetBytes > 0 && result.SpaceFreed >= result.TargetBytes {
			break
		}

		current, outcome := m.lifecycle.MarkForDeletionIf(ctx, candidate.Record.ID, removable)
		if outcome == lifecycle.MarkSkipped {
			m.logger.Debug("quota candidate changed since ranking, skipped",
				"record_id", candidate.Record.ID,
				"status", string(current.Status),
				"priority_level", current.PriorityLevel,
			)
			continue
		}
		if outcome != lifecycle.MarkApplied {
			m.logger.Error("failed to mark quota candidate",
				"record_id", candidate.Record.ID,
				"path", candidate.FilePath,
			)
			result.Errors = append(result.Errors, EnforcementError{
				Path:      candidate.FilePath,
				RecordID:  candidate.Record.ID,
				Message:   fmt.Sprintf("mark record %s for deletion failed", candidate.Record.ID),
				Type:      ErrTypeMark,
				Timestamp: time.Now(),
			})
			continue
		}

		result.FilesMarked++
		result.SpaceFreed += current.FileSize
		m.logger.Debug("quota candidate marked",
			"record_id", candidate.Record.ID,
			"path", candidate.FilePath,
			"score", candidate.PriorityScore,
			"reason", candidate.Reason,
		)
	}

	if m.events != nil {
		m.events.RecordProcessingEvent(ctx, lifecycle.EventQuotaEnforced, map[string]any{
			"files_removed":  result.FilesMarked,
			"space_freed":    result.SpaceFreed,
			"quota_strategy": string(config.Strategy),
			"usage_before":   status.UsagePercentage,
		})
	}
	if m.observer != nil {
		m.observer.ObserveQuotaEnforcement(result.FilesMarked, result.SpaceFreed)
	}

	m.logger.Info("quota enforcement completed",
		"files_marked", result.FilesMarked,
		"space_freed", result.SpaceFreed,
		"errors", len(result.Errors),
	)
	return result
}

// removable is the re-check applied to a ranked candidate right before it is
// marked: only completed records without priority may go.
func removable(record *lifecycle.LifecycleRecord) bool {
	return record.Status == lifecycle.StatusCompleted && record.PriorityLevel == 0
}

// deficits returns how many files and bytes must go to reach the warning
// threshold. A dimension the strategy ignores reports zero.
func deficits(config Config, status Status) (files int, bytes int64) {
	targetCount := int(float64(config.MaxCount) * config.WarningThreshold)
	targetSize := int64(float64(config.MaxSize) * config.WarningThreshold)

	switch config.Strategy {
	case StrategyCount:
		return status.CurrentCount - targetCount, 0
	case StrategySize:
		return 0, status.CurrentSize - targetSize
	default:
		if config.MaxCount > 0 {
			files = max(0, status.CurrentCount-targetCount)
		}
		if config.MaxSize > 0 {
			bytes = max(0, status.CurrentSize-targetSize)
		}
		return files, bytes
	}
}

// CalculateRemovalPriority scores records for removal, most removable
// first. A nil records slice scores every completed record. Records with a
// priority level above zero are never returned. Equal scores keep their
// input order.
func (m *Manager) CalculateRemovalPriority(ctx context.Context, records []*lifecycle.LifecycleRecord) []RemovalCandidate {
	if records == nil {
		records = m.lifecycle.GetFilesByStatus(ctx, lifecycle.StatusCompleted)
	}

	now := m.now()
	candidates := make([]RemovalCandidate, 0, len(records))
	for _, record := range records {
		if record == nil || record.PriorityLevel > 0 {
			continue
		}
		s := scoreRecord(record, now)
		candidates = append(candidates, RemovalCandidate{
			FilePath:      record.RawFilePath,
			Record:        record,
			PriorityScore: s.total(),
			Reason:        s.reason(),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PriorityScore > candidates[j].PriorityScore
	})

	m.logger.Debug("removal priority calculated", "candidates", len(candidates))
	return candidates
}

// ReserveSpaceForPriorityImages raises the priority level of the records at
// paths to at least 1 when their combined size fits in the reserved share
// of MaxSize. It reports false without changing anything otherwise.
// Unknown paths are ignored.
func (m *Manager) ReserveSpaceForPriorityImages(ctx context.Context, paths []string) bool {
	m.enforceMu.Lock()
	defer m.enforceMu.Unlock()

	config := m.Config()

	var records []*lifecycle.LifecycleRecord
	var needed int64
	for _, path := range paths {
		record, ok := m.lifecycle.GetRecordByFilePath(ctx, path)
		if !ok {
			m.logger.Debug("no record for priority path", "path", path)
			continue
		}
		records = append(records, record)
		needed += record.FileSize
	}

	available := int64(float64(config.MaxSize) * config.ReservedSpacePercentage)
	if needed > available {
		m.logger.Warn("insufficient reserved space for priority images",
			"needed", needed,
			"available", available,
		)
		return false
	}

	for _, record := range records {
		if record.PriorityLevel >= 1 {
			continue
		}
		if !m.lifecycle.SetPriorityLevel(ctx, record.ID, 1) {
			m.logger.Error("failed to raise priority level", "record_id", record.ID)
			return false
		}
	}

	m.logger.Info("reserved space for priority images",
		"files", len(records),
		"bytes", needed,
	)
	return true
}
