package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
	"mercator-hq/keeper/pkg/resilience"
)

// LifecycleManager is the subset of lifecycle.Manager used by cleanup.
type LifecycleManager interface {
	FindOrphanedFiles(ctx context.Context) []lifecycle.OrphanedFile
	GetFilesByStatus(ctx context.Context, status lifecycle.ProcessingStatus) []*lifecycle.LifecycleRecord
	MarkForDeletionIf(ctx context.Context, id string, keep func(*lifecycle.LifecycleRecord) bool) (*lifecycle.LifecycleRecord, lifecycle.MarkOutcome)
}

// Observer receives cleanup measurements. telemetry/metrics.Collector
// implements it.
type Observer interface {
	ObserveCleanup(pass string, filesRemoved int, bytesFreed int64)
	ObserveCleanupError(errorType string)
	ObserveOperation(operation string, duration time.Duration)
}

// Manager performs coordinated cleanup of raw and categorized storage.
type Manager struct {
	lifecycle LifecycleManager
	events    lifecycle.EventRecorder
	txlog     *resilience.TransactionRecorder
	breaker   *resilience.CircuitBreaker
	observer  Observer
	now       func() time.Time

	mu     sync.Mutex
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithEventRecorder emits a cleanup_performed event after each cleanup.
func WithEventRecorder(r lifecycle.EventRecorder) Option {
	return func(m *Manager) { m.events = r }
}

// WithTransactionRecorder logs each pass as a transaction.
func WithTransactionRecorder(r *resilience.TransactionRecorder) Option {
	return func(m *Manager) { m.txlog = r }
}

// WithCircuitBreaker routes file removals through cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(m *Manager) { m.breaker = cb }
}

// WithObserver reports cleanup measurements to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithClock overrides time.Now for eligibility checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a cleanup manager.
func NewManager(lm LifecycleManager, opts ...Option) *Manager {
	m := &Manager{
		lifecycle: lm,
		now:       time.Now,
		logger:    slog.Default().With("component", "cleanup.manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsEligibleForCleanup reports whether record may be removed now.
func (m *Manager) IsEligibleForCleanup(record *lifecycle.LifecycleRecord, policy RetentionPolicy) bool {
	return IsEligibleForCleanup(record, policy, m.now())
}

// PerformCoordinatedCleanup removes orphaned files, then raw files of
// eligible records and of records already marked for deletion, then
// categorized files of records marked for deletion.
//
// An empty rawDir or categoriesDir skips that pass. Failures are collected
// in the result; a panic escaping the passes is reported as a single
// coordination_error.
func (m *Manager) PerformCoordinatedCleanup(ctx context.Context, policy RetentionPolicy, rawDir, categoriesDir string) (result *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	result = &Result{Errors: []CleanupError{}}

	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, CleanupError{
				Message:   fmt.Sprintf("%v", r),
				Type:      ErrTypeCoordination,
				Timestamp: time.Now(),
			})
			m.logger.Error("coordinated cleanup aborted", "error", r)
			m.observeError(ErrTypeCoordination)
		}
		result.Duration = time.Since(start)
		if m.observer != nil {
			m.observer.ObserveOperation("cleanup", result.Duration)
		}
	}()

	m.logger.Info("coordinated cleanup started",
		"raw_dir", rawDir,
		"categories_dir", categoriesDir,
	)

	orphans := m.cleanupOrphans(ctx, m.lifecycle.FindOrphanedFiles(ctx))
	result.OrphanedFilesRemoved = orphans.filesRemoved
	m.merge(result, PassOrphans, orphans)

	if rawDir != "" {
		raw := m.cleanupRawDirectory(ctx, policy, rawDir)
		result.RawFilesRemoved = raw.filesRemoved
		m.merge(result, PassRaw, raw)
	}

	if categoriesDir != "" {
		categorized := m.cleanupCategoriesDirectory(ctx, categoriesDir)
		result.CategorizedFilesRemoved = categorized.filesRemoved
		m.merge(result, PassCategorized, categorized)
	}

	if m.events != nil {
		m.events.RecordProcessingEvent(ctx, lifecycle.EventCleanupPerformed, map[string]any{
			"raw_files_removed":         result.RawFilesRemoved,
			"categorized_files_removed": result.CategorizedFilesRemoved,
			"orphaned_files_removed":    result.OrphanedFilesRemoved,
			"space_freed":               result.SpaceFreed,
			"errors_count":              len(result.Errors),
		})
	}

	m.logger.Info("coordinated cleanup completed",
		"files_removed", result.TotalFilesRemoved(),
		"space_freed", result.SpaceFreed,
		"errors", len(result.Errors),
		"duration", time.Since(start),
	)

	return result
}

func (m *Manager) merge(result *Result, pass string, stats passStats) {
	result.SpaceFreed += stats.spaceFreed
	result.Errors = append(result.Errors, stats.errors...)
	if stats.transactionID != "" {
		result.TransactionIDs = append(result.TransactionIDs, stats.transactionID)
	}
	if m.observer != nil {
		m.observer.ObserveCleanup(pass, stats.filesRemoved, stats.spaceFreed)
	}
}

func (m *Manager) cleanupOrphans(ctx context.Context, orphans []lifecycle.OrphanedFile) passStats {
	stats := passStats{}
	if len(orphans) == 0 {
		return stats
	}

	paths := make([]string, len(orphans))
	for i, o := range orphans {
		paths[i] = o.FilePath
	}
	stats.transactionID = m.begin(ctx, PassOrphans, paths)

	for _, orphan := range orphans {
		if !fileExists(orphan.FilePath) {
			continue
		}
		if err := m.removeFile(orphan.FilePath); err != nil {
			stats.errors = append(stats.errors, m.newError(orphan.FilePath, err, ErrTypeOrphanCleanup))
			continue
		}
		stats.filesRemoved++
		stats.spaceFreed += orphan.Size
		m.logger.Debug("orphaned file removed",
			"path", orphan.FilePath,
			"file_type", orphan.FileType,
			"record_id", orphan.RecordID,
		)
	}

	m.finish(ctx, stats)
	return stats
}

func (m *Manager) cleanupRawDirectory(ctx context.Context, policy RetentionPolicy, rawDir string) passStats {
	stats := passStats{}

	if _, err := os.Stat(rawDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("raw directory does not exist", "path", rawDir)
		} else {
			stats.errors = append(stats.errors, m.newError(rawDir, err, ErrTypeDirectoryCleanup))
		}
		return stats
	}

	now := m.now()
	selected := func(record *lifecycle.LifecycleRecord) bool {
		return selectedForRawPass(record, policy, now)
	}

	var candidates []*lifecycle.LifecycleRecord
	var paths []string
	for _, status := range lifecycle.AllStatuses {
		for _, record := range m.lifecycle.GetFilesByStatus(ctx, status) {
			if selected(record) && fileExists(record.RawFilePath) {
				candidates = append(candidates, record)
				paths = append(paths, record.RawFilePath)
			}
		}
	}
	if len(candidates) == 0 {
		return stats
	}
	stats.transactionID = m.begin(ctx, PassRaw, paths)

	for _, record := range candidates {
		info, err := os.Stat(record.RawFilePath)
		if err != nil {
			stats.errors = append(stats.errors, m.newError(record.RawFilePath, err, ErrTypeFileDeletion))
			continue
		}

		// Mark before delete, against the stored record rather than the
		// snapshot taken above.
		current, outcome := m.lifecycle.MarkForDeletionIf(ctx, record.ID, selected)
		switch outcome {
		case lifecycle.MarkSkipped:
			m.logger.Debug("record no longer eligible, raw file kept",
				"record_id", record.ID,
				"status", string(current.Status),
			)
			continue
		case lifecycle.MarkFailed:
			stats.errors = append(stats.errors, m.newError(record.RawFilePath,
				fmt.Errorf("mark record %s for deletion failed", record.ID),
				ErrTypeFileDeletion))
			continue
		}

		if err := m.removeFile(current.RawFilePath); err != nil {
			stats.errors = append(stats.errors, m.newError(current.RawFilePath, err, ErrTypeFileDeletion))
			continue
		}
		stats.filesRemoved++
		stats.spaceFreed += info.Size()
		m.logger.Debug("raw file removed", "path", current.RawFilePath, "record_id", record.ID)
	}

	m.finish(ctx, stats)
	return stats
}

func (m *Manager) cleanupCategoriesDirectory(ctx context.Context, categoriesDir string) passStats {
	stats := passStats{}

	if _, err := os.Stat(categoriesDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("categories directory does not exist", "path", categoriesDir)
		} else {
			stats.errors = append(stats.errors, m.newError(categoriesDir, err, ErrTypeDirectoryCleanup))
		}
		return stats
	}

	var paths []string
	for _, record := range m.lifecycle.GetFilesByStatus(ctx, lifecycle.StatusMarkedForDeletion) {
		if path := record.CategorizedPathOrEmpty(); path != "" && fileExists(path) {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return stats
	}
	stats.transactionID = m.begin(ctx, PassCategorized, paths)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			stats.errors = append(stats.errors, m.newError(path, err, ErrTypeFileDeletion))
			continue
		}
		if err := m.removeFile(path); err != nil {
			stats.errors = append(stats.errors, m.newError(path, err, ErrTypeFileDeletion))
			continue
		}
		stats.filesRemoved++
		stats.spaceFreed += info.Size()
		m.logger.Debug("categorized file removed", "path", path)
	}

	m.finish(ctx, stats)
	return stats
}

// removeFile deletes path through the circuit breaker, if any.
func (m *Manager) removeFile(path string) error {
	if m.breaker == nil {
		return os.Remove(path)
	}
	return m.breaker.Execute(func() error {
		return os.Remove(path)
	})
}

func (m *Manager) newError(path string, err error, errType string) CleanupError {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		errType = ErrTypeCircuitOpen
	}
	m.logger.Error("cleanup failed",
		"path", path,
		"error_type", errType,
		"error", err,
	)
	m.observeError(errType)
	return CleanupError{
		Path:      path,
		Message:   err.Error(),
		Type:      errType,
		Timestamp: time.Now(),
	}
}

func (m *Manager) observeError(errType string) {
	if m.observer != nil {
		m.observer.ObserveCleanupError(errType)
	}
}

func (m *Manager) begin(ctx context.Context, pass string, paths []string) string {
	if m.txlog == nil {
		return ""
	}
	return m.txlog.Begin(ctx, pass+"_cleanup", paths)
}

func (m *Manager) finish(ctx context.Context, stats passStats) {
	if m.txlog == nil || stats.transactionID == "" {
		return
	}
	summary := map[string]any{
		"files_removed": stats.filesRemoved,
		"space_freed":   stats.spaceFreed,
		"errors_count":  len(stats.errors),
	}
	if len(stats.errors) > 0 {
		failed := make([]string, len(stats.errors))
		for i, e := range stats.errors {
			failed[i] = e.Path
		}
		summary["failed_files"] = failed
		m.txlog.Fail(ctx, stats.transactionID, summary)
		return
	}
	m.txlog.Commit(ctx, stats.transactionID, summary)
}

// GetCleanupCandidates returns every record currently eligible for cleanup
// without touching any file.
func (m *Manager) GetCleanupCandidates(ctx context.Context, policy RetentionPolicy) []*lifecycle.LifecycleRecord {
	now := m.now()
	candidates := []*lifecycle.LifecycleRecord{}
	for _, status := range lifecycle.AllStatuses {
		for _, record := range m.lifecycle.GetFilesByStatus(ctx, status) {
			if IsEligibleForCleanup(record, policy, now) {
				candidates = append(candidates, record)
			}
		}
	}
	return candidates
}

// EstimateCleanupImpact estimates what a cleanup would remove.
func (m *Manager) EstimateCleanupImpact(ctx context.Context, policy RetentionPolicy) Impact {
	now := m.now()
	candidates := m.GetCleanupCandidates(ctx, policy)
	orphans := m.lifecycle.FindOrphanedFiles(ctx)

	impact := Impact{
		CandidateFiles:     len(candidates),
		OrphanedFiles:      len(orphans),
		TotalFiles:         len(candidates) + len(orphans),
		CategoriesAffected: []string{},
	}

	seen := make(map[string]bool)
	for _, record := range candidates {
		impact.EstimatedSpaceFreed += record.FileSize
		if c := record.CategoryOrEmpty(); c != "" && !seen[c] {
			seen[c] = true
			impact.CategoriesAffected = append(impact.CategoriesAffected, c)
		}
		if age := wholeDays(now.Sub(record.CreationTimestamp)); age > impact.OldestFileAgeDays {
			impact.OldestFileAgeDays = age
		}
	}
	for _, o := range orphans {
		impact.EstimatedSpaceFreed += o.Size
	}
	sort.Strings(impact.CategoriesAffected)

	return impact
}

// selectedForRawPass reports whether the raw pass removes record's raw file:
// records already marked for deletion (for example by quota enforcement)
// and records eligible under policy.
func selectedForRawPass(record *lifecycle.LifecycleRecord, policy RetentionPolicy, now time.Time) bool {
	return record.Status == lifecycle.StatusMarkedForDeletion || IsEligibleForCleanup(record, policy, now)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
