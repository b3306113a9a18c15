package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultDedupTTL is how long a hash pair stays in the duplicate cache after
// it was last seen.
const DefaultDedupTTL = 24 * time.Hour

// orphanScanConcurrency bounds the number of concurrent stat calls during
// FindOrphanedFiles.
const orphanScanConcurrency = 8

// EventRecorder receives lifecycle transitions as statistics events.
// stats.Tracker implements it.
type EventRecorder interface {
	RecordProcessingEvent(ctx context.Context, eventType EventType, metadata map[string]any)
}

// CreateOptions are optional parameters for CreateLifecycleRecord.
type CreateOptions struct {
	// PriorityLevel protects the record from reclamation when > 0.
	PriorityLevel int
}

// StatusUpdate carries the optional fields of a status transition. Empty
// strings are ignored.
type StatusUpdate struct {
	Category            string
	CategorizedFilePath string
	FailureReason       string
}

// Summary is a snapshot of record counts and sizes.
type Summary struct {
	TotalRecords int
	TotalSize    int64

	// ActiveRecords and ActiveSize exclude records marked for deletion.
	ActiveRecords int
	ActiveSize    int64

	ByStatus   map[ProcessingStatus]int
	ByCategory map[string]int
}

// Manager creates and transitions lifecycle records.
type Manager struct {
	storage  Storage
	events   EventRecorder
	dedupTTL time.Duration
	now      func() time.Time

	mu     sync.Mutex
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEventRecorder sends lifecycle transitions to r.
func WithEventRecorder(r EventRecorder) ManagerOption {
	return func(m *Manager) {
		m.events = r
	}
}

// WithDedupTTL overrides DefaultDedupTTL.
func WithDedupTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.dedupTTL = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a lifecycle manager backed by storage.
func NewManager(storage Storage, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage:  storage,
		dedupTTL: DefaultDedupTTL,
		now:      time.Now,
		logger:   slog.Default().With("component", "lifecycle.manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetEventRecorder attaches an event recorder after construction. It exists
// because the statistics tracker itself depends on storage created earlier.
func (m *Manager) SetEventRecorder(r EventRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = r
}

// CreateLifecycleRecord registers a newly ingested file and returns the new
// record id, or "" on failure.
//
// When the file cannot be read, the record is still created with hashes of
// the path string and len(path) as size.
func (m *Manager) CreateLifecycleRecord(ctx context.Context, path string, opts *CreateOptions) string {
	if opts == nil {
		opts = &CreateOptions{}
	}

	md5Hex, shaHex, size, err := HashFile(path)
	contentHashed := err == nil
	if err != nil {
		m.logger.Warn("hashing file content failed, falling back to path hash",
			"path", path,
			"error", err,
		)
		md5Hex, shaHex = HashPath(path)
		size = int64(len(path))
	}

	now := m.now()
	record := &LifecycleRecord{
		ID:                uuid.New().String(),
		RawFilePath:       path,
		CreationTimestamp: now,
		Status:            StatusPending,
		MD5Hash:           md5Hex,
		SHA256Hash:        shaHex,
		FileSize:          size,
		PriorityLevel:     opts.PriorityLevel,
	}

	m.mu.Lock()
	ok := m.storage.CreateRecord(ctx, record)
	// Path hashes say nothing about content and stay out of the dedup cache.
	if ok && contentHashed {
		m.storage.UpsertDedupEntry(ctx, &DedupEntry{
			MD5Hash:      md5Hex,
			SHA256Hash:   shaHex,
			FileSize:     size,
			FirstSeen:    now,
			LastVerified: now,
			CacheExpiry:  now.Add(m.dedupTTL),
		})
	}
	events := m.events
	m.mu.Unlock()

	if !ok {
		m.logger.Error("failed to create lifecycle record", "path", path)
		return ""
	}

	m.logger.Debug("lifecycle record created",
		"record_id", record.ID,
		"path", path,
		"file_size", size,
		"priority_level", record.PriorityLevel,
	)

	if events != nil {
		events.RecordProcessingEvent(ctx, EventImageStored, map[string]any{
			"record_id": record.ID,
			"file_size": size,
		})
	}

	return record.ID
}

// UpdateProcessingStatus moves the record to status, stamps the processing
// timestamp and merges the non-empty fields of update.
func (m *Manager) UpdateProcessingStatus(ctx context.Context, id string, status ProcessingStatus, update *StatusUpdate) bool {
	if !status.Valid() {
		m.logger.Error("unknown processing status", "record_id", id, "status", string(status))
		return false
	}
	if update == nil {
		update = &StatusUpdate{}
	}

	m.mu.Lock()
	current, found := m.storage.GetRecord(ctx, id)
	if !found {
		m.mu.Unlock()
		m.logger.Error("failed to update processing status",
			"record_id", id,
			"status", string(status),
			"error", ErrRecordNotFound,
		)
		return false
	}

	if !ValidTransition(current.Status, status) {
		m.logger.Warn("out-of-order status transition",
			"record_id", id,
			"from", string(current.Status),
			"to", string(status),
		)
	}

	now := m.now()
	change := RecordUpdate{
		Status:              &status,
		ProcessingTimestamp: &now,
	}
	if update.Category != "" {
		change.Category = &update.Category
	}
	if update.CategorizedFilePath != "" {
		change.CategorizedFilePath = &update.CategorizedFilePath
	}
	if update.FailureReason != "" {
		change.FailureReason = &update.FailureReason
	}

	ok := m.storage.UpdateRecord(ctx, id, change)
	events := m.events
	m.mu.Unlock()

	if !ok {
		m.logger.Error("failed to update processing status", "record_id", id, "status", string(status))
		return false
	}

	m.logger.Debug("processing status updated",
		"record_id", id,
		"from", string(current.Status),
		"to", string(status),
	)

	if events != nil {
		m.emitTransition(ctx, events, current, status, update, now)
	}
	return true
}

func (m *Manager) emitTransition(ctx context.Context, events EventRecorder, before *LifecycleRecord, status ProcessingStatus, update *StatusUpdate, at time.Time) {
	category := update.Category
	if category == "" {
		category = before.CategoryOrEmpty()
	}

	metadata := map[string]any{"record_id": before.ID}
	if category != "" {
		metadata["category"] = category
	}

	switch status {
	case StatusCompleted:
		// Value is the processing time in seconds.
		metadata["value"] = at.Sub(before.CreationTimestamp).Seconds()
		events.RecordProcessingEvent(ctx, EventImageProcessed, metadata)
	case StatusFailed:
		if update.FailureReason != "" {
			metadata["failure_reason"] = update.FailureReason
		}
		events.RecordProcessingEvent(ctx, EventImageFailed, metadata)
	case StatusMarkedForDeletion:
		metadata["file_size"] = before.FileSize
		events.RecordProcessingEvent(ctx, EventImageDeleted, metadata)
	}
}

// MarkForDeletion transitions the record to StatusMarkedForDeletion.
func (m *Manager) MarkForDeletion(ctx context.Context, id string) bool {
	return m.UpdateProcessingStatus(ctx, id, StatusMarkedForDeletion, nil)
}

// MarkOutcome is the result of MarkForDeletionIf.
type MarkOutcome int

const (
	// MarkFailed means the record is missing or the update failed.
	MarkFailed MarkOutcome = iota
	// MarkSkipped means the stored record no longer satisfies the predicate.
	MarkSkipped
	// MarkApplied means the record was transitioned to StatusMarkedForDeletion.
	MarkApplied
	// MarkAlreadyMarked means the record was already marked; nothing was
	// written and no event was emitted.
	MarkAlreadyMarked
)

// Marked reports whether the record is marked for deletion after the call.
func (o MarkOutcome) Marked() bool {
	return o == MarkApplied || o == MarkAlreadyMarked
}

// MarkForDeletionIf re-reads the record under the manager lock and marks it
// for deletion only if keep holds for the stored version. Callers acting on
// an earlier snapshot use it so that a record which started processing, was
// accessed or gained priority since the snapshot is left alone.
//
// keep runs while the lock is held and must not call back into m.
func (m *Manager) MarkForDeletionIf(ctx context.Context, id string, keep func(*LifecycleRecord) bool) (*LifecycleRecord, MarkOutcome) {
	m.mu.Lock()
	current, found := m.storage.GetRecord(ctx, id)
	if !found {
		m.mu.Unlock()
		m.logger.Error("failed to mark record for deletion",
			"record_id", id,
			"error", ErrRecordNotFound,
		)
		return nil, MarkFailed
	}

	if !keep(current) {
		m.mu.Unlock()
		m.logger.Debug("record changed since selection, not marked",
			"record_id", id,
			"status", string(current.Status),
		)
		return current, MarkSkipped
	}
	if current.Status == StatusMarkedForDeletion {
		m.mu.Unlock()
		return current, MarkAlreadyMarked
	}

	status := StatusMarkedForDeletion
	now := m.now()
	ok := m.storage.UpdateRecord(ctx, id, RecordUpdate{
		Status:              &status,
		ProcessingTimestamp: &now,
	})
	events := m.events
	m.mu.Unlock()

	if !ok {
		m.logger.Error("failed to mark record for deletion", "record_id", id)
		return current, MarkFailed
	}

	m.logger.Debug("record marked for deletion",
		"record_id", id,
		"from", string(current.Status),
	)
	if events != nil {
		m.emitTransition(ctx, events, current, status, &StatusUpdate{}, now)
	}

	marked := *current
	marked.Status = status
	marked.ProcessingTimestamp = &now
	return &marked, MarkApplied
}

// UpdateAccessInfo increments the access count and stamps the access time.
func (m *Manager) UpdateAccessInfo(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, found := m.storage.GetRecord(ctx, id)
	if !found {
		m.logger.Warn("access update for unknown record",
			"record_id", id,
			"error", ErrRecordNotFound,
		)
		return false
	}

	now := m.now()
	count := record.AccessCount + 1
	return m.storage.UpdateRecord(ctx, id, RecordUpdate{
		LastAccessTimestamp: &now,
		AccessCount:         &count,
	})
}

// SetPriorityLevel sets the record's priority level.
func (m *Manager) SetPriorityLevel(ctx context.Context, id string, level int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level < 0 {
		level = 0
	}
	if !m.storage.UpdateRecord(ctx, id, RecordUpdate{PriorityLevel: &level}) {
		return false
	}
	m.logger.Debug("priority level set", "record_id", id, "priority_level", level)
	return true
}

// GetLifecycleInfo returns the record with the given id.
func (m *Manager) GetLifecycleInfo(ctx context.Context, id string) (*LifecycleRecord, bool) {
	return m.storage.GetRecord(ctx, id)
}

// GetFilesByStatus returns every record with the given status.
func (m *Manager) GetFilesByStatus(ctx context.Context, status ProcessingStatus) []*LifecycleRecord {
	return m.storage.GetRecordsByStatus(ctx, status)
}

// GetRecordByFilePath finds the record whose raw or categorized path equals
// path. When several match, the newest by creation time wins.
func (m *Manager) GetRecordByFilePath(ctx context.Context, path string) (*LifecycleRecord, bool) {
	var best *LifecycleRecord
	for _, record := range m.storage.GetAllRecords(ctx) {
		if record.RawFilePath != path && record.CategorizedPathOrEmpty() != path {
			continue
		}
		// Records arrive in insertion order for equal timestamps, so the
		// later insert wins a tie.
		if best == nil || !record.CreationTimestamp.Before(best.CreationTimestamp) {
			best = record
		}
	}
	return best, best != nil
}

// CheckDuplicate hashes the file at path and looks the hash up in the
// duplicate cache.
func (m *Manager) CheckDuplicate(ctx context.Context, path string) (*DedupEntry, bool) {
	md5Hex, shaHex, _, err := HashFile(path)
	if err != nil {
		m.logger.Debug("duplicate check skipped", "path", path, "error", err)
		return nil, false
	}

	entry, found := m.storage.GetDedupEntry(ctx, md5Hex)
	if !found || entry.SHA256Hash != shaHex {
		return nil, false
	}
	return entry, true
}

// FindOrphanedFiles scans completed records and reports files whose paired
// counterpart is missing.
//
// A categorized file whose raw file is gone is reported with FileType
// "categorized". A raw file whose categorized copy is gone is reported with
// FileType "raw".
func (m *Manager) FindOrphanedFiles(ctx context.Context) []OrphanedFile {
	records := m.storage.GetRecordsByStatus(ctx, StatusCompleted)

	found := make([]*OrphanedFile, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(orphanScanConcurrency)
	for i, record := range records {
		if record.CategorizedFilePath == nil {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			found[i] = checkOrphan(record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Warn("orphan scan interrupted", "error", err)
	}

	orphans := []OrphanedFile{}
	for _, o := range found {
		if o != nil {
			orphans = append(orphans, *o)
		}
	}

	if len(orphans) > 0 {
		m.logger.Info("orphaned files found", "count", len(orphans))
	}
	return orphans
}

func checkOrphan(record *LifecycleRecord) *OrphanedFile {
	categorizedPath := *record.CategorizedFilePath
	rawInfo, rawErr := os.Stat(record.RawFilePath)
	catInfo, catErr := os.Stat(categorizedPath)
	rawExists := rawErr == nil
	catExists := catErr == nil

	switch {
	case catExists && !rawExists:
		lastModified := record.CreationTimestamp
		if record.ProcessingTimestamp != nil {
			lastModified = *record.ProcessingTimestamp
		}
		return &OrphanedFile{
			FilePath:     categorizedPath,
			FileType:     "categorized",
			Size:         catInfo.Size(),
			LastModified: lastModified,
			Reason:       "raw file deleted",
			RecordID:     record.ID,
		}
	case rawExists && !catExists:
		return &OrphanedFile{
			FilePath:     record.RawFilePath,
			FileType:     "raw",
			Size:         rawInfo.Size(),
			LastModified: record.CreationTimestamp,
			Reason:       "categorized file missing",
			RecordID:     record.ID,
		}
	default:
		return nil
	}
}

// GetStatistics returns record counts by status and category plus sizes.
func (m *Manager) GetStatistics(ctx context.Context) Summary {
	summary := Summary{
		ByStatus:   make(map[ProcessingStatus]int, len(AllStatuses)),
		ByCategory: make(map[string]int),
	}

	for _, status := range AllStatuses {
		records := m.storage.GetRecordsByStatus(ctx, status)
		summary.ByStatus[status] = len(records)
		summary.TotalRecords += len(records)

		for _, record := range records {
			if record.Category != nil {
				summary.ByCategory[*record.Category]++
			}
			summary.TotalSize += record.FileSize
			if status != StatusMarkedForDeletion {
				summary.ActiveRecords++
				summary.ActiveSize += record.FileSize
			}
		}
	}

	return summary
}
