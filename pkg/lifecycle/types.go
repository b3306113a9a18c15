package lifecycle

import "time"

// ProcessingStatus is the lifecycle state of a tracked file.
type ProcessingStatus string

const (
	// StatusPending is assigned at ingestion time.
	StatusPending ProcessingStatus = "pending"

	// StatusProcessing means classification is in flight.
	StatusProcessing ProcessingStatus = "processing"

	// StatusCompleted means the file was classified and relocated.
	StatusCompleted ProcessingStatus = "completed"

	// StatusFailed means classification failed.
	StatusFailed ProcessingStatus = "failed"

	// StatusMarkedForDeletion means cleanup or quota enforcement selected the record.
	StatusMarkedForDeletion ProcessingStatus = "marked_for_deletion"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ProcessingStatus{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusMarkedForDeletion,
}

// Valid reports whether s is a known status.
func (s ProcessingStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ValidTransition reports whether moving from one status to another follows
// pending -> processing -> {completed, failed}. Any status may move to
// marked_for_deletion. Re-applying the current status is allowed.
func ValidTransition(from, to ProcessingStatus) bool {
	if to == StatusMarkedForDeletion || from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// LifecycleRecord is the durable row tracking one file's journey from raw
// storage to categorized storage to deletion.
type LifecycleRecord struct {
	// ID is the unique record identifier (UUID).
	ID string

	// RawFilePath is the path of the file as ingested.
	RawFilePath string

	// CategorizedFilePath is the path of the categorized copy, if any.
	CategorizedFilePath *string

	CreationTimestamp   time.Time
	ProcessingTimestamp *time.Time

	Status        ProcessingStatus
	Category      *string
	FailureReason *string

	// MD5Hash and SHA256Hash identify the logical content. The raw and
	// categorized copies of a record share this pair.
	MD5Hash    string
	SHA256Hash string

	// FileSize is the size of the raw file in bytes.
	FileSize int64

	LastAccessTimestamp *time.Time
	AccessCount         int64

	// PriorityLevel protects the record from ordinary reclamation when > 0.
	PriorityLevel int
}

// CategoryOrEmpty returns the category label or "".
func (r *LifecycleRecord) CategoryOrEmpty() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// CategorizedPathOrEmpty returns the categorized path or "".
func (r *LifecycleRecord) CategorizedPathOrEmpty() string {
	if r.CategorizedFilePath == nil {
		return ""
	}
	return *r.CategorizedFilePath
}

// RecordUpdate is a partial update of a lifecycle record. Only non-nil
// fields are written.
type RecordUpdate struct {
	CategorizedFilePath *string
	CreationTimestamp   *time.Time
	ProcessingTimestamp *time.Time
	Status              *ProcessingStatus
	Category            *string
	FailureReason       *string
	FileSize            *int64
	LastAccessTimestamp *time.Time
	AccessCount         *int64
	PriorityLevel       *int
}

// Empty reports whether the update carries no fields.
func (u RecordUpdate) Empty() bool {
	return u.CategorizedFilePath == nil && u.CreationTimestamp == nil &&
		u.ProcessingTimestamp == nil && u.Status == nil && u.Category == nil &&
		u.FailureReason == nil && u.FileSize == nil && u.LastAccessTimestamp == nil &&
		u.AccessCount == nil && u.PriorityLevel == nil
}

// OrphanedFile is a file on disk whose paired counterpart is missing.
type OrphanedFile struct {
	FilePath     string
	FileType     string // "raw" or "categorized"
	Size         int64
	LastModified time.Time
	Reason       string
	RecordID     string
}

// EventType classifies a statistics event.
type EventType string

const (
	EventImageStored      EventType = "image_stored"
	EventImageProcessed   EventType = "image_processed"
	EventImageFailed      EventType = "image_failed"
	EventImageAccessed    EventType = "image_accessed"
	EventImageDeleted     EventType = "image_deleted"
	EventCleanupPerformed EventType = "cleanup_performed"
	EventQuotaEnforced    EventType = "quota_enforced"
)

// AccessType describes why a file was read.
type AccessType string

const (
	AccessRead    AccessType = "read"
	AccessSend    AccessType = "send"
	AccessProcess AccessType = "process"
)

// TimePeriod is an aggregation bucket width.
type TimePeriod string

const (
	PeriodHourly  TimePeriod = "hourly"
	PeriodDaily   TimePeriod = "daily"
	PeriodWeekly  TimePeriod = "weekly"
	PeriodMonthly TimePeriod = "monthly"
)

// Duration returns the default window length for the period. A month is
// treated as 30 days.
func (p TimePeriod) Duration() time.Duration {
	switch p {
	case PeriodHourly:
		return time.Hour
	case PeriodDaily:
		return 24 * time.Hour
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// StatisticsEvent is the unit of all aggregation.
type StatisticsEvent struct {
	Timestamp time.Time
	EventType EventType
	Category  *string
	Value     float64
	Metadata  map[string]any
}

// UncategorizedBucket is the category reported for events without one.
const UncategorizedBucket = "all"

// AggregateRow is one (bucket, event type, category) group of events.
type AggregateRow struct {
	// Bucket is the truncated timestamp, e.g. "2025-03-01 14" for hourly or
	// "2025-09" (year-week) for weekly.
	Bucket    string
	EventType EventType
	Category  string
	Count     int64
	Avg       float64
	Sum       float64
}

// TransactionStatus is the state of a multi-file operation log.
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionCommitted  TransactionStatus = "committed"
	TransactionRolledBack TransactionStatus = "rolled_back"
	TransactionFailed     TransactionStatus = "failed"
)

// TransactionLog records a multi-file operation.
type TransactionLog struct {
	ID            string
	OperationType string
	AffectedFiles []string
	Timestamp     time.Time
	Status        TransactionStatus
	RollbackData  map[string]any
}

// DedupEntry is a duplicate-detection cache row keyed by content hash.
type DedupEntry struct {
	MD5Hash        string
	SHA256Hash     string
	FileSize       int64
	FirstSeen      time.Time
	LastVerified   time.Time
	ReferenceCount int64
	CacheExpiry    time.Time
}

// ConfigChange is one entry of the configuration change history.
type ConfigChange struct {
	Key       string
	OldValue  string
	NewValue  string
	ChangedBy string
	Reason    string
	Timestamp time.Time
}
