package lifecycle

import (
	"context"
	"time"
)

// Storage is the persistence contract used by every component. It is the
// exclusive owner of on-disk state.
//
// Implementations never return errors for expected failures: lookups report
// presence with a boolean, writes report success with a boolean, and list
// queries return an empty slice when the backend fails. Failures are logged.
type Storage interface {
	RecordStore
	EventStore
	TransactionStore
	DedupStore
	ConfigHistoryStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// RecordStore persists lifecycle records.
type RecordStore interface {
	// CreateRecord inserts a record. It returns false if the id already
	// exists or the write fails.
	CreateRecord(ctx context.Context, record *LifecycleRecord) bool

	// UpdateRecord applies the non-nil fields of update. It returns false if
	// the id does not exist.
	UpdateRecord(ctx context.Context, id string, update RecordUpdate) bool

	GetRecord(ctx context.Context, id string) (*LifecycleRecord, bool)
	GetRecordsByStatus(ctx context.Context, status ProcessingStatus) []*LifecycleRecord
	GetAllRecords(ctx context.Context) []*LifecycleRecord
}

// EventStore persists statistics events and answers aggregation queries.
type EventStore interface {
	RecordEvent(ctx context.Context, event StatisticsEvent) bool

	// GetAggregatedStats groups events in [start, end] by period bucket,
	// event type and category.
	GetAggregatedStats(ctx context.Context, period TimePeriod, start, end time.Time) []AggregateRow

	// CountEvents counts events in [start, end). With no types, all events count.
	CountEvents(ctx context.Context, start, end time.Time, types ...EventType) int64

	// PruneEvents deletes events older than cutoff and returns how many were removed.
	PruneEvents(ctx context.Context, cutoff time.Time) int64
}

// TransactionStore persists multi-file operation logs.
type TransactionStore interface {
	CreateTransactionLog(ctx context.Context, log *TransactionLog) bool
	UpdateTransactionStatus(ctx context.Context, id string, status TransactionStatus, rollbackData map[string]any) bool
	GetTransactionLog(ctx context.Context, id string) (*TransactionLog, bool)
}

// DedupStore persists the duplicate-detection cache.
type DedupStore interface {
	// UpsertDedupEntry inserts the entry or, when the hash is known, bumps its
	// reference count and refreshes verification and expiry times.
	UpsertDedupEntry(ctx context.Context, entry *DedupEntry) bool
	GetDedupEntry(ctx context.Context, md5Hash string) (*DedupEntry, bool)

	// CleanupExpiredCache deletes entries whose expiry has passed.
	CleanupExpiredCache(ctx context.Context) int64
}

// ConfigHistoryStore persists configuration changes.
type ConfigHistoryStore interface {
	RecordConfigChange(ctx context.Context, change ConfigChange) bool
	GetConfigHistory(ctx context.Context, limit int) []ConfigChange
}
