package cleanup

import "time"

// Error type tags attached to CleanupError.
const (
	ErrTypeOrphanCleanup    = "orphan_cleanup_error"
	ErrTypeFileDeletion     = "file_deletion_error"
	ErrTypeDirectoryCleanup = "directory_cleanup_error"
	ErrTypeCoordination     = "coordination_error"
	ErrTypeCircuitOpen      = "circuit_open"
)

// Pass names used for transaction logs and metrics.
const (
	PassOrphans     = "orphans"
	PassRaw         = "raw"
	PassCategorized = "categorized"
)

// CategoryPolicy overrides retention for one category.
type CategoryPolicy struct {
	MaxAgeDays       int `yaml:"max_age_days"`
	MaxAccessAgeDays int `yaml:"max_access_age_days"`

	// PriorityMultiplier and ReservedSpaceMB are carried as configuration
	// but not consulted by eligibility.
	PriorityMultiplier float64 `yaml:"priority_multiplier"`
	ReservedSpaceMB    int     `yaml:"reserved_space_mb"`
}

// DefaultCategoryPolicy returns the defaults for a category override.
func DefaultCategoryPolicy() CategoryPolicy {
	return CategoryPolicy{
		MaxAgeDays:         30,
		MaxAccessAgeDays:   7,
		PriorityMultiplier: 1.0,
	}
}

// RetentionPolicy decides when a record becomes eligible for cleanup. All
// durations are whole days.
type RetentionPolicy struct {
	// MaxAgeDays is the minimum age before a record can be removed.
	MaxAgeDays int `yaml:"max_age_days"`

	// MaxAccessAgeDays is the minimum time since the last access.
	MaxAccessAgeDays int `yaml:"max_access_age_days"`

	// PriorityImageRetention is the minimum age for records with a
	// priority level above zero.
	PriorityImageRetention int `yaml:"priority_image_retention"`

	// FailureRetentionDays is the grace period for failed records, counted
	// from the processing timestamp.
	FailureRetentionDays int `yaml:"failure_retention_days"`

	CategoryPolicies map[string]CategoryPolicy `yaml:"category_policies"`
}

// DefaultRetentionPolicy returns the default retention policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MaxAgeDays:             30,
		MaxAccessAgeDays:       7,
		PriorityImageRetention: 90,
		FailureRetentionDays:   1,
		CategoryPolicies:       map[string]CategoryPolicy{},
	}
}

// CleanupError describes one failure during cleanup.
type CleanupError struct {
	Path      string
	Message   string
	Type      string
	Timestamp time.Time
}

// Result aggregates all passes of a coordinated cleanup.
type Result struct {
	RawFilesRemoved         int
	CategorizedFilesRemoved int
	OrphanedFilesRemoved    int
	SpaceFreed              int64
	Errors                  []CleanupError
	Duration                time.Duration

	// TransactionIDs lists the transaction log of each pass that ran.
	TransactionIDs []string
}

// TotalFilesRemoved sums the files removed by every pass.
func (r *Result) TotalFilesRemoved() int {
	return r.RawFilesRemoved + r.CategorizedFilesRemoved + r.OrphanedFilesRemoved
}

// passStats is the outcome of a single pass.
type passStats struct {
	filesRemoved  int
	spaceFreed    int64
	errors        []CleanupError
	transactionID string
}

// Impact is a dry-run estimate of a cleanup.
type Impact struct {
	CandidateFiles      int
	OrphanedFiles       int
	TotalFiles          int
	EstimatedSpaceFreed int64
	CategoriesAffected  []string
	OldestFileAgeDays   int
}
