package quota

import (
	"fmt"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

// Strategy selects which usage dimension drives enforcement.
type Strategy string

const (
	// StrategyCount compares the number of active records with MaxCount.
	StrategyCount Strategy = "count_based"

	// StrategySize compares the bytes held by active records with MaxSize.
	StrategySize Strategy = "size_based"

	// StrategyHybrid uses the larger of the count and size fractions.
	StrategyHybrid Strategy = "hybrid"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyCount, StrategySize, StrategyHybrid:
		return true
	}
	return false
}

// Warning types.
const (
	WarningCriticalUsage   = "critical_usage"
	WarningHighUsage       = "high_usage"
	WarningFileCountHigh   = "file_count_high"
	WarningStorageSizeHigh = "storage_size_high"
)

// ErrTypeMark tags failures to mark a candidate for deletion.
const ErrTypeMark = "quota_mark_error"

// Config contains the quota ceilings and thresholds.
type Config struct {
	// MaxCount is the maximum number of active records. Zero disables the
	// count dimension.
	MaxCount int `yaml:"max_count"`

	// MaxSize is the maximum number of bytes held by active records. Zero
	// disables the size dimension.
	MaxSize int64 `yaml:"max_size"`

	// Strategy selects the usage dimension.
	Strategy Strategy `yaml:"strategy"`

	// WarningThreshold is the usage fraction (0.0-1.0) at which warnings are
	// generated. Enforcement reduces usage back down to this level.
	WarningThreshold float64 `yaml:"warning_threshold"`

	// CriticalThreshold is the usage fraction at which enforcement runs.
	CriticalThreshold float64 `yaml:"critical_threshold"`

	// ReservedSpacePercentage is the fraction of MaxSize available to
	// priority records through ReserveSpaceForPriorityImages.
	ReservedSpacePercentage float64 `yaml:"reserved_space_percentage"`
}

// DefaultConfig returns 10000 files, 1 GiB, hybrid strategy, 80% warning,
// 95% critical and 10% reserved space.
func DefaultConfig() Config {
	return Config{
		MaxCount:                10000,
		MaxSize:                 1 << 30,
		Strategy:                StrategyHybrid,
		WarningThreshold:        0.8,
		CriticalThreshold:       0.95,
		ReservedSpacePercentage: 0.1,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.MaxCount < 0 {
		return fmt.Errorf("max_count must be non-negative, got %d", c.MaxCount)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("max_size must be non-negative, got %d", c.MaxSize)
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("unknown quota strategy %q", c.Strategy)
	}
	if c.WarningThreshold <= 0 || c.WarningThreshold > 1 {
		return fmt.Errorf("warning_threshold must be in (0, 1], got %v", c.WarningThreshold)
	}
	if c.CriticalThreshold < c.WarningThreshold || c.CriticalThreshold > 1 {
		return fmt.Errorf("critical_threshold must be in [warning_threshold, 1], got %v", c.CriticalThreshold)
	}
	if c.ReservedSpacePercentage < 0 || c.ReservedSpacePercentage > 1 {
		return fmt.Errorf("reserved_space_percentage must be in [0, 1], got %v", c.ReservedSpacePercentage)
	}
	return nil
}

// Status is a snapshot of quota usage.
type Status struct {
	CurrentCount int
	MaxCount     int
	CurrentSize  int64
	MaxSize      int64

	// CountUsage and SizeUsage are the per-dimension fractions.
	CountUsage float64
	SizeUsage  float64

	// UsagePercentage is the fraction selected by the strategy.
	UsagePercentage float64

	Strategy          Strategy
	WarningThreshold  float64
	CriticalThreshold float64

	IsWarning  bool
	IsCritical bool
}

// Warning describes a threshold crossing.
type Warning struct {
	Type         string
	Message      string
	CurrentUsage float64
	Threshold    float64
}

// RemovalCandidate is a record ranked for removal during enforcement.
type RemovalCandidate struct {
	FilePath      string
	Record        *lifecycle.LifecycleRecord
	PriorityScore float64
	Reason        string
}

// EnforcementError is a failure while marking a candidate.
type EnforcementError struct {
	Path      string
	RecordID  string
	Message   string
	Type      string
	Timestamp time.Time
}

// EnforcementResult summarizes one EnforceQuotaLimits call.
type EnforcementResult struct {
	// Enforced is true when usage was critical and candidates were ranked.
	Enforced bool

	// FilesMarked is the number of records marked for deletion.
	FilesMarked int

	// SpaceFreed is the byte total of marked records. Files are removed by
	// the next cleanup pass.
	SpaceFreed int64

	// TargetFiles and TargetBytes are the deficits enforcement aimed for.
	TargetFiles int
	TargetBytes int64

	Warnings []Warning
	Errors   []EnforcementError

	UsageBefore float64
	Duration    time.Duration
}
