package quota

import (
	"strings"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

const (
	ageWeight      = 0.3
	accessWeight   = 0.4
	sizeWeight     = 0.2
	categoryWeight = 0.1

	// ageHorizonDays is the age at which the age score saturates.
	ageHorizonDays = 30.0

	// largeFileBytes is the size at which the size score saturates.
	largeFileBytes = 10 * 1024 * 1024

	// categoryScore is the same for every category.
	categoryScore = 0.5

	// reasonThreshold is the sub-score above which a factor is named in
	// the removal reason.
	reasonThreshold = 0.7
)

// scores holds the per-factor sub-scores of a record, each in [0, 1]
// where higher means more removable.
type scores struct {
	age      float64
	access   float64
	size     float64
	category float64
}

func (s scores) total() float64 {
	return ageWeight*s.age + accessWeight*s.access + sizeWeight*s.size + categoryWeight*s.category
}

func (s scores) reason() string {
	var reasons []string
	if s.age > reasonThreshold {
		reasons = append(reasons, "old file")
	}
	if s.access > reasonThreshold {
		reasons = append(reasons, "rarely accessed")
	}
	if s.size > reasonThreshold {
		reasons = append(reasons, "large file")
	}
	if len(reasons) == 0 {
		return "low overall score"
	}
	return strings.Join(reasons, ", ")
}

func scoreRecord(record *lifecycle.LifecycleRecord, now time.Time) scores {
	return scores{
		age:      ageScore(record, now),
		access:   accessScore(record, now),
		size:     sizeScore(record),
		category: categoryScore,
	}
}

func ageScore(record *lifecycle.LifecycleRecord, now time.Time) float64 {
	days := float64(wholeDays(now.Sub(record.CreationTimestamp)))
	return clamp(days / ageHorizonDays)
}

// accessScore is 1 for never-accessed records and falls toward 0 as the
// access rate approaches one access per day.
func accessScore(record *lifecycle.LifecycleRecord, now time.Time) float64 {
	if record.AccessCount == 0 {
		return 1.0
	}

	since := record.CreationTimestamp
	if record.LastAccessTimestamp != nil {
		since = *record.LastAccessTimestamp
	}
	days := wholeDays(now.Sub(since))
	if days < 1 {
		days = 1
	}

	frequency := float64(record.AccessCount) / float64(days)
	return clamp(1.0 - min(frequency, 1.0))
}

func sizeScore(record *lifecycle.LifecycleRecord) float64 {
	return clamp(float64(record.FileSize) / largeFileBytes)
}

func clamp(v float64) float64 {
	return max(0.0, min(v, 1.0))
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
