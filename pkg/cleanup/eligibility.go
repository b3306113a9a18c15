package cleanup

import (
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

const day = 24 * time.Hour

// wholeDays returns the number of whole days in d, rounding toward negative
// infinity.
func wholeDays(d time.Duration) int {
	days := d / day
	if d < 0 && d%day != 0 {
		days--
	}
	return int(days)
}

// IsEligibleForCleanup reports whether record may be removed at now under
// policy. Every gate must pass:
//
//   - age of at least MaxAgeDays
//   - if ever accessed, last access at least MaxAccessAgeDays ago
//   - not currently processing
//   - failed records: FailureRetentionDays since the processing timestamp
//     (or creation if never stamped)
//   - priority records: age of at least PriorityImageRetention
//   - category override: its age and access gates as well
func IsEligibleForCleanup(record *lifecycle.LifecycleRecord, policy RetentionPolicy, now time.Time) bool {
	if record == nil {
		return false
	}

	ageDays := wholeDays(now.Sub(record.CreationTimestamp))
	if ageDays < policy.MaxAgeDays {
		return false
	}

	if record.LastAccessTimestamp != nil {
		if wholeDays(now.Sub(*record.LastAccessTimestamp)) < policy.MaxAccessAgeDays {
			return false
		}
	}

	if record.Status == lifecycle.StatusProcessing {
		return false
	}

	if record.Status == lifecycle.StatusFailed {
		failedAt := record.CreationTimestamp
		if record.ProcessingTimestamp != nil {
			failedAt = *record.ProcessingTimestamp
		}
		if wholeDays(now.Sub(failedAt)) < policy.FailureRetentionDays {
			return false
		}
	}

	if record.PriorityLevel > 0 && ageDays < policy.PriorityImageRetention {
		return false
	}

	if record.Category != nil {
		if catPolicy, ok := policy.CategoryPolicies[*record.Category]; ok {
			if ageDays < catPolicy.MaxAgeDays {
				return false
			}
			if record.LastAccessTimestamp != nil &&
				wholeDays(now.Sub(*record.LastAccessTimestamp)) < catPolicy.MaxAccessAgeDays {
				return false
			}
		}
	}

	return true
}
