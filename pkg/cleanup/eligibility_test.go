package cleanup

import (
	"testing"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * day)
}

func timePtr(t time.Time) *time.Time { return &t }
func strPtr(s string) *string        { return &s }

func completedRecord(ageDays int) *lifecycle.LifecycleRecord {
	return &lifecycle.LifecycleRecord{
		ID:                "rec",
		RawFilePath:       "/raw/a.jpg",
		CreationTimestamp: daysAgo(ageDays),
		Status:            lifecycle.StatusCompleted,
	}
}

func TestIsEligibleForCleanup_AgeGate(t *testing.T) {
	policy := DefaultRetentionPolicy()
	policy.MaxAgeDays = 30

	if IsEligibleForCleanup(completedRecord(10), policy, testNow) {
		t.Error("10-day-old record should not be eligible")
	}
	if !IsEligibleForCleanup(completedRecord(31), policy, testNow) {
		t.Error("31-day-old record should be eligible")
	}
}

func TestIsEligibleForCleanup_Gates(t *testing.T) {
	policy := RetentionPolicy{
		MaxAgeDays:             30,
		MaxAccessAgeDays:       7,
		PriorityImageRetention: 90,
		FailureRetentionDays:   3,
		CategoryPolicies: map[string]CategoryPolicy{
			"keep": {MaxAgeDays: 60, MaxAccessAgeDays: 20},
		},
	}

	tests := []struct {
		name   string
		record func() *lifecycle.LifecycleRecord
		want   bool
	}{
		{
			name:   "old and never accessed",
			record: func() *lifecycle.LifecycleRecord { return completedRecord(40) },
			want:   true,
		},
		{
			name: "recently accessed",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.LastAccessTimestamp = timePtr(daysAgo(2))
				return r
			},
			want: false,
		},
		{
			name: "accessed long ago",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.LastAccessTimestamp = timePtr(daysAgo(8))
				return r
			},
			want: true,
		},
		{
			name: "processing is never eligible",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(400)
				r.Status = lifecycle.StatusProcessing
				return r
			},
			want: false,
		},
		{
			name: "failed within grace period",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.Status = lifecycle.StatusFailed
				r.ProcessingTimestamp = timePtr(daysAgo(1))
				return r
			},
			want: false,
		},
		{
			name: "failed past grace period",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.Status = lifecycle.StatusFailed
				r.ProcessingTimestamp = timePtr(daysAgo(5))
				return r
			},
			want: true,
		},
		{
			name: "failed without processing timestamp uses creation",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.Status = lifecycle.StatusFailed
				return r
			},
			want: true,
		},
		{
			name: "priority within extended retention",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(60)
				r.PriorityLevel = 1
				return r
			},
			want: false,
		},
		{
			name: "priority past extended retention",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(91)
				r.PriorityLevel = 1
				return r
			},
			want: true,
		},
		{
			name: "category override age",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.Category = strPtr("keep")
				return r
			},
			want: false,
		},
		{
			name: "category override access",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(70)
				r.Category = strPtr("keep")
				r.LastAccessTimestamp = timePtr(daysAgo(10))
				return r
			},
			want: false,
		},
		{
			name: "category without override uses base policy",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.Category = strPtr("cats")
				return r
			},
			want: true,
		},
		{
			name: "marked for deletion still evaluated",
			record: func() *lifecycle.LifecycleRecord {
				r := completedRecord(40)
				r.Status = lifecycle.StatusMarkedForDeletion
				return r
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEligibleForCleanup(tt.record(), policy, testNow); got != tt.want {
				t.Errorf("IsEligibleForCleanup() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsEligibleForCleanup_WholeDays(t *testing.T) {
	policy := DefaultRetentionPolicy()
	policy.MaxAgeDays = 30

	// 29 days and 23 hours is still 29 whole days.
	r := completedRecord(0)
	r.CreationTimestamp = testNow.Add(-(30*day - time.Hour))
	if IsEligibleForCleanup(r, policy, testNow) {
		t.Error("partial day should not count")
	}
}

func TestIsEligibleForCleanup_MonotonicInAge(t *testing.T) {
	policy := RetentionPolicy{
		MaxAgeDays:             30,
		MaxAccessAgeDays:       7,
		PriorityImageRetention: 90,
		FailureRetentionDays:   2,
		CategoryPolicies: map[string]CategoryPolicy{
			"cats": {MaxAgeDays: 45, MaxAccessAgeDays: 10},
		},
	}

	variants := map[string]func(r *lifecycle.LifecycleRecord){
		"plain":     func(r *lifecycle.LifecycleRecord) {},
		"priority":  func(r *lifecycle.LifecycleRecord) { r.PriorityLevel = 2 },
		"category":  func(r *lifecycle.LifecycleRecord) { r.Category = strPtr("cats") },
		"failed":    func(r *lifecycle.LifecycleRecord) { r.Status = lifecycle.StatusFailed },
		"accessed":  func(r *lifecycle.LifecycleRecord) { r.LastAccessTimestamp = timePtr(daysAgo(20)) },
		"marked":    func(r *lifecycle.LifecycleRecord) { r.Status = lifecycle.StatusMarkedForDeletion },
		"pending":   func(r *lifecycle.LifecycleRecord) { r.Status = lifecycle.StatusPending },
		"cat+prio":  func(r *lifecycle.LifecycleRecord) { r.Category = strPtr("cats"); r.PriorityLevel = 1 },
		"processed": func(r *lifecycle.LifecycleRecord) { r.ProcessingTimestamp = timePtr(daysAgo(1)) },
	}

	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			eligibleSeen := false
			for age := 0; age <= 200; age++ {
				r := completedRecord(age)
				mutate(r)
				eligible := IsEligibleForCleanup(r, policy, testNow)
				if eligibleSeen && !eligible {
					t.Fatalf("eligible at a younger age but not at %d days", age)
				}
				eligibleSeen = eligibleSeen || eligible
			}
			if !eligibleSeen {
				t.Error("never became eligible")
			}
		})
	}
}

func TestWholeDays(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{23 * time.Hour, 0},
		{24 * time.Hour, 1},
		{49 * time.Hour, 2},
		{-time.Hour, -1},
		{-24 * time.Hour, -1},
	}
	for _, tt := range tests {
		if got := wholeDays(tt.d); got != tt.want {
			t.Errorf("wholeDays(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
