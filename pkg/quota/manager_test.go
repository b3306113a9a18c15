package quota

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"mercator-hq/keeper/pkg/lifecycle"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeLifecycle is an in-memory LifecycleManager.
type fakeLifecycle struct {
	mu          sync.Mutex
	records     []*lifecycle.LifecycleRecord
	failMark    map[string]bool
	priorityOps int

	// beforeMark mutates the stored record just before the mark re-check.
	beforeMark func(*lifecycle.LifecycleRecord)
}

func (f *fakeLifecycle) add(id string, size int64, ageDays int) *lifecycle.LifecycleRecord {
	r := &lifecycle.LifecycleRecord{
		ID:                id,
		RawFilePath:       "/raw/" + id,
		CreationTimestamp: testNow.Add(-time.Duration(ageDays) * 24 * time.Hour),
		Status:            lifecycle.StatusCompleted,
		FileSize:          size,
	}
	f.records = append(f.records, r)
	return r
}

func (f *fakeLifecycle) GetStatistics(context.Context) lifecycle.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := lifecycle.Summary{ByStatus: map[lifecycle.ProcessingStatus]int{}, ByCategory: map[string]int{}}
	for _, r := range f.records {
		s.TotalRecords++
		s.TotalSize += r.FileSize
		s.ByStatus[r.Status]++
		if r.Status != lifecycle.StatusMarkedForDeletion {
			s.ActiveRecords++
			s.ActiveSize += r.FileSize
		}
	}
	return s
}

func (f *fakeLifecycle) GetFilesByStatus(_ context.Context, status lifecycle.ProcessingStatus) []*lifecycle.LifecycleRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*lifecycle.LifecycleRecord{}
	for _, r := range f.records {
		if r.Status == status {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out
}

func (f *fakeLifecycle) GetRecordByFilePath(_ context.Context, path string) (*lifecycle.LifecycleRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.RawFilePath == path {
			copied := *r
			return &copied, true
		}
	}
	return nil, false
}

func (f *fakeLifecycle) find(id string) *lifecycle.LifecycleRecord {
	for _, r := range f.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeLifecycle) MarkForDeletionIf(_ context.Context, id string, keep func(*lifecycle.LifecycleRecord) bool) (*lifecycle.LifecycleRecord, lifecycle.MarkOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil || f.failMark[id] {
		return nil, lifecycle.MarkFailed
	}
	if f.beforeMark != nil {
		f.beforeMark(r)
	}
	copied := *r
	if !keep(&copied) {
		return &copied, lifecycle.MarkSkipped
	}
	if r.Status == lifecycle.StatusMarkedForDeletion {
		return &copied, lifecycle.MarkAlreadyMarked
	}
	r.Status = lifecycle.StatusMarkedForDeletion
	copied.Status = r.Status
	return &copied, lifecycle.MarkApplied
}

func (f *fakeLifecycle) SetPriorityLevel(_ context.Context, id string, level int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priorityOps++
	r := f.find(id)
	if r == nil {
		return false
	}
	r.PriorityLevel = level
	return true
}

func (f *fakeLifecycle) marked() int {
	n := 0
	for _, r := range f.records {
		if r.Status == lifecycle.StatusMarkedForDeletion {
			n++
		}
	}
	return n
}

type recordedEvent struct {
	eventType lifecycle.EventType
	metadata  map[string]any
}

type fakeRecorder struct {
	events []recordedEvent
}

func (r *fakeRecorder) RecordProcessingEvent(_ context.Context, t lifecycle.EventType, m map[string]any) {
	r.events = append(r.events, recordedEvent{t, m})
}

func newTestManager(lm LifecycleManager, config Config, opts ...Option) *Manager {
	opts = append(opts, WithClock(func() time.Time { return testNow }))
	return NewManager(lm, config, opts...)
}

func TestCheckQuotaStatus_CountBased(t *testing.T) {
	fake := &fakeLifecycle{}
	for i := 0; i < 96; i++ {
		fake.add(fmt.Sprintf("r%d", i), 10, 1)
	}

	tests := []struct {
		critical     float64
		wantCritical bool
	}{
		{0.95, true},
		{0.96, true},
		{0.97, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("critical=%v", tt.critical), func(t *testing.T) {
			config := DefaultConfig()
			config.MaxCount = 100
			config.Strategy = StrategyCount
			config.WarningThreshold = 0.8
			config.CriticalThreshold = tt.critical

			status := newTestManager(fake, config).CheckQuotaStatus(context.Background())

			if status.UsagePercentage != 0.96 {
				t.Errorf("UsagePercentage = %v, want 0.96", status.UsagePercentage)
			}
			if !status.IsWarning {
				t.Error("IsWarning should be true")
			}
			if status.IsCritical != tt.wantCritical {
				t.Errorf("IsCritical = %v, want %v", status.IsCritical, tt.wantCritical)
			}
		})
	}
}

func TestCheckQuotaStatus_Strategies(t *testing.T) {
	fake := &fakeLifecycle{}
	for i := 0; i < 2; i++ {
		fake.add(fmt.Sprintf("r%d", i), 300, 1)
	}
	marked := fake.add("gone", 1000, 1)
	marked.Status = lifecycle.StatusMarkedForDeletion

	tests := []struct {
		strategy Strategy
		want     float64
	}{
		{StrategyCount, 0.2},
		{StrategySize, 0.6},
		{StrategyHybrid, 0.6},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			config := DefaultConfig()
			config.MaxCount = 10
			config.MaxSize = 1000
			config.Strategy = tt.strategy

			status := newTestManager(fake, config).CheckQuotaStatus(context.Background())
			if math.Abs(status.UsagePercentage-tt.want) > 1e-9 {
				t.Errorf("UsagePercentage = %v, want %v", status.UsagePercentage, tt.want)
			}
			if status.CurrentCount != 2 || status.CurrentSize != 600 {
				t.Errorf("current = %d/%d, marked records must not count", status.CurrentCount, status.CurrentSize)
			}
		})
	}
}

func TestCheckQuotaStatus_ZeroMax(t *testing.T) {
	fake := &fakeLifecycle{}
	fake.add("a", 100, 1)

	config := DefaultConfig()
	config.MaxCount = 0
	config.MaxSize = 0

	status := newTestManager(fake, config).CheckQuotaStatus(context.Background())
	if status.UsagePercentage != 0 || status.IsWarning {
		t.Errorf("zero ceilings should report zero usage, got %+v", status)
	}
}

func TestGetQuotaWarnings(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		count    int
		size     int64
		want     []string
	}{
		{"count high", StrategyCount, 85, 0, []string{WarningHighUsage, WarningFileCountHigh}},
		{"count critical", StrategyCount, 99, 0, []string{WarningCriticalUsage, WarningFileCountHigh}},
		{"size critical", StrategySize, 1, 990, []string{WarningCriticalUsage, WarningStorageSizeHigh}},
		{"hybrid high", StrategyHybrid, 1, 850, []string{WarningHighUsage}},
		{"quiet", StrategyHybrid, 1, 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLifecycle{}
			for i := 0; i < tt.count; i++ {
				size := int64(0)
				if i == 0 {
					size = tt.size
				}
				fake.add(fmt.Sprintf("r%d", i), size, 1)
			}

			config := DefaultConfig()
			config.MaxCount = 100
			config.MaxSize = 1000
			config.Strategy = tt.strategy

			warnings := newTestManager(fake, config).GetQuotaWarnings(context.Background())
			if len(warnings) != len(tt.want) {
				t.Fatalf("warnings = %+v, want types %v", warnings, tt.want)
			}
			for i, w := range warnings {
				if w.Type != tt.want[i] {
					t.Errorf("warning[%d].Type = %q, want %q", i, w.Type, tt.want[i])
				}
			}
		})
	}
}

func TestCalculateRemovalPriority_SizeBreaksTie(t *testing.T) {
	fake := &fakeLifecycle{}
	small := fake.add("small", 1*1024*1024, 40)
	large := fake.add("large", 9*1024*1024, 40)

	m := newTestManager(fake, DefaultConfig())
	candidates := m.CalculateRemovalPriority(context.Background(), []*lifecycle.LifecycleRecord{small, large})

	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
	if candidates[0].Record.ID != "large" {
		t.Errorf("first candidate = %s, want large", candidates[0].Record.ID)
	}
	if math.Abs(candidates[0].PriorityScore-0.93) > 1e-9 {
		t.Errorf("large score = %v, want 0.93", candidates[0].PriorityScore)
	}
	if math.Abs(candidates[1].PriorityScore-0.77) > 1e-9 {
		t.Errorf("small score = %v, want 0.77", candidates[1].PriorityScore)
	}
	if candidates[0].Reason != "old file, rarely accessed, large file" {
		t.Errorf("large reason = %q", candidates[0].Reason)
	}
	if candidates[1].Reason != "old file, rarely accessed" {
		t.Errorf("small reason = %q", candidates[1].Reason)
	}
}

func TestCalculateRemovalPriority_ExcludesPriorityRecords(t *testing.T) {
	fake := &fakeLifecycle{}
	for i := 0; i < 20; i++ {
		r := fake.add(fmt.Sprintf("r%d", i), int64(i)*1024*1024, i*3)
		if i%3 == 0 {
			r.PriorityLevel = i%2 + 1
		}
	}

	candidates := newTestManager(fake, DefaultConfig()).CalculateRemovalPriority(context.Background(), nil)

	for _, c := range candidates {
		if c.Record.PriorityLevel > 0 {
			t.Errorf("priority record %s included", c.Record.ID)
		}
	}
	if len(candidates) != 13 {
		t.Errorf("candidates = %d, want 13", len(candidates))
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].PriorityScore > candidates[i-1].PriorityScore {
			t.Fatalf("candidates not sorted descending at %d", i)
		}
	}
}

func TestCalculateRemovalPriority_StableTies(t *testing.T) {
	fake := &fakeLifecycle{}
	var records []*lifecycle.LifecycleRecord
	for i := 0; i < 10; i++ {
		records = append(records, fake.add(fmt.Sprintf("r%d", i), 100, 40))
	}

	candidates := newTestManager(fake, DefaultConfig()).CalculateRemovalPriority(context.Background(), records)
	for i, c := range candidates {
		if c.Record.ID != records[i].ID {
			t.Fatalf("tie order changed: position %d is %s, want %s", i, c.Record.ID, records[i].ID)
		}
	}
}

func TestAccessScore(t *testing.T) {
	at := func(days int) *time.Time {
		ts := testNow.Add(-time.Duration(days) * 24 * time.Hour)
		return &ts
	}

	tests := []struct {
		name   string
		count  int64
		last   *time.Time
		create int
		want   float64
	}{
		{"never accessed", 0, nil, 10, 1.0},
		{"frequent", 10, at(2), 10, 0.0},
		{"once in four days", 1, at(4), 10, 0.75},
		{"accessed today counts as one day", 1, at(0), 10, 0.0},
		{"no timestamp uses creation", 2, nil, 8, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &lifecycle.LifecycleRecord{
				CreationTimestamp:   *at(tt.create),
				AccessCount:         tt.count,
				LastAccessTimestamp: tt.last,
			}
			if got := accessScore(r, testNow); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("accessScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnforceQuotaLimits_BelowCritical(t *testing.T) {
	fake := &fakeLifecycle{}
	for i := 0; i < 85; i++ {
		fake.add(fmt.Sprintf("r%d", i), 1, 40)
	}
	recorder := &fakeRecorder{}

	config := DefaultConfig()
	config.MaxCount = 100
	config.Strategy = StrategyCount

	result := newTestManager(fake, config, WithEventRecorder(recorder)).EnforceQuotaLimits(context.Background())

	if result.Enforced || result.FilesMarked != 0 || fake.marked() != 0 {
		t.Errorf("no records should be marked below critical, got %+v", result)
	}
	if len(result.Warnings) == 0 {
		t.Error("warnings should still be reported")
	}
	if len(recorder.events) != 0 {
		t.Error("quota_enforced must not be emitted without enforcement")
	}
}

func TestEnforceQuotaLimits_CountBased(t *testing.T) {
	fake := &fakeLifecycle{}
	for i := 0; i < 10; i++ {
		r := fake.add(fmt.Sprintf("r%d", i), 100, 40+i)
		if i == 9 {
			r.PriorityLevel = 1
		}
	}
	recorder := &fakeRecorder{}

	config := Config{
		MaxCount:          10,
		MaxSize:           1 << 30,
		Strategy:          StrategyCount,
		WarningThreshold:  0.5,
		CriticalThreshold: 0.9,
	}
	m := newTestManager(fake, config, WithEventRecorder(recorder))
	ctx := context.Background()

	result := m.EnforceQuotaLimits(ctx)

	if !result.Enforced || result.TargetFiles != 5 {
		t.Fatalf("result = %+v, want enforcement targeting 5 files", result)
	}
	if result.FilesMarked != 5 || fake.marked() != 5 {
		t.Errorf("FilesMarked = %d (store %d), want 5", result.FilesMarked, fake.marked())
	}
	if result.SpaceFreed != 500 {
		t.Errorf("SpaceFreed = %d, want 500", result.SpaceFreed)
	}
	if fake.find("r9").Status == lifecycle.StatusMarkedForDeletion {
		t.Error("priority record must not be marked")
	}

	if len(recorder.events) != 1 || recorder.events[0].eventType != lifecycle.EventQuotaEnforced {
		t.Fatalf("events = %+v, want one quota_enforced", recorder.events)
	}
	if recorder.events[0].metadata["files_removed"] != 5 {
		t.Errorf("event metadata = %v", recorder.events[0].metadata)
	}

	// Usage is back at the warning threshold; a second run only warns.
	if status := m.CheckQuotaStatus(ctx); status.UsagePercentage != 0.5 || status.IsCritical {
		t.Errorf("status after enforcement = %+v", status)
	}
	if again := m.EnforceQuotaLimits(ctx); again.Enforced {
		t.Error("second enforcement should not run")
	}
}

func TestEnforceQuotaLimits_HybridStopsOnEitherBound(t *testing.T) {
	fake := &fakeLifecycle{}
	for i := 0; i < 10; i++ {
		fake.add(fmt.Sprintf("r%d", i), 100, 40)
	}

	config := Config{
		MaxCount:          100,
		MaxSize:           1000,
		Strategy:          StrategyHybrid,
		WarningThreshold:  0.5,
		CriticalThreshold: 0.9,
	}
	result := newTestManager(fake, config).EnforceQuotaLimits(context.Background())

	if result.TargetFiles != 0 || result.TargetBytes != 500 {
		t.Fatalf("targets = %d files / %d bytes, want 0 / 500", result.TargetFiles, result.TargetBytes)
	}
	if result.FilesMarked != 5 {
		t.Errorf("FilesMarked = %d, want 5", result.FilesMarked)
	}
}

func TestEnforceQuotaLimits_MarkFailures(t *testing.T) {
	fake := &fakeLifecycle{failMark: map[string]bool{"r0": true}}
	for i := 0; i < 4; i++ {
		fake.add(fmt.Sprintf("r%d", i), 100, 40)
	}

	config := Config{
		MaxCount:          4,
		MaxSize:           1 << 30,
		Strategy:          StrategyCount,
		WarningThreshold:  0.5,
		CriticalThreshold: 0.9,
	}
	result := newTestManager(fake, config).EnforceQuotaLimits(context.Background())

	if len(result.Errors) != 1 || result.Errors[0].Type != ErrTypeMark || result.Errors[0].RecordID != "r0" {
		t.Errorf("Errors = %+v, want one quota_mark_error for r0", result.Errors)
	}
	if result.FilesMarked != 2 {
		t.Errorf("FilesMarked = %d, want 2", result.FilesMarked)
	}
}

func TestReserveSpaceForPriorityImages(t *testing.T) {
	fake := &fakeLifecycle{}
	fake.add("a", 40, 1)
	fake.add("b", 50, 1)
	fake.add("big", 500, 1)

	config := DefaultConfig()
	config.MaxSize = 1000
	config.ReservedSpacePercentage = 0.1
	m := newTestManager(fake, config)
	ctx := context.Background()

	paths := []string{"/raw/a", "/raw/b", "/raw/unknown"}
	if !m.ReserveSpaceForPriorityImages(ctx, paths) {
		t.Fatal("reservation within budget should succeed")
	}
	if fake.find("a").PriorityLevel != 1 || fake.find("b").PriorityLevel != 1 {
		t.Error("priority levels should be raised to 1")
	}
	ops := fake.priorityOps

	if !m.ReserveSpaceForPriorityImages(ctx, paths) {
		t.Fatal("second reservation should succeed")
	}
	if fake.priorityOps != ops || fake.find("a").PriorityLevel != 1 {
		t.Error("second reservation should not change priority levels")
	}

	if m.ReserveSpaceForPriorityImages(ctx, []string{"/raw/big"}) {
		t.Error("reservation over budget should fail")
	}
	if fake.find("big").PriorityLevel != 0 {
		t.Error("failed reservation must not mutate records")
	}
}

func TestReserveSpaceKeepsHigherPriority(t *testing.T) {
	fake := &fakeLifecycle{}
	fake.add("vip", 10, 1).PriorityLevel = 3

	config := DefaultConfig()
	config.MaxSize = 1000
	m := newTestManager(fake, config)

	if !m.ReserveSpaceForPriorityImages(context.Background(), []string{"/raw/vip"}) {
		t.Fatal("reservation should succeed")
	}
	if fake.find("vip").PriorityLevel != 3 {
		t.Errorf("PriorityLevel = %d, want 3", fake.find("vip").PriorityLevel)
	}
}

func TestConfigure(t *testing.T) {
	m := newTestManager(&fakeLifecycle{}, DefaultConfig())

	bad := DefaultConfig()
	bad.Strategy = "weighted"
	if err := m.Configure(bad); err == nil {
		t.Error("unknown strategy should be rejected")
	}
	if m.Config().Strategy != StrategyHybrid {
		t.Error("rejected configuration must not be applied")
	}

	good := DefaultConfig()
	good.MaxCount = 5
	good.Strategy = StrategyCount
	if err := m.Configure(good); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if m.Config().MaxCount != 5 {
		t.Error("configuration not applied")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative count", func(c *Config) { c.MaxCount = -1 }},
		{"negative size", func(c *Config) { c.MaxSize = -1 }},
		{"zero warning", func(c *Config) { c.WarningThreshold = 0 }},
		{"critical below warning", func(c *Config) { c.CriticalThreshold = 0.5 }},
		{"reserved above one", func(c *Config) { c.ReservedSpacePercentage = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestEnforceQuotaLimits_SkipsCandidatesChangedSinceRanking(t *testing.T) {
	fake := &fakeLifecycle{}
	fake.add("old", 100, 60)
	fake.add("newer", 100, 5)

	// The highest ranked record gains priority after ranking.
	fake.beforeMark = func(r *lifecycle.LifecycleRecord) {
		if r.ID == "old" {
			r.PriorityLevel = 1
		}
	}

	config := Config{
		MaxCount:          2,
		MaxSize:           1 << 30,
		Strategy:          StrategyCount,
		WarningThreshold:  0.5,
		CriticalThreshold: 0.9,
	}
	result := newTestManager(fake, config).EnforceQuotaLimits(context.Background())

	if len(result.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", result.Errors)
	}
	if result.FilesMarked != 1 {
		t.Fatalf("FilesMarked = %d, want 1", result.FilesMarked)
	}
	if fake.find("old").Status != lifecycle.StatusCompleted {
		t.Error("record that gained priority must not be marked")
	}
	if fake.find("newer").Status != lifecycle.StatusMarkedForDeletion {
		t.Error("next candidate should be marked instead")
	}
}
