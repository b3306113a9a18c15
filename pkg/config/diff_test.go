package config

import (
	"testing"

	"mercator-hq/keeper/pkg/cleanup"
)

func TestDiff(t *testing.T) {
	old := Default()
	updated := Default()
	updated.Quota.MaxCount = 20000
	updated.Maintenance.Schedule = "0 * * * *"
	updated.Retention.CategoryPolicies = map[string]cleanup.CategoryPolicy{
		"receipts": {MaxAgeDays: 365},
	}

	changes, err := Diff(old, updated)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	want := []Change{
		{Key: "maintenance.schedule", OldValue: DefaultMaintenanceSchedule, NewValue: "0 * * * *"},
		{Key: "quota.max_count", OldValue: "10000", NewValue: "20000"},
		{Key: "retention.category_policies.receipts.max_access_age_days", OldValue: "", NewValue: "0"},
		{Key: "retention.category_policies.receipts.max_age_days", OldValue: "", NewValue: "365"},
		{Key: "retention.category_policies.receipts.priority_multiplier", OldValue: "", NewValue: "0"},
		{Key: "retention.category_policies.receipts.reserved_space_mb", OldValue: "", NewValue: "0"},
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d changes, got %d: %+v", len(want), len(changes), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}
}

func TestDiff_Identical(t *testing.T) {
	changes, err := Diff(Default(), Default())
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
}

func TestFlatten(t *testing.T) {
	flat, err := Flatten(Default())
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	tests := map[string]string{
		"storage.path":             DefaultStoragePath,
		"storage.wal_mode":         "true",
		"quota.strategy":           "hybrid",
		"telemetry.logging.format": DefaultLoggingFormat,
	}
	for key, want := range tests {
		if got := flat[key]; got != want {
			t.Errorf("flat[%q] = %q, want %q", key, got, want)
		}
	}

	empty, err := Flatten(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("Flatten(nil) = %v, %v", empty, err)
	}
}
