package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mercator-hq/keeper/pkg/cli"
)

// executeCommand runs the root command with args after restoring every
// flag to its default, and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

type testEnv struct {
	dir        string
	configPath string
	rawDir     string
	catDir     string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "keeper.yaml"),
		rawDir:     filepath.Join(dir, "raw"),
		catDir:     filepath.Join(dir, "categories"),
	}
	for _, d := range []string{env.rawDir, env.catDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	content := fmt.Sprintf(`
storage:
  path: %q
  raw_dir: %q
  categories_dir: %q
retention:
  max_age_days: 0
  max_access_age_days: 0
  failure_retention_days: 0
telemetry:
  logging:
    level: error
%s`, filepath.Join(dir, "keeper.db"), env.rawDir, env.catDir, extra)

	if err := os.WriteFile(env.configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) writeRaw(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.rawDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *testEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := executeCommand(t, append(args, "--config", e.configPath)...)
	if err != nil {
		t.Fatalf("keeper %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *testEnv) createRecord(t *testing.T, path string) string {
	t.Helper()
	var created []map[string]string
	out := e.run(t, "records", "create", path, "--format", "json")
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(created) != 1 || created[0]["id"] == "" {
		t.Fatalf("unexpected create output %v", created)
	}
	return created[0]["id"]
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"run"},
		{"maintain"},
		{"cleanup"},
		{"quota", "status"},
		{"quota", "enforce"},
		{"stats", "summary"},
		{"stats", "metrics"},
		{"stats", "anomalies"},
		{"stats", "aggregate"},
		{"records", "create"},
		{"records", "scan"},
		{"records", "get"},
		{"records", "list"},
		{"records", "status"},
		{"records", "access"},
		{"records", "priority"},
		{"records", "duplicate"},
		{"records", "orphans"},
		{"config", "validate"},
		{"config", "show"},
		{"config", "history"},
		{"completion"},
		{"version"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %q not registered", strings.Join(path, " "))
		}
	}
}

func TestRecordsLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	path := env.writeRaw(t, "receipt.jpg", "jpeg bytes")
	id := env.createRecord(t, path)

	env.run(t, "records", "status", id, "processing")
	env.run(t, "records", "status", id, "completed",
		"--category", "receipts",
		"--categorized-path", filepath.Join(env.catDir, "receipts", "receipt.jpg"))

	var record recordView
	out := env.run(t, "records", "get", path, "--format", "json")
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if record.ID != id || record.Status != "completed" || record.Category != "receipts" {
		t.Errorf("unexpected record %+v", record)
	}
	if record.FileSize != int64(len("jpeg bytes")) {
		t.Errorf("expected file size %d, got %d", len("jpeg bytes"), record.FileSize)
	}

	if _, err := executeCommand(t, "records", "status", id, "pending", "--config", env.configPath); err == nil {
		t.Error("backward transition should fail without --force")
	}

	out = env.run(t, "records", "list", "--status", "completed", "--format", "csv")
	if !strings.HasPrefix(out, "id,status,") || !strings.Contains(out, id) {
		t.Errorf("unexpected csv output %q", out)
	}

	env.run(t, "records", "access", id, "--type", "send")
	env.run(t, "records", "priority", id, "2")
	out = env.run(t, "records", "get", id, "--format", "json")
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatal(err)
	}
	if record.AccessCount != 1 || record.PriorityLevel != 2 || record.LastAccessedAt == nil {
		t.Errorf("access and priority not applied: %+v", record)
	}
}

func TestRecordsErrors(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := executeCommand(t, "records", "get", "missing", "--config", env.configPath)
	if err == nil || cli.ExitCode(err) != cli.ExitFailure {
		t.Errorf("expected runtime failure for unknown record, got %v", err)
	}

	_, err = executeCommand(t, "records", "status", "x", "archived", "--config", env.configPath)
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("expected config exit code for unknown status, got %v", err)
	}

	_, err = executeCommand(t, "quota", "status", "--format", "xml", "--config", env.configPath)
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("expected config exit code for unknown format, got %v", err)
	}

	_, err = executeCommand(t, "quota", "status", "--config", filepath.Join(env.dir, "missing.yaml"))
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("explicit missing config file should fail, got %v", err)
	}
}

func TestRecordsScanAndDuplicate(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeRaw(t, "a.jpg", "one")
	env.writeRaw(t, "b.jpg", "two")
	if err := os.MkdirAll(filepath.Join(env.rawDir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	env.writeRaw(t, filepath.Join("nested", "c.jpg"), "three")

	var summary map[string]int
	out := env.run(t, "records", "scan", env.rawDir, "--format", "json")
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if summary["files"] != 3 || summary["created"] != 3 {
		t.Errorf("unexpected first scan %v", summary)
	}

	out = env.run(t, "records", "scan", env.rawDir, "--format", "json")
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatal(err)
	}
	if summary["created"] != 0 || summary["skipped"] != 3 {
		t.Errorf("second scan should skip existing records, got %v", summary)
	}

	copyPath := filepath.Join(env.dir, "copy.jpg")
	if err := os.WriteFile(copyPath, []byte("two"), 0644); err != nil {
		t.Fatal(err)
	}
	var dup map[string]any
	out = env.run(t, "records", "duplicate", copyPath, "--format", "json")
	if err := json.Unmarshal([]byte(out), &dup); err != nil {
		t.Fatal(err)
	}
	if dup["duplicate"] != true {
		t.Errorf("expected duplicate, got %v", dup)
	}
}

func TestCleanupDryRunThenRun(t *testing.T) {
	env := newTestEnv(t, "")
	path := env.writeRaw(t, "broken.jpg", "not an image")
	id := env.createRecord(t, path)
	env.run(t, "records", "status", id, "processing")
	env.run(t, "records", "status", id, "failed", "--reason", "unreadable")

	var plan struct {
		Candidates []recordView `json:"candidates"`
	}
	out := env.run(t, "cleanup", "--dry-run", "--format", "json")
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(plan.Candidates) != 1 || plan.Candidates[0].ID != id {
		t.Fatalf("expected the failed record as candidate, got %+v", plan.Candidates)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("dry run must not remove files")
	}

	var result cleanupResultView
	out = env.run(t, "cleanup", "--format", "json")
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if result.RawFilesRemoved != 1 || result.SpaceFreed != int64(len("not an image")) {
		t.Errorf("unexpected cleanup result %+v", result)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("raw file should be removed")
	}

	var record recordView
	out = env.run(t, "records", "get", id, "--format", "json")
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatal(err)
	}
	if record.Status != "marked_for_deletion" {
		t.Errorf("record should be kept as marked_for_deletion, got %s", record.Status)
	}
}

func TestQuotaStatusAndEnforce(t *testing.T) {
	env := newTestEnv(t, `
quota:
  max_count: 1
  strategy: count_based
`)
	for _, name := range []string{"a.jpg", "b.jpg"} {
		id := env.createRecord(t, env.writeRaw(t, name, name))
		env.run(t, "records", "status", id, "processing")
		env.run(t, "records", "status", id, "completed")
	}

	var status struct {
		Status struct {
			CurrentCount int
			IsCritical   bool
		} `json:"status"`
	}
	out := env.run(t, "quota", "status", "--format", "json")
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if status.Status.CurrentCount != 2 || !status.Status.IsCritical {
		t.Errorf("expected critical usage with 2 records, got %+v", status.Status)
	}

	var result struct {
		Enforced    bool
		FilesMarked int
	}
	out = env.run(t, "quota", "enforce", "--format", "json")
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !result.Enforced || result.FilesMarked < 1 {
		t.Errorf("expected enforcement to mark records, got %+v", result)
	}

	out = env.run(t, "records", "list", "--status", "marked_for_deletion", "--format", "csv")
	if lines := strings.Count(out, "\n"); lines != result.FilesMarked+1 {
		t.Errorf("expected %d marked rows, got output %q", result.FilesMarked, out)
	}
}

func TestStatsCommands(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.createRecord(t, env.writeRaw(t, "a.jpg", "a"))
	env.run(t, "records", "status", id, "processing")
	env.run(t, "records", "status", id, "completed", "--category", "receipts")

	out := env.run(t, "stats", "summary")
	if !strings.Contains(out, "status.completed") || !strings.Contains(out, "category.receipts") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	var metrics struct {
		TotalImagesStored         int64
		SuccessfulClassifications int64
	}
	out = env.run(t, "stats", "metrics", "--format", "json")
	if err := json.Unmarshal([]byte(out), &metrics); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if metrics.TotalImagesStored != 1 || metrics.SuccessfulClassifications != 1 {
		t.Errorf("unexpected metrics %+v", metrics)
	}

	out = env.run(t, "stats", "aggregate", "--period", "hourly", "--format", "csv")
	if !strings.HasPrefix(out, "bucket,event_type,") || !strings.Contains(out, "image_stored") {
		t.Errorf("unexpected aggregate output %q", out)
	}

	if _, err := executeCommand(t, "stats", "aggregate", "--period", "yearly", "--config", env.configPath); cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("expected config error for unknown period, got %v", err)
	}

	out = env.run(t, "stats", "anomalies", "--format", "json")
	if strings.TrimSpace(out) == "" {
		t.Error("anomalies should print a JSON array")
	}
}

func TestMaintainCommand(t *testing.T) {
	env := newTestEnv(t, "")
	path := env.writeRaw(t, "old.jpg", "old")
	id := env.createRecord(t, path)
	env.run(t, "records", "status", id, "marked_for_deletion")

	var view tickView
	out := env.run(t, "maintain", "--format", "json")
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if view.FilesRemoved != 1 || view.Error != "" {
		t.Errorf("unexpected tick %+v", view)
	}
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t, "")

	out := env.run(t, "config", "validate")
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("unexpected validate output %q", out)
	}

	out = env.run(t, "config", "show")
	if !strings.Contains(out, "raw_dir: "+env.rawDir) || !strings.Contains(out, "max_age_days: 0") {
		t.Errorf("unexpected show output:\n%s", out)
	}

	out = env.run(t, "config", "history", "--format", "json")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty history, got %q", out)
	}

	out = env.run(t, "run", "--dry-run")
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("unexpected dry-run output %q", out)
	}
}
