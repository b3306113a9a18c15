package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/keeper/pkg/quota"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: "/var/lib/keeper/keeper.db"
  driver: "sqlite"
  busy_timeout: "10s"
  raw_dir: "/srv/raw"
  categories_dir: "/srv/categories"

retention:
  max_age_days: 14
  category_policies:
    receipts:
      max_age_days: 365
      max_access_age_days: 30

quota:
  max_count: 500
  strategy: "count_based"

maintenance:
  schedule: "0 * * * *"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Storage.Path != "/var/lib/keeper/keeper.db" {
		t.Errorf("expected storage path %q, got %q", "/var/lib/keeper/keeper.db", cfg.Storage.Path)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected driver %q, got %q", "sqlite", cfg.Storage.Driver)
	}
	if cfg.Storage.BusyTimeout != 10*time.Second {
		t.Errorf("expected busy timeout %v, got %v", 10*time.Second, cfg.Storage.BusyTimeout)
	}
	if cfg.Retention.MaxAgeDays != 14 {
		t.Errorf("expected max age 14, got %d", cfg.Retention.MaxAgeDays)
	}
	if cfg.Retention.MaxAccessAgeDays != 7 {
		t.Errorf("unset retention fields should keep defaults, got %d", cfg.Retention.MaxAccessAgeDays)
	}
	if p := cfg.Retention.CategoryPolicies["receipts"]; p.MaxAgeDays != 365 || p.MaxAccessAgeDays != 30 {
		t.Errorf("unexpected category policy %+v", p)
	}
	if cfg.Quota.MaxCount != 500 || cfg.Quota.Strategy != quota.StrategyCount {
		t.Errorf("unexpected quota %+v", cfg.Quota)
	}
	if cfg.Quota.MaxSize != 1<<30 {
		t.Errorf("unset quota size should keep default, got %d", cfg.Quota.MaxSize)
	}
	if !cfg.Storage.WALMode || !cfg.Maintenance.Enabled || !cfg.Telemetry.Metrics.Enabled {
		t.Error("absent booleans should keep their defaults")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_ExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
storage:
  wal_mode: false
maintenance:
  enabled: false
  schedule: "not a schedule"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.WALMode {
		t.Error("explicit wal_mode: false should be kept")
	}
	if cfg.Maintenance.Enabled {
		t.Error("explicit enabled: false should be kept")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "storage: [",
			wantErr: "failed to parse",
		},
		{
			name: "invalid driver",
			content: `
storage:
  driver: "postgres"
`,
			wantErr: "storage.driver",
		},
		{
			name: "invalid schedule",
			content: `
maintenance:
  schedule: "every hour"
`,
			wantErr: "maintenance.schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: "from-file.db"
quota:
  max_count: 100
`)

	t.Setenv("KEEPER_STORAGE_PATH", "from-env.db")
	t.Setenv("KEEPER_QUOTA_MAX_COUNT", "42")
	t.Setenv("KEEPER_QUOTA_MAX_SIZE", "2048")
	t.Setenv("KEEPER_QUOTA_STRATEGY", "size_based")
	t.Setenv("KEEPER_STORAGE_WAL_MODE", "false")
	t.Setenv("KEEPER_RESILIENCE_RECOVERY_TIMEOUT", "2m")
	t.Setenv("KEEPER_RETENTION_MAX_AGE_DAYS", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Storage.Path != "from-env.db" {
		t.Errorf("expected env path, got %q", cfg.Storage.Path)
	}
	if cfg.Quota.MaxCount != 42 || cfg.Quota.MaxSize != 2048 || cfg.Quota.Strategy != quota.StrategySize {
		t.Errorf("unexpected quota %+v", cfg.Quota)
	}
	if cfg.Storage.WALMode {
		t.Error("expected WAL disabled by env")
	}
	if cfg.Resilience.RecoveryTimeout != 2*time.Minute {
		t.Errorf("expected recovery timeout 2m, got %v", cfg.Resilience.RecoveryTimeout)
	}
	if cfg.Retention.MaxAgeDays != 30 {
		t.Errorf("unparsable override should be ignored, got %d", cfg.Retention.MaxAgeDays)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidResult(t *testing.T) {
	path := writeConfig(t, "{}")
	t.Setenv("KEEPER_QUOTA_STRATEGY", "weighted")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error after env overrides")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
	if cfg.Storage.Path != DefaultStoragePath || cfg.Storage.Driver != DefaultStorageDriver {
		t.Errorf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Statistics.CacheTTL != 5*time.Minute || cfg.Statistics.EventRetentionDays != 90 {
		t.Errorf("unexpected statistics defaults %+v", cfg.Statistics)
	}
	if cfg.Quota != quota.DefaultConfig() {
		t.Errorf("unexpected quota defaults %+v", cfg.Quota)
	}

	before := *cfg
	ApplyDefaults(cfg)
	if cfg.Storage != before.Storage || cfg.Telemetry != before.Telemetry {
		t.Error("ApplyDefaults should be idempotent")
	}
}

func TestLoadDefaultsWithEnvOverrides(t *testing.T) {
	t.Setenv("KEEPER_STORAGE_PATH", "env.db")

	cfg, err := LoadDefaultsWithEnvOverrides()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Path != "env.db" {
		t.Errorf("expected env path, got %q", cfg.Storage.Path)
	}

	t.Setenv("KEEPER_QUOTA_STRATEGY", "weighted")
	if _, err := LoadDefaultsWithEnvOverrides(); err == nil {
		t.Fatal("expected validation error")
	}
}
