package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/keeper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "json", config: Config{Level: "info", Format: "json"}},
		{name: "text", config: Config{Level: "debug", Format: "text"}},
		{name: "defaults", config: Config{}},
		{name: "invalid level", config: Config{Level: "trace"}, wantErr: true},
		{name: "invalid format", config: Config{Format: "console"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "warn", Format: "text", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn message should be written")
	}
}

func TestContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithOperation(context.Background(), "cleanup")
	ctx = WithRecordID(ctx, "rec-1")
	ctx = WithTransactionID(ctx, "tx-9")

	logger.With("component", "cleanup.manager").InfoContext(ctx, "file deleted", "path", "/raw/a.jpg")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
	}

	want := map[string]string{
		"msg":            "file deleted",
		"component":      "cleanup.manager",
		"operation":      "cleanup",
		"record_id":      "rec-1",
		"transaction_id": "tx-9",
		"path":           "/raw/a.jpg",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("entry[%q] = %v, want %q", key, entry[key], value)
		}
	}
	if _, ok := entry["tick_id"]; ok {
		t.Error("unset context fields should be omitted")
	}
}

func TestContextGetters(t *testing.T) {
	ctx := context.Background()
	if GetOperation(ctx) != "" || GetRecordID(ctx) != "" || GetTickID(ctx) != "" || GetTransactionID(ctx) != "" {
		t.Error("empty context should yield empty values")
	}

	ctx = WithTickID(WithOperation(ctx, "maintenance"), "tick-1")
	if GetOperation(ctx) != "maintenance" || GetTickID(ctx) != "tick-1" {
		t.Error("getters should return stored values")
	}
}

func TestSetup(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	buf := &bytes.Buffer{}
	cfg := FromConfig(config.LoggingConfig{Level: "debug", Format: "text"})
	cfg.Writer = buf

	if _, err := Setup(cfg); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	slog.Default().With("component", "quota.manager").Debug("usage computed")
	if !strings.Contains(buf.String(), "component=quota.manager") {
		t.Errorf("default logger not installed, output %q", buf.String())
	}
}
