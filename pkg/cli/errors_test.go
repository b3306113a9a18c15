package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("storage.path", "must not be empty")

	expected := "config error in storage.path: must not be empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlying := errors.New("database is locked")
	err := NewCommandError("cleanup", underlying)

	if err.Error() != "command cleanup failed: database is locked" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should see through CommandError")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "plain", err: errors.New("boom"), want: ExitFailure},
		{name: "config", err: NewConfigError("quota", "bad"), want: ExitConfig},
		{
			name: "wrapped config",
			err:  NewCommandError("run", fmt.Errorf("load: %w", NewConfigError("quota", "bad"))),
			want: ExitConfig,
		},
		{name: "command", err: NewCommandError("run", errors.New("boom")), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
