package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSimpleProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "files")

	progress.Start(4)
	progress.Update(2)
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "50.0%") {
		t.Errorf("expected half-way render, got %q", output)
	}
	if !strings.Contains(output, "(4/4 files)") {
		t.Errorf("expected completed render, got %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Finish should end the line")
	}
}

func TestSimpleProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "")

	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if buf.String() != "\n" {
		t.Errorf("zero total should only end the line, got %q", buf.String())
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "files")

	progress.Start(10)
	progress.Error(errors.New("permission denied"))

	if !strings.Contains(buf.String(), "error: permission denied") {
		t.Errorf("expected error line, got %q", buf.String())
	}
}

func TestNoopProgress(t *testing.T) {
	var p ProgressReporter = NoopProgress{}
	p.Start(10)
	p.Update(5)
	p.Error(errors.New("ignored"))
	p.Finish()
}
