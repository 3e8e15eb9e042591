package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strand/internal/logging"
	"strand/internal/services"
)

func TestNewWritesConsoleFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "strand.log")

	logger, err := logging.New(logging.Options{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("logging.New failed: %v", err)
	}

	logger.Info("run admitted",
		logging.String(logging.FieldComponent, "api"),
		logging.String(logging.FieldRunID, "abc123"),
	)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "INFO api: run admitted") {
		t.Fatalf("console line missing component prefix: %q", out)
	}
	if !strings.Contains(out, "run_id=abc123") {
		t.Fatalf("console line missing run id attr: %q", out)
	}
}

func TestNewWritesJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "strand.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("logging.New failed: %v", err)
	}

	logger.Debug("stage committed", logging.String(logging.FieldStage, "trim_fastp"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"stage committed"`) {
		t.Fatalf("json line missing msg key: %q", out)
	}
	if !strings.Contains(out, `"stage":"trim_fastp"`) {
		t.Fatalf("json line missing stage attr: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsAnnotations(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "strand.log")

	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New failed: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "run-9")
	ctx = services.WithStage(ctx, "align_star")
	logging.WithContext(ctx, logger).Info("stage started")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "run_id=run-9") || !strings.Contains(out, "stage=align_star") {
		t.Fatalf("context fields missing: %q", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("discarded")
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("nop logger should report disabled")
	}
}
