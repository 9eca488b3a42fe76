package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lexcase/internal/config"
	"lexcase/internal/logging"
	"lexcase/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller", logging.String(logging.FieldComponent, "analysis"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if !strings.Contains(string(content), "INFO analysis: message without caller") {
		t.Fatalf("expected component prefix, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "json message" || entry["k"] != "v" {
		t.Fatalf("unexpected json entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key in %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCaseID(ctx, "case-1")
	ctx = services.WithStage(ctx, "facts")
	ctx = services.WithStageIndex(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, base).Info("contextual log")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldCaseID] != "case-1" {
		t.Fatalf("case id missing: %v", entry)
	}
	if entry[logging.FieldStage] != "facts" {
		t.Fatalf("stage missing: %v", entry)
	}
	if entry[logging.FieldStageIndex] != float64(3) {
		t.Fatalf("stage index missing: %v", entry)
	}
	if entry[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation id missing: %v", entry)
	}
}

func TestTeeLoggerDuplicatesRecords(t *testing.T) {
	var first, second bytes.Buffer
	base := slog.New(slog.NewTextHandler(&first, nil))
	logger := logging.TeeLogger(base, slog.NewTextHandler(&second, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("info only")
	logger.Warn("both")

	if !strings.Contains(first.String(), "info only") || !strings.Contains(first.String(), "both") {
		t.Fatalf("base handler missed records: %q", first.String())
	}
	if strings.Contains(second.String(), "info only") || !strings.Contains(second.String(), "both") {
		t.Fatalf("second handler should only get warnings: %q", second.String())
	}
}

func TestConsoleLoggerLiftsCaseAndStage(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithStageIndex(services.WithCaseID(context.Background(), "0123456789abcdef"), 2)
	component := logging.NewComponentLogger(logger, "smart")
	logging.WithContext(ctx, component).Info("stage completed", logging.Int("retries", 1))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	want := "INFO smart [case 01234567 · stage 3]: stage completed retries=1"
	if !strings.Contains(string(content), want) {
		t.Fatalf("expected %q in %q", want, content)
	}
	if strings.Contains(string(content), "case_id=") {
		t.Fatalf("case id should only appear in the prefix: %q", content)
	}
}
