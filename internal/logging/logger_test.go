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

	"jimaku/internal/config"
	"jimaku/internal/logging"
	"jimaku/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("chunk accepted", logging.Chunk(4), logging.Attempt(2))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "jimaku.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log file is not JSON: %v (%s)", err, data)
	}
	if record["msg"] != "chunk accepted" || record["level"] != "info" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record[logging.FieldChunkIndex] != float64(4) {
		t.Fatalf("expected chunk_index 4, got %v", record[logging.FieldChunkIndex])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
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

func TestConsoleLoggerHoistsComponentAndChunk(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithChunkIndex(ctx, 7)
	component := logging.NewComponentLogger(logger, "pipeline")
	logging.WithContext(ctx, component).Info("chunk rejected", logging.String("reason", "reading speed"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO pipeline[chunk 7]: chunk rejected") {
		t.Fatalf("expected hoisted prefix, got %q", line)
	}
	if !strings.Contains(line, `reason="reading speed"`) {
		t.Fatalf("expected quoted attr, got %q", line)
	}
	if strings.Contains(line, "run-1") {
		t.Fatalf("expected run id hidden on console, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "chunk failed", "chunk_failed", logging.String(logging.FieldImpact, "chunk omitted from output"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldEventType] != "chunk_failed" {
		t.Fatalf("unexpected event type: %v", record)
	}
	if record[logging.FieldImpact] != "chunk omitted from output" {
		t.Fatalf("expected caller impact preserved, got %v", record[logging.FieldImpact])
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", record)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithRunID(context.Background(), "run-xyz")
	ctx = services.WithStage(ctx, "transcribe")
	ctx = services.WithChunkIndex(ctx, 3)
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldRunID] != "run-xyz" {
		t.Fatalf("run_id = %v", record[logging.FieldRunID])
	}
	if record[logging.FieldStage] != "transcribe" {
		t.Fatalf("stage = %v", record[logging.FieldStage])
	}
	if record[logging.FieldChunkIndex] != float64(3) {
		t.Fatalf("chunk_index = %v", record[logging.FieldChunkIndex])
	}
}

func TestConsoleLoggerShowsAttemptInPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("retrying", logging.Chunk(3), logging.Attempt(2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if strings.Contains(line, "hidden") {
		t.Fatalf("expected info suppressed at warn level, got %q", line)
	}
	if !strings.Contains(line, "WARN [chunk 3 #2]: retrying") {
		t.Fatalf("expected chunk and attempt prefix, got %q", line)
	}
}
