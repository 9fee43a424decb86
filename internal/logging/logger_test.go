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

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/services"
)

func noColor() *bool {
	v := false
	return &v
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("render started", logging.String("title", "demo"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "montage.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", data, err)
	}
	if record["msg"] != "render started" || record["title"] != "demo" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, Color: noColor()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without source")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndChunk(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, Color: noColor()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithChunk(services.WithRenderID(context.Background(), "r-9"), 2)
	engineLogger := logging.WithContext(ctx, logging.NewComponentLogger(logger, "engine"))
	logging.WarnWithContext(engineLogger, "placeholder substituted", "resource_missing", logging.String("source", "segment-03"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"WARN", "engine[chunk 2]: placeholder substituted", "source=segment-03", "render_id=r-9", "event_type=resource_missing", "impact="} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestTeeHandlerDropsNil(t *testing.T) {
	if _, ok := logging.TeeHandler(nil, nil).(logging.NoopHandler); !ok {
		t.Fatal("expected NoopHandler when all handlers are nil")
	}
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, nil)
	if got := logging.TeeHandler(nil, h); got != h {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := logging.NewProgressSampler(25)
	var emitted []float64
	for _, pct := range []float64{0, 10, 24, 25, 49, 50, 100, 100} {
		if s.ShouldLog(pct) {
			emitted = append(emitted, pct)
		}
	}
	want := []float64{0, 25, 50, 100}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}
	if s.ShouldLog(-1) {
		t.Fatal("unknown progress should be suppressed")
	}
}

func TestWarnWithContextKeepsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "effect skipped", "effect_failed",
		logging.Clip("video", 3),
		logging.String(logging.FieldImpact, "clip rendered without blur"),
	)

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	want := map[string]string{
		logging.FieldClip:      "video/3",
		logging.FieldEventType: "effect_failed",
		logging.FieldErrorHint: "check logs for details",
		logging.FieldImpact:    "clip rendered without blur",
	}
	for key, value := range want {
		if got := record[key]; got != value {
			t.Fatalf("%s = %v, want %q", key, got, value)
		}
	}
}
