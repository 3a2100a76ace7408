package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taoharvest/taoharvest/internal/browser"
	"github.com/taoharvest/taoharvest/internal/config"
	"github.com/taoharvest/taoharvest/internal/extract"
	"github.com/taoharvest/taoharvest/internal/output"
	"github.com/taoharvest/taoharvest/internal/resolver"
	"github.com/taoharvest/taoharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// A hard product failure is recorded on the index; the command itself
// still succeeds, exactly like a batch run with one failed product.
func TestRunSingleFailureIsNotACommandError(t *testing.T) {
	root := t.TempDir()
	writer, err := output.NewWriter(root, false, nil, testLogger)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer writer.Close()

	// Empty site: navigation to the product URL fails outright.
	page := browser.NewStaticSite(map[string]string{})
	extractor := extract.New(resolver.New(testLogger, nil),
		config.ExtractConfig{MaxReviews: types.MaxReviews}, time.Second, nil, testLogger)

	url := "https://item.example.com/detail?id=404"
	if err := runSingle(context.Background(), page, extractor, writer, nil, url, testLogger); err != nil {
		t.Fatalf("runSingle = %v, want nil for a recorded product failure", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "index.jsonl"))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	var row types.BatchIndexRow
	if err := json.Unmarshal(data, &row); err != nil {
		t.Fatalf("index row: %v", err)
	}
	if row.Status != types.StatusFailed || row.URL != url {
		t.Errorf("row = %+v", row)
	}
	if row.Reason == "" {
		t.Error("failure reason missing from index row")
	}
}

func TestBuildLoggerHonorsConfig(t *testing.T) {
	ctx := context.Background()

	debug := buildLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Error("level debug not applied")
	}

	warn := buildLogger(config.LoggingConfig{Level: "warn", Format: "text"})
	if warn.Enabled(ctx, slog.LevelInfo) {
		t.Error("level warn not applied")
	}

	jsonLogger := buildLogger(config.LoggingConfig{Level: "info", Format: "json"})
	if _, ok := jsonLogger.Handler().(*slog.JSONHandler); !ok {
		t.Errorf("format json selected %T", jsonLogger.Handler())
	}

	textLogger := buildLogger(config.LoggingConfig{Level: "info", Format: "text"})
	if _, ok := textLogger.Handler().(*slog.TextHandler); !ok {
		t.Errorf("format text selected %T", textLogger.Handler())
	}
}

func TestFlagsOverrideLoggingConfig(t *testing.T) {
	verbose = true
	jsonFormat = true
	defer func() {
		verbose = false
		jsonFormat = false
	}()

	cfg := config.DefaultConfig()
	applyCLIOverrides(cfg)

	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Logging.Format)
	}
}
