package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reshelve/internal/config"
	"reshelve/internal/logging"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "reshelve.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "planner").Info("plan built",
		logging.Int("operations", 2),
		logging.String("target", "Live/1985 - Live Show"),
	)

	line := buf.String()
	for _, fragment := range []string{"INFO planner: plan built", "operations=2", `target="Live/1985 - Live Show"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithMigrationID(context.Background(), "mig-1")
	ctx = logging.WithArtist(ctx, "TestBand")
	ctx = logging.WithStage(ctx, "execute")
	logging.WithContext(ctx, logger).Info("moving album")

	content := buf.Bytes()
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload["level"] != "info" || payload["msg"] != "moving album" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload[logging.FieldMigrationID] != "mig-1" || payload[logging.FieldArtist] != "TestBand" || payload[logging.FieldStage] != "execute" {
		t.Fatalf("missing context fields: %v", payload)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "backup kept", "backup_retained")

	content := buf.Bytes()
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if !strings.Contains(string(content), `"`+key+`"`) {
			t.Fatalf("expected %s in %q", key, content)
		}
	}
}

func TestConsoleLoggerScopesArtistAndMigration(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Writers: []io.Writer{&buf}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithMigrationID(context.Background(), "0123456789abcdef")
	ctx = logging.WithArtist(ctx, "TestBand")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "executor")).Info("album moved", logging.Bool("simulated", false))

	line := buf.String()
	for _, fragment := range []string{"INFO executor [TestBand 01234567]: album moved", "simulated=false"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "migration_id=") {
		t.Fatalf("expected migration id folded into the scope, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
