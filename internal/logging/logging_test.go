package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/survey-engine/pkg/types"
)

func TestSetup_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := Setup(types.LoggingConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	log.Info("should be suppressed")
	log.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be suppressed") {
		t.Error("info message should be suppressed at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing")
	}
}

func TestSetup_VerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := Setup(types.LoggingConfig{Level: "error", Verbose: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("details", "paper_id", "abc")
	if !strings.Contains(buf.String(), "paper_id=abc") {
		t.Errorf("expected debug output, got: %s", buf.String())
	}
}

func TestSetup_JSONAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	log, closeFn, err := Setup(types.LoggingConfig{Format: "json", File: path}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("batch flushed", "batch", 2)
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), `"batch":2`) {
		t.Errorf("expected JSON output, got: %s", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "batch flushed") {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestSetup_Errors(t *testing.T) {
	if _, _, err := Setup(types.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, _, err := Setup(types.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", name, got, err)
		}
	}
}
