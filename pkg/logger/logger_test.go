package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/valuelens/screener/pkg/config"
)

func testConfig(level, format string) *config.Config {
	return &config.Config{
		Env:       "development",
		LogLevel:  level,
		LogFormat: format,
	}
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(testConfig("debug", "json"), &buf)

	log.WithField("dataset", "sp500").Info("page served")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	if entry["message"] != "page served" {
		t.Errorf("expected message 'page served', got %v", entry["message"])
	}
	if entry["dataset"] != "sp500" {
		t.Errorf("expected dataset field, got %v", entry["dataset"])
	}
	if entry["env"] != "development" {
		t.Errorf("expected env field, got %v", entry["env"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(testConfig("warn", "json"), &buf)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info output should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing: %s", out)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(testConfig("debug", "json"), &buf)

	log.WithError(errors.New("boom")).Error("mutation failed")

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected error field in output: %s", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"INFO", "info"},
		{"warning", "warn"},
		{"unknown", "info"},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
