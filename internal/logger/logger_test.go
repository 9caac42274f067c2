package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestWithComponent_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := Init("debug", "text", &buf); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	WithComponent("ingest").Info("hello")

	out := buf.String()
	if !strings.Contains(out, "component=ingest") {
		t.Errorf("expected component=ingest in output, got: %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected 'hello' in output, got: %s", out)
	}
}

func TestInit_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Init("info", "json", &buf); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	WithComponent("coerce").Warn("bad value")

	out := buf.String()
	if !strings.Contains(out, `"component":"coerce"`) {
		t.Errorf("expected JSON component field, got: %s", out)
	}
	if !strings.Contains(out, `"level":"warning"`) {
		t.Errorf("expected JSON level field, got: %s", out)
	}
}

func TestInit_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	if err := Init("warn", "text", &buf); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	L().Info("should be suppressed")
	L().Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be suppressed") {
		t.Errorf("info message leaked through warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init("loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
}
