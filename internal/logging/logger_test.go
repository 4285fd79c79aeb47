package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestHelpersBeforeInit(t *testing.T) {
	Logger = nil

	// Must not panic.
	Info("x")
	Debug("x")
	Warn("x")
	Error("x")

	if WithPrefix("push") == nil {
		t.Fatal("WithPrefix should never return nil")
	}
	WithPrefix("push").Info("discarded")
}

func TestInitWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWriter(&buf, "warn"); err != nil {
		t.Fatalf("InitWriter failed: %v", err)
	}
	defer func() { Logger = nil }()

	Info("hidden")
	Warn("shown", "key", "value")
	WithPrefix("coord").Error("prefixed")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") {
		t.Errorf("warn line missing: %s", out)
	}
	if !strings.Contains(out, "coord") {
		t.Errorf("prefix missing: %s", out)
	}
}

func TestInitWriterRejectsLevel(t *testing.T) {
	if err := InitWriter(&bytes.Buffer{}, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	Logger = nil
}
