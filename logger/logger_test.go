package logger

import (
	"testing"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected default format console, got %s", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected default output stdout, got %s", cfg.Output)
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	cfg := Config{Level: "debug", Format: "json", Output: "stderr"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestConfig_Validate_BadLevel(t *testing.T) {
	cfg := Config{Level: "verbose", Format: "json"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestConfig_Validate_BadFormat(t *testing.T) {
	cfg := Config{Level: "info", Format: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFields_PairsAndOddTail(t *testing.T) {
	m := Fields("a", 1, "b", "two", "dangling")
	if len(m) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(m))
	}
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected field values: %v", m)
	}
}

func TestWithComponent_TagsLogger(t *testing.T) {
	l := NewDefault("test").WithComponent("pipeline")
	if l == nil {
		t.Fatal("expected non-nil component logger")
	}
}
