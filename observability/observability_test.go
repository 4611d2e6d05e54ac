package observability

import (
	"context"
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.ServiceName != "voiceid" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v", cfg.SampleRate)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("Interval = %v", cfg.Interval)
	}
}

func TestConfig_ApplyDefaults_PreservesSetValues(t *testing.T) {
	cfg := Config{ServiceName: "custom", SampleRate: 0.1}
	cfg.ApplyDefaults()

	if cfg.ServiceName != "custom" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.SampleRate != 0.1 {
		t.Errorf("SampleRate = %v", cfg.SampleRate)
	}
}

func TestInit_DisabledIsNoOp(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()

	// Must not panic when metric export is disabled.
	m.RecordRequest(ctx, "verify", "ok")
	m.RecordStage(ctx, "transcode", time.Second)
	m.RecordVerdict(ctx, true)
}
