package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the instruments recorded by the voice pipeline.
type PipelineMetrics struct {
	requestTotal  metric.Int64Counter
	stageDuration metric.Float64Histogram
	matchTotal    metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on the global meter.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter("github.com/skillsenselab/voiceid/pipeline")

	requestTotal, err := meter.Int64Counter("voiceid.pipeline.requests",
		metric.WithDescription("Pipeline requests by operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}
	stageDuration, err := meter.Float64Histogram("voiceid.pipeline.stage.duration",
		metric.WithDescription("Per-stage duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating stage histogram: %w", err)
	}
	matchTotal, err := meter.Int64Counter("voiceid.verify.verdicts",
		metric.WithDescription("Verification verdicts by match result"))
	if err != nil {
		return nil, fmt.Errorf("creating verdict counter: %w", err)
	}

	return &PipelineMetrics{
		requestTotal:  requestTotal,
		stageDuration: stageDuration,
		matchTotal:    matchTotal,
	}, nil
}

// RecordRequest counts one pipeline request.
func (m *PipelineMetrics) RecordRequest(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordStage records the duration of one pipeline stage.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

// RecordVerdict counts one verification verdict.
func (m *PipelineMetrics) RecordVerdict(ctx context.Context, isMatch bool) {
	if m == nil {
		return
	}
	m.matchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("match", isMatch),
	))
}
