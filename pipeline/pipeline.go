// Package pipeline orchestrates the voice-biometric request flow: stage the
// uploaded bytes, normalize them to the canonical waveform, extract a
// speaker embedding, and (for verification) decide against a stored one.
//
// Every temporary file created for a request is removed before the call
// returns, on success and on every failure path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/voiceid/embedding"
	apperrors "github.com/skillsenselab/voiceid/errors"
	"github.com/skillsenselab/voiceid/logger"
	"github.com/skillsenselab/voiceid/observability"
	"github.com/skillsenselab/voiceid/similarity"
	"github.com/skillsenselab/voiceid/transcode"
)

// Transcoder normalizes a staged upload into a canonical WAV file.
type Transcoder interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}

// Config holds pipeline configuration.
type Config struct {
	// TempDir is where uploads and transcoded files are staged.
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// Threshold is the verification match threshold. Deployments have run
	// both 0.50 and 0.75; it is configuration, never hard-coded.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TempDir == "" {
		c.TempDir = "/tmp"
	}
	if c.Threshold == 0 {
		c.Threshold = 0.75
	}
}

// Pipeline drives one request through staging, transcoding, extraction, and
// decision. It holds only read-only shared state and is safe for concurrent
// use; per-request state lives on the stack of each call.
type Pipeline struct {
	transcoder Transcoder
	extractor  embedding.Provider
	cfg        Config
	log        *logger.Logger
	metrics    *observability.PipelineMetrics
	tracer     trace.Tracer
}

// New creates a pipeline. metrics may be nil when metric export is disabled.
func New(cfg Config, tc Transcoder, ex embedding.Provider, log *logger.Logger, metrics *observability.PipelineMetrics) *Pipeline {
	cfg.ApplyDefaults()
	return &Pipeline{
		transcoder: tc,
		extractor:  ex,
		cfg:        cfg,
		log:        log.WithComponent("pipeline"),
		metrics:    metrics,
		tracer:     observability.Tracer("github.com/skillsenselab/voiceid/pipeline"),
	}
}

// Threshold returns the configured verification threshold.
func (p *Pipeline) Threshold() float64 { return p.cfg.Threshold }

// Enroll derives a voice-identity embedding from an uploaded utterance.
func (p *Pipeline) Enroll(ctx context.Context, upload io.Reader, filename string) (embedding.Vector, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.enroll")
	defer span.End()

	vec, err := p.extractFromUpload(ctx, upload, filename)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		p.metrics.RecordRequest(ctx, "enroll", "error")
		return nil, err
	}

	span.SetAttributes(attribute.Int("embedding.dim", vec.Dim()))
	p.metrics.RecordRequest(ctx, "enroll", "ok")
	return vec, nil
}

// Verify compares a freshly captured utterance against a caller-supplied
// stored embedding and returns the verdict.
func (p *Pipeline) Verify(ctx context.Context, upload io.Reader, filename, storedRaw string) (*similarity.Verdict, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.verify")
	defer span.End()

	verdict, err := p.verify(ctx, upload, filename, storedRaw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		p.metrics.RecordRequest(ctx, "verify", "error")
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("verify.similarity", verdict.Similarity),
		attribute.Bool("verify.match", verdict.IsMatch),
	)
	p.metrics.RecordRequest(ctx, "verify", "ok")
	p.metrics.RecordVerdict(ctx, verdict.IsMatch)
	return verdict, nil
}

func (p *Pipeline) verify(ctx context.Context, upload io.Reader, filename, storedRaw string) (*similarity.Verdict, error) {
	if storedRaw == "" {
		return nil, apperrors.MissingField("stored_embedding")
	}
	// Parse before the expensive stages; a malformed stored embedding is a
	// client error regardless of what the audio contains.
	stored, err := embedding.ParseVector(storedRaw)
	if err != nil {
		return nil, apperrors.MalformedEmbedding(err.Error())
	}

	fresh, err := p.extractFromUpload(ctx, upload, filename)
	if err != nil {
		return nil, err
	}

	verdict, err := similarity.Decide(fresh, stored, p.cfg.Threshold)
	if err != nil {
		switch {
		case errors.Is(err, similarity.ErrDimensionMismatch):
			return nil, apperrors.DimensionMismatch(fresh.Dim(), stored.Dim()).WithCause(err)
		case errors.Is(err, similarity.ErrZeroVector):
			return nil, apperrors.MalformedEmbedding("zero-magnitude embedding").WithCause(err)
		default:
			return nil, apperrors.Internal(err)
		}
	}

	p.log.Info("Verification decided", logger.Fields(
		"similarity", verdict.Similarity,
		"match", verdict.IsMatch,
		"threshold", verdict.Threshold,
	))
	return verdict, nil
}

// extractFromUpload runs Received → Staged → Transcoded → Embedded. The
// deferred staging Close guarantees both the staged upload and the transcoded
// WAV are gone before the function returns, whatever path it takes.
func (p *Pipeline) extractFromUpload(ctx context.Context, upload io.Reader, filename string) (_ embedding.Vector, err error) {
	stage := newStaging(p.cfg.TempDir, p.log)
	defer func() {
		if cerr := stage.Close(); cerr != nil && err == nil {
			err = apperrors.Internal(fmt.Errorf("cleanup: %w", cerr))
		}
	}()

	start := time.Now()
	stagedPath, err := stage.StageUpload(upload, filename)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	p.metrics.RecordStage(ctx, "stage_upload", time.Since(start))

	start = time.Now()
	wavPath, err := p.transcoder.Normalize(ctx, stagedPath)
	if wavPath != "" {
		stage.Track(wavPath)
	}
	if err != nil {
		var terr *transcode.Error
		if errors.As(err, &terr) && errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("transcode").WithCause(err)
		}
		return nil, apperrors.TranscodeFailed(err)
	}
	p.metrics.RecordStage(ctx, "transcode", time.Since(start))

	start = time.Now()
	resp, err := p.extractor.Embed(ctx, embedding.EmbedRequest{AudioPath: wavPath})
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			return nil, apperrors.ServiceUnavailable("speaker embedding model").WithCause(err)
		}
		return nil, apperrors.ExtractionFailed(err)
	}
	p.metrics.RecordStage(ctx, "extract", time.Since(start))

	return resp.Embedding, nil
}
