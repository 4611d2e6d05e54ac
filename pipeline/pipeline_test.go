package pipeline_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/skillsenselab/voiceid/embedding"
	apperrors "github.com/skillsenselab/voiceid/errors"
	"github.com/skillsenselab/voiceid/logger"
	"github.com/skillsenselab/voiceid/pipeline"
	"github.com/skillsenselab/voiceid/transcode"
)

// fakeTranscoder writes a small canonical-stand-in wav next to the input.
type fakeTranscoder struct {
	fail    bool
	wrapCtx bool
}

func (f *fakeTranscoder) Normalize(ctx context.Context, inputPath string) (string, error) {
	if f.fail {
		if f.wrapCtx {
			return "", &transcode.Error{Cause: fmt.Errorf("timed out: %w", context.DeadlineExceeded)}
		}
		return "", &transcode.Error{Diagnostic: "Invalid data found", Cause: fmt.Errorf("exit code 1")}
	}
	out := transcode.OutputPath(inputPath)
	if err := os.WriteFile(out, []byte("wav bytes"), 0o600); err != nil {
		return "", err
	}
	return out, nil
}

// fakeExtractor returns a fixed vector or a configured failure. Embed is
// called from concurrent requests, so seen is mutex-guarded.
type fakeExtractor struct {
	vec embedding.Vector
	err error

	mu   sync.Mutex
	seen []string
}

func (f *fakeExtractor) Name() string                       { return "fake" }
func (f *fakeExtractor) IsAvailable(_ context.Context) bool { return f.err == nil }

func (f *fakeExtractor) seenPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func (f *fakeExtractor) Embed(_ context.Context, req embedding.EmbedRequest) (*embedding.EmbedResponse, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req.AudioPath)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return nil, fmt.Errorf("canonical wav missing: %w", err)
	}
	return &embedding.EmbedResponse{Embedding: f.vec}, nil
}

func newPipeline(t *testing.T, tc pipeline.Transcoder, ex embedding.Provider, threshold float64) (*pipeline.Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	p := pipeline.New(pipeline.Config{TempDir: dir, Threshold: threshold}, tc, ex, logger.NewDefault("test"), nil)
	return p, dir
}

// assertNoLeftovers is the filesystem-diff property: a request may not leave
// any temporary file behind, whatever its outcome.
func assertNoLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("temp files left behind: %v", names)
	}
}

func upload() *strings.Reader { return strings.NewReader("opus encoded audio") }

func TestEnroll_Success(t *testing.T) {
	ex := &fakeExtractor{vec: embedding.Vector{0.1, 0.2, 0.3}}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.75)

	vec, err := p.Enroll(context.Background(), upload(), "clip.webm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec.Dim() != 3 {
		t.Errorf("expected dim 3, got %d", vec.Dim())
	}
	if seen := ex.seenPaths(); len(seen) != 1 || !strings.HasSuffix(seen[0], ".wav") {
		t.Errorf("extractor must receive the canonical wav path, got %v", seen)
	}
	assertNoLeftovers(t, dir)
}

func TestEnroll_TranscodeFailure(t *testing.T) {
	p, dir := newPipeline(t, &fakeTranscoder{fail: true}, &fakeExtractor{vec: embedding.Vector{1}}, 0.75)

	_, err := p.Enroll(context.Background(), upload(), "clip.webm")
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeTranscodeFailed {
		t.Errorf("expected TRANSCODE_FAILED, got %v", err)
	}
	assertNoLeftovers(t, dir)
}

func TestEnroll_TranscodeTimeout(t *testing.T) {
	p, dir := newPipeline(t, &fakeTranscoder{fail: true, wrapCtx: true}, &fakeExtractor{vec: embedding.Vector{1}}, 0.75)

	_, err := p.Enroll(context.Background(), upload(), "clip.webm")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeTimeout {
		t.Errorf("expected TIMEOUT, got %v", err)
	}
	assertNoLeftovers(t, dir)
}

func TestEnroll_ExtractorUnavailable(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("%w: connection refused", embedding.ErrUnavailable)}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.75)

	_, err := p.Enroll(context.Background(), upload(), "clip.webm")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeServiceUnavailable {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if appErr != nil && appErr.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", appErr.HTTPStatus)
	}
	assertNoLeftovers(t, dir)
}

func TestEnroll_ExtractorRejectsInput(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("%w: silence only", embedding.ErrRejected)}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.75)

	_, err := p.Enroll(context.Background(), upload(), "clip.webm")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeExtractionFailed {
		t.Errorf("expected EXTRACTION_FAILED, got %v", err)
	}
	assertNoLeftovers(t, dir)
}

func TestVerify_Match(t *testing.T) {
	ex := &fakeExtractor{vec: embedding.Vector{0.5, 0.5, 0.1}}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.75)

	verdict, err := p.Verify(context.Background(), upload(), "clip.webm", "[0.5, 0.5, 0.1]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.IsMatch {
		t.Error("identical embeddings must match")
	}
	if verdict.Threshold != 0.75 {
		t.Errorf("verdict must echo the configured threshold, got %f", verdict.Threshold)
	}
	assertNoLeftovers(t, dir)
}

func TestVerify_NoMatch(t *testing.T) {
	ex := &fakeExtractor{vec: embedding.Vector{1, 0, 0}}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.75)

	verdict, err := p.Verify(context.Background(), upload(), "clip.webm", "[0, 1, 0]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.IsMatch {
		t.Error("orthogonal embeddings must not match")
	}
	assertNoLeftovers(t, dir)
}

func TestVerify_MissingStoredEmbedding(t *testing.T) {
	p, dir := newPipeline(t, &fakeTranscoder{}, &fakeExtractor{vec: embedding.Vector{1}}, 0.75)

	_, err := p.Verify(context.Background(), upload(), "clip.webm", "")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeMissingField {
		t.Errorf("expected MISSING_FIELD, got %v", err)
	}
	// Validation fails before staging: nothing to clean, and nothing staged.
	assertNoLeftovers(t, dir)
}

func TestVerify_MalformedStoredEmbedding(t *testing.T) {
	p, dir := newPipeline(t, &fakeTranscoder{}, &fakeExtractor{vec: embedding.Vector{1}}, 0.75)

	for _, raw := range []string{"not a list", "[1, 2", "{\"x\":1}", "[\"a\"]"} {
		_, err := p.Verify(context.Background(), upload(), "clip.webm", raw)
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Code != apperrors.ErrCodeMalformedEmbedding {
			t.Errorf("stored_embedding=%q: expected MALFORMED_EMBEDDING, got %v", raw, err)
		}
		if appErr != nil && appErr.HTTPStatus != http.StatusBadRequest {
			t.Errorf("stored_embedding=%q: expected 400, got %d", raw, appErr.HTTPStatus)
		}
	}
	assertNoLeftovers(t, dir)
}

func TestVerify_DimensionMismatch(t *testing.T) {
	ex := &fakeExtractor{vec: embedding.Vector{1, 2, 3}}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.75)

	_, err := p.Verify(context.Background(), upload(), "clip.webm", "[1, 2]")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeDimensionMismatch {
		t.Errorf("expected DIMENSION_MISMATCH, got %v", err)
	}
	assertNoLeftovers(t, dir)
}

func TestVerify_ZeroStoredVector(t *testing.T) {
	ex := &fakeExtractor{vec: embedding.Vector{1, 2, 3}}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.75)

	_, err := p.Verify(context.Background(), upload(), "clip.webm", "[0, 0, 0]")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeMalformedEmbedding {
		t.Errorf("expected MALFORMED_EMBEDDING for zero vector, got %v", err)
	}
	assertNoLeftovers(t, dir)
}

func TestConcurrentRequestsDoNotCollide(t *testing.T) {
	ex := &fakeExtractor{vec: embedding.Vector{0.1, 0.9}}
	p, dir := newPipeline(t, &fakeTranscoder{}, ex, 0.5)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := p.Enroll(context.Background(), upload(), "clip.ogg")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent enroll failed: %v", err)
		}
	}

	seen := ex.seenPaths()
	if len(seen) != 8 {
		t.Fatalf("extractor saw %d requests, want 8", len(seen))
	}
	unique := make(map[string]bool, len(seen))
	for _, path := range seen {
		if unique[path] {
			t.Errorf("staged path reused across requests: %s", path)
		}
		unique[path] = true
	}
	assertNoLeftovers(t, dir)
}
