// Package transcode normalizes arbitrary uploaded audio containers into the
// canonical waveform every downstream model expects: mono, 16 kHz, 16-bit
// linear PCM WAV. Conversion is delegated to an external ffmpeg process.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skillsenselab/voiceid/logger"
	"github.com/skillsenselab/voiceid/process"
)

// Canonical waveform parameters. Audio that does not satisfy these must never
// reach the embedding extractor.
const (
	CanonicalChannels   = 1
	CanonicalSampleRate = 16000
	CanonicalBitDepth   = 16
)

const defaultTimeout = 30 * time.Second

// Error wraps a failed normalization. Diagnostic holds the external process
// output for logs; it is never surfaced to callers verbatim.
type Error struct {
	Diagnostic string
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcode: %v", e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Config holds transcoder configuration.
type Config struct {
	// Binary is the ffmpeg executable path or name.
	Binary string `yaml:"binary" mapstructure:"binary"`
	// Timeout bounds a single conversion. The external process is killed on
	// expiry and the request fails as a transcode error.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Binary == "" {
		c.Binary = "ffmpeg"
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// FFmpeg converts audio files using an external ffmpeg process.
type FFmpeg struct {
	cfg Config
	log *logger.Logger
}

// New creates a transcoder with the given configuration.
func New(cfg Config, log *logger.Logger) *FFmpeg {
	cfg.ApplyDefaults()
	return &FFmpeg{cfg: cfg, log: log.WithComponent("transcode")}
}

// OutputPath derives the canonical output path for an input file: same
// directory, same basename, ".wav" extension.
func OutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".wav"
}

// Normalize converts the file at inputPath into a canonical WAV next to it and
// returns the output path. The input file is left in place; staged-file
// lifecycle belongs to the caller. Exactly one new file is written per call.
func (f *FFmpeg) Normalize(ctx context.Context, inputPath string) (string, error) {
	outputPath := OutputPath(inputPath)
	if outputPath == inputPath {
		// Re-encode in place is not supported; stage files keep their upload extension.
		outputPath = strings.TrimSuffix(inputPath, ".wav") + ".norm.wav"
	}

	runCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := process.Run(runCtx, process.Command{
		Binary: f.cfg.Binary,
		Args: []string{
			"-hide_banner", "-nostdin",
			"-i", inputPath,
			"-ac", fmt.Sprintf("%d", CanonicalChannels),
			"-ar", fmt.Sprintf("%d", CanonicalSampleRate),
			"-c:a", "pcm_s16le",
			"-y", outputPath,
		},
	})
	if err != nil {
		// ffmpeg may leave a partial output behind on failure.
		os.Remove(outputPath)
		diag := ""
		if result != nil {
			diag = string(result.Stderr)
		}
		f.log.Error("Normalization failed", logger.Fields(
			"input", inputPath,
			"exit_error", err.Error(),
			"stderr", diag,
		))
		if runCtx.Err() == context.DeadlineExceeded {
			return "", &Error{Diagnostic: diag, Cause: fmt.Errorf("timed out after %s: %w", f.cfg.Timeout, runCtx.Err())}
		}
		return "", &Error{Diagnostic: diag, Cause: err}
	}

	if err := VerifyCanonical(outputPath); err != nil {
		os.Remove(outputPath)
		f.log.Error("Output failed canonical check", logger.ErrorFields("verify", err))
		return "", &Error{Cause: err}
	}

	f.log.Debug("Audio normalized", logger.Fields(
		"input", inputPath,
		"output", outputPath,
		"duration_ms", time.Since(start).Milliseconds(),
	))
	return outputPath, nil
}
