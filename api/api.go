// Package api registers the voiceid HTTP endpoints and maps pipeline results
// and errors onto the service's JSON wire contract.
package api

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/voiceid/embedding"
	"github.com/skillsenselab/voiceid/logger"
	"github.com/skillsenselab/voiceid/similarity"
	"github.com/skillsenselab/voiceid/synthesis"
	"github.com/skillsenselab/voiceid/transcription"
)

// Enroller produces a voice-identity embedding from an uploaded utterance.
type Enroller interface {
	Enroll(ctx context.Context, upload io.Reader, filename string) (embedding.Vector, error)
}

// Verifier decides whether an uploaded utterance matches a stored embedding.
type Verifier interface {
	Verify(ctx context.Context, upload io.Reader, filename, storedRaw string) (*similarity.Verdict, error)
}

// Pipeline is the biometric pipeline surface the handlers need.
type Pipeline interface {
	Enroller
	Verifier
}

// Config holds handler configuration.
type Config struct {
	// TempDir is where pass-through uploads (speech-to-text) are staged.
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// TTSOutputPath is the fixed path the most recent synthesis is written to.
	// Each synthesis overwrites the previous one.
	TTSOutputPath string `yaml:"tts_output_path" mapstructure:"tts_output_path"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TempDir == "" {
		c.TempDir = "/tmp"
	}
	if c.TTSOutputPath == "" {
		c.TTSOutputPath = "/tmp/voiceid-tts.wav"
	}
}

// Handlers holds the dependencies of the HTTP handlers. The transcription and
// synthesis providers may be nil; their endpoints then answer 503.
type Handlers struct {
	cfg  Config
	pipe Pipeline
	stt  transcription.Provider
	tts  synthesis.Provider
	log  *logger.Logger
}

// NewHandlers creates the endpoint handler set.
func NewHandlers(cfg Config, pipe Pipeline, stt transcription.Provider, tts synthesis.Provider, log *logger.Logger) *Handlers {
	cfg.ApplyDefaults()
	return &Handlers{
		cfg:  cfg,
		pipe: pipe,
		stt:  stt,
		tts:  tts,
		log:  log.WithComponent("api"),
	}
}

// Register attaches the voice endpoints to the engine.
func (h *Handlers) Register(r gin.IRouter) {
	r.POST("/embed", h.Embed)
	r.POST("/verify", h.Verify)
	r.POST("/stt", h.SpeechToText)
	r.POST("/tts", h.TextToSpeech)
}
