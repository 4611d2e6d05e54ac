// Package config loads and validates the voiceid service configuration from
// YAML, .env files, and environment variables.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/voiceid/api"
	"github.com/skillsenselab/voiceid/embedding/resemblyzer"
	"github.com/skillsenselab/voiceid/logger"
	"github.com/skillsenselab/voiceid/observability"
	"github.com/skillsenselab/voiceid/pipeline"
	"github.com/skillsenselab/voiceid/server"
	"github.com/skillsenselab/voiceid/synthesis/piper"
	"github.com/skillsenselab/voiceid/transcode"
	"github.com/skillsenselab/voiceid/transcription/whisper"
)

var validate = validator.New()

// ServiceConfig is the full configuration of the voiceid service.
type ServiceConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`

	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`

	Pipeline  pipeline.Config  `yaml:"pipeline" mapstructure:"pipeline"`
	Transcode transcode.Config `yaml:"transcode" mapstructure:"transcode"`
	API       api.Config       `yaml:"api" mapstructure:"api"`

	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Synthesis     SynthesisConfig     `yaml:"synthesis" mapstructure:"synthesis"`
}

// EmbeddingConfig selects the speaker-embedding backend by name and carries
// its settings.
type EmbeddingConfig struct {
	Provider           string `yaml:"provider" mapstructure:"provider"`
	resemblyzer.Config `yaml:",inline" mapstructure:",squash"`
}

// TranscriptionConfig wraps the whisper backend configuration with an enable
// switch; the endpoint answers 503 when disabled.
type TranscriptionConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	Provider       string `yaml:"provider" mapstructure:"provider"`
	whisper.Config `yaml:",inline" mapstructure:",squash"`
}

// SynthesisConfig wraps the piper backend configuration with an enable switch.
type SynthesisConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	Provider     string `yaml:"provider" mapstructure:"provider"`
	piper.Config `yaml:",inline" mapstructure:",squash"`
}

// ApplyDefaults applies default values to every section.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "voiceid"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Logging.Service == "" {
		c.Logging.Service = c.Name
	}
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Transcode.ApplyDefaults()
	c.API.ApplyDefaults()
	if c.API.TempDir == "" || c.API.TempDir == "/tmp" {
		c.API.TempDir = c.Pipeline.TempDir
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = resemblyzer.ProviderName
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = whisper.ProviderName
	}
	if c.Synthesis.Provider == "" {
		c.Synthesis.Provider = piper.ProviderName
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks the whole configuration and reports the first problem.
func (c *ServiceConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if c.Pipeline.Threshold <= 0 || c.Pipeline.Threshold >= 1 {
		return fmt.Errorf("config.pipeline.threshold must be in (0, 1) (got: %v)", c.Pipeline.Threshold)
	}
	return nil
}
