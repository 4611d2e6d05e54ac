// Package piper implements synthesis.Provider using a Piper TTS HTTP sidecar.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skillsenselab/voiceid/provider"
	"github.com/skillsenselab/voiceid/synthesis"
)

const (
	// ProviderName is the registered name for the Piper provider.
	ProviderName = "piper"

	defaultPiperURL     = "http://localhost:5002"
	defaultPiperTimeout = 60 * time.Second
)

// Config holds configuration for the Piper synthesis provider.
type Config struct {
	BaseURL string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Voice   string        `json:"voice,omitempty" yaml:"voice" mapstructure:"voice"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Provider implements synthesis.Provider using the Piper HTTP sidecar.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new Piper synthesis provider.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPiperURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultPiperTimeout
	}
	return &Provider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Factory returns a provider.Factory that creates Piper Provider instances
// from a generic config map.
func Factory() provider.Factory[synthesis.Provider] {
	return func(cfg map[string]any) (synthesis.Provider, error) {
		pc := Config{}
		if v, ok := cfg["base_url"].(string); ok {
			pc.BaseURL = v
		}
		if v, ok := cfg["voice"].(string); ok {
			pc.Voice = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			pc.Timeout = v
		}
		return NewProvider(pc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Piper sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Synthesize renders text to speech via the Piper sidecar and returns the
// WAV byte stream.
func (p *Provider) Synthesize(ctx context.Context, req synthesis.SynthesisRequest) (*synthesis.SynthesisResponse, error) {
	voice := p.cfg.Voice
	if req.Voice != "" {
		voice = req.Voice
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:     req.Text,
		Voice:    voice,
		Language: req.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("piper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("piper error (status %d): %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("piper returned no audio")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/wav"
	}

	return &synthesis.SynthesisResponse{
		Audio:       audio,
		ContentType: contentType,
	}, nil
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}
