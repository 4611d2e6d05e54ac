// Package resemblyzer implements embedding.Provider using a Resemblyzer HTTP
// sidecar that hosts the speaker-encoder model.
package resemblyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/skillsenselab/voiceid/embedding"
	"github.com/skillsenselab/voiceid/provider"
)

const (
	// ProviderName is the registered name for the Resemblyzer provider.
	ProviderName = "resemblyzer"

	defaultSidecarURL     = "http://localhost:8386"
	defaultSidecarTimeout = 60 * time.Second
)

// Config holds configuration for the Resemblyzer embedding provider.
type Config struct {
	BaseURL string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Provider implements embedding.Provider using the Resemblyzer HTTP sidecar.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new Resemblyzer embedding provider.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSidecarURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSidecarTimeout
	}
	return &Provider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Factory returns a provider.Factory that creates Resemblyzer Provider
// instances from a generic config map.
func Factory() provider.Factory[embedding.Provider] {
	return func(cfg map[string]any) (embedding.Provider, error) {
		rc := Config{}
		if v, ok := cfg["base_url"].(string); ok {
			rc.BaseURL = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			rc.Timeout = v
		}
		return NewProvider(rc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the sidecar is reachable and its model is loaded.
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

// Embed sends a canonical waveform to the sidecar and returns the extracted
// voice-identity vector.
func (p *Provider) Embed(ctx context.Context, req embedding.EmbedRequest) (*embedding.EmbedResponse, error) {
	audioData, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/embed", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: %s", embedding.ErrUnavailable, string(body))
	}

	var result sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	if !result.Success || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", embedding.ErrRejected, result.Error)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("%w: sidecar returned an empty vector", embedding.ErrRejected)
	}

	return &embedding.EmbedResponse{Embedding: result.Embedding}, nil
}

// --- internal sidecar API types ---

type sidecarResponse struct {
	Success   bool             `json:"success"`
	Embedding embedding.Vector `json:"embedding"`
	Error     string           `json:"error,omitempty"`
}
