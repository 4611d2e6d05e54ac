// Package synthesis defines the synthesis provider interface and common types
// for interacting with text-to-speech backends.
package synthesis

import (
	"context"

	"github.com/skillsenselab/voiceid/provider"
)

// Provider is the interface that synthesis backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Synthesize renders text to speech and returns the audio.
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResponse, error)
}

// NewRegistry creates a new provider registry for synthesis providers.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
