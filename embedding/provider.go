// Package embedding defines the speaker-embedding extractor interface and
// common types for interacting with voice-identity backends.
//
// Embeddings carry no model-version tag, so two vectors produced by different
// extractor models compare silently. Callers are the system of record for
// stored embeddings and must re-enroll after a model upgrade.
package embedding

import (
	"context"
	"errors"

	"github.com/skillsenselab/voiceid/provider"
)

// ErrUnavailable indicates the embedding model is not loaded or unreachable.
var ErrUnavailable = errors.New("embedding: model unavailable")

// ErrRejected indicates the model refused the input, e.g. a silence-only or
// too-short utterance.
var ErrRejected = errors.New("embedding: input rejected by model")

// Provider is the interface that speaker-embedding backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Embed derives a fixed-length voice-identity vector from the canonical
	// waveform at the request path.
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)
}

// NewRegistry creates a new provider registry for embedding providers.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
