// Package provider defines the base interface for external model backends.
// The embedding, transcription, and synthesis packages build on it.
package provider

import "context"

// Provider is the base interface all model backends must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from configuration.
type Factory[T Provider] func(cfg map[string]any) (T, error)
