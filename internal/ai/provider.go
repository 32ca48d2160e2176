// Package ai holds the external model integrations: embedding providers
// behind a common interface and the completion client used for title
// generation.
package ai

import (
	"context"
	"fmt"

	"knowledge-vault/internal/config"
)

// Provider enumerates the supported embedding providers.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderMock   Provider = "mock"
)

// Embedder turns text into vectors. Implementations are selected
// through NewEmbedder, never by string comparison at call sites.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for a list of texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Provider identifies the implementation.
	Provider() Provider
}

// NewEmbedder constructs the embedder for a provider. The model name
// and dimension come from the owning workspace's immutable settings.
func NewEmbedder(cfg *config.Config, provider, model string, dim int) (Embedder, error) {
	switch Provider(provider) {
	case ProviderGoogle:
		return NewGoogleEmbedder(cfg.GeminiAPIKey, model, cfg.EmbedTimeout)
	case ProviderMock:
		return NewMockEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", provider)
	}
}
