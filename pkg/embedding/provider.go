package embedding

import "context"

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	// Generate maps text to a fixed-length vector
	Generate(ctx context.Context, text string) ([]float32, error)

	// IsHealthy reports whether the embedding backend is reachable
	IsHealthy(ctx context.Context) bool
}
