package embedding

import "context"

// Provider converts text into fixed-length numeric vectors. All documents and
// queries in one deployment must be embedded by the same provider and model
// so their vectors share a dimension and a space.
type Provider interface {
	// Embed generates the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for a batch of texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
