package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// LocalModel is a deterministic offline embedding provider. Vectors are
// derived from a SHA-256 stream over the input text and L2-normalized, so
// equal texts always embed identically and cosine scores stay in range.
// It needs no external service, which makes it the provider of choice for
// development environments and CI.
type LocalModel struct {
	dimension int
}

var _ Provider = (*LocalModel)(nil)

// NewLocalModel creates a local provider producing vectors of the given
// dimension.
func NewLocalModel(dimension int) (*LocalModel, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	return &LocalModel{dimension: dimension}, nil
}

// Embed generates the deterministic embedding vector for a single text.
func (m *LocalModel) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimension)
	block := sha256.Sum256([]byte(text))

	var norm float64
	for i := 0; i < m.dimension; i++ {
		word := i % (sha256.Size / 4)
		if word == 0 && i > 0 {
			// The block is exhausted, chain the hash for more bytes.
			block = sha256.Sum256(block[:])
		}
		bits := binary.BigEndian.Uint32(block[word*4 : word*4+4])
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch generates deterministic embedding vectors for a batch of texts.
func (m *LocalModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}
