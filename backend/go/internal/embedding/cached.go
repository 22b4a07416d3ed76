package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"accord/backend/go/pkg/util"
)

// CachedProvider wraps another provider with an in-memory LRU cache keyed by
// a hash of the input text. Repeated queries, the common case in compliance
// workflows where teams ask near-identical questions, skip the embedding
// service entirely. Callers must not mutate returned vectors.
type CachedProvider struct {
	inner Provider
	cache *util.LRUCache[string, []float32]
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with a cache holding up to capacity vectors
// for at most ttl.
func NewCachedProvider(inner Provider, capacity int, ttl time.Duration) (*CachedProvider, error) {
	cache, err := util.NewWithConfig(util.CacheConfig[string, []float32]{
		Capacity: capacity,
		TTL:      ttl,
	})
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, or embeds and caches it.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := p.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Put(key, vec, 1)
	return vec, nil
}

// EmbedBatch serves cached vectors where possible and embeds only the
// misses, preserving input order in the result.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var (
		missTexts   []string
		missIndexes []int
	)
	for i, text := range texts {
		if vec, ok := p.cache.Get(cacheKey(text)); ok {
			embeddings[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}
	if len(missTexts) == 0 {
		return embeddings, nil
	}

	fetched, err := p.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIndexes {
		embeddings[idx] = fetched[j]
		p.cache.Put(cacheKey(missTexts[j]), fetched[j], 1)
	}
	return embeddings, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
