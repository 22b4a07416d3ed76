package embedding

import (
	"context"
	"math"
	"testing"
	"time"

	"accord/backend/go/internal/config"
)

func TestNewLocalModelRejectsBadDimension(t *testing.T) {
	if _, err := NewLocalModel(0); err == nil {
		t.Error("Expected error for dimension 0, got nil")
	}
	if _, err := NewLocalModel(-5); err == nil {
		t.Error("Expected error for negative dimension, got nil")
	}
}

func TestLocalModelDeterministic(t *testing.T) {
	model, err := NewLocalModel(64)
	if err != nil {
		t.Fatalf("NewLocalModel failed: %v", err)
	}

	ctx := context.Background()
	first, err := model.Embed(ctx, "data retention policy")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := model.Embed(ctx, "data retention policy")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(first) != 64 {
		t.Fatalf("Expected dimension 64, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Expected identical vectors for identical text, diverged at index %d", i)
		}
	}
}

func TestLocalModelNormalized(t *testing.T) {
	model, err := NewLocalModel(768)
	if err != nil {
		t.Fatalf("NewLocalModel failed: %v", err)
	}

	vec, err := model.Embed(context.Background(), "incident response runbook")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("Expected unit-length vector, got norm %f", norm)
	}
}

func TestLocalModelDistinguishesTexts(t *testing.T) {
	model, err := NewLocalModel(32)
	if err != nil {
		t.Fatalf("NewLocalModel failed: %v", err)
	}

	ctx := context.Background()
	a, err := model.Embed(ctx, "gdpr")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := model.Embed(ctx, "hipaa")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Expected different texts to produce different vectors")
	}
}

func TestLocalModelEmbedBatchOrder(t *testing.T) {
	model, err := NewLocalModel(16)
	if err != nil {
		t.Fatalf("NewLocalModel failed: %v", err)
	}

	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma"}
	batch, err := model.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("Expected %d vectors, got %d", len(texts), len(batch))
	}

	for i, text := range texts {
		single, err := model.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("Batch vector %d does not match single embedding", i)
			}
		}
	}
}

// countingProvider records how many times the underlying provider is hit.
type countingProvider struct {
	inner Provider
	calls int
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	return p.inner.Embed(ctx, text)
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls += len(texts)
	return p.inner.EmbedBatch(ctx, texts)
}

func TestCachedProviderSkipsRepeatEmbeds(t *testing.T) {
	local, err := NewLocalModel(16)
	if err != nil {
		t.Fatalf("NewLocalModel failed: %v", err)
	}
	counting := &countingProvider{inner: local}
	cached, err := NewCachedProvider(counting, 8, time.Minute)
	if err != nil {
		t.Fatalf("NewCachedProvider failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cached.Embed(ctx, "access control matrix"); err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
	}
	if counting.calls != 1 {
		t.Errorf("Expected 1 backend call for repeated text, got %d", counting.calls)
	}
}

func TestCachedProviderBatchEmbedsOnlyMisses(t *testing.T) {
	local, err := NewLocalModel(16)
	if err != nil {
		t.Fatalf("NewLocalModel failed: %v", err)
	}
	counting := &countingProvider{inner: local}
	cached, err := NewCachedProvider(counting, 8, time.Minute)
	if err != nil {
		t.Fatalf("NewCachedProvider failed: %v", err)
	}

	ctx := context.Background()
	if _, err := cached.Embed(ctx, "soc2"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	batch, err := cached.EmbedBatch(ctx, []string{"soc2", "iso27001", "soc2"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(batch))
	}
	// One call for the initial embed, one for the single miss.
	if counting.calls != 2 {
		t.Errorf("Expected 2 backend calls, got %d", counting.calls)
	}
	for i, vec := range batch {
		if len(vec) != 16 {
			t.Errorf("Vector %d has dimension %d, expected 16", i, len(vec))
		}
	}
}

func TestNewProviderLocal(t *testing.T) {
	cfg := &config.EmbeddingConfig{
		Provider:  ProviderLocal,
		Dimension: 32,
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	vec, err := provider.Embed(context.Background(), "vendor risk assessment")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 32 {
		t.Errorf("Expected dimension 32, got %d", len(vec))
	}
}

func TestNewProviderWrapsWithCache(t *testing.T) {
	cfg := &config.EmbeddingConfig{
		Provider:  ProviderLocal,
		Dimension: 32,
		Cache: config.EmbeddingCacheConfig{
			Enabled:  true,
			Capacity: 4,
			TTL:      "10m",
		},
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if _, ok := provider.(*CachedProvider); !ok {
		t.Errorf("Expected *CachedProvider, got %T", provider)
	}
}

func TestNewProviderUnsupported(t *testing.T) {
	cfg := &config.EmbeddingConfig{Provider: "watson"}
	if _, err := NewProvider(cfg); err == nil {
		t.Error("Expected error for unsupported provider, got nil")
	}
}
