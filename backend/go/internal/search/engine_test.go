package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/models"
)

// fakeSource serves documents from memory, applying the same filter
// semantics the real store does.
type fakeSource struct {
	docs    []models.Document
	findErr error
}

func (f *fakeSource) Find(_ context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Document
	for _, d := range f.docs {
		if filter.RequireEmbedding && len(d.Embedding) == 0 {
			continue
		}
		if len(filter.IDs) > 0 && !containsID(filter.IDs, d.ID) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeSource) GetByID(_ context.Context, id string) (*models.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == id {
			return &f.docs[i], nil
		}
	}
	return nil, fmt.Errorf("document %s not found", id)
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// stubEmbedder returns a fixed vector, or a fixed error.
type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec, err := s.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultTopK:         5,
		SimilarityThreshold: 0.7,
		ExcerptLength:       500,
	}
}

func doc(id, filename, text string, emb []float32) models.Document {
	return models.Document{
		ID:          id,
		Filename:    filename,
		TextContent: text,
		Embedding:   emb,
	}
}

// testCorpus returns documents with known cosine similarity to the query
// vector {1,0,0,0}: exact 1.0, diag ~0.7071, scaled ~0.8944, far ~0.5774,
// ortho 0.0 and opposite 0.0 (clamped).
func testCorpus() []models.Document {
	return []models.Document{
		doc("doc-exact", "retention.txt", "GDPR data retention policy", []float32{1, 0, 0, 0}),
		doc("doc-diag", "diag.txt", "Diagonal content", []float32{1, 1, 0, 0}),
		doc("doc-scaled", "scaled.txt", "Scaled content", []float32{2, 1, 0, 0}),
		doc("doc-far", "far.txt", "Far content", []float32{1, 0, 1, 1}),
		doc("doc-ortho", "ortho.txt", "Orthogonal content", []float32{0, 1, 0, 0}),
		doc("doc-opposite", "opposite.txt", "Opposite content", []float32{-1, 0, 0, 0}),
	}
}

func newTestEngine(docs []models.Document, embedder *stubEmbedder) *Engine {
	return NewEngine(&fakeSource{docs: docs}, embedder, 4, testSearchConfig())
}

func float64Ptr(v float64) *float64 { return &v }

func TestSearchDocumentsExactMatch(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	results, err := engine.SearchDocuments(context.Background(), "GDPR data retention", Options{})
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Expected results, got none")
	}
	if results[0].DocID != "doc-exact" {
		t.Errorf("Expected doc-exact first, got %s", results[0].DocID)
	}
	if math.Abs(results[0].SimilarityScore-1.0) > 1e-9 {
		t.Errorf("Expected similarity 1.0, got %f", results[0].SimilarityScore)
	}
}

func TestSearchDocumentsEmptyStore(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(nil, embedder)

	results, err := engine.SearchDocuments(context.Background(), "anything", Options{})
	if err != nil {
		t.Fatalf("Expected empty store search to succeed, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestSearchDocumentsThresholdFilter(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	results, err := engine.SearchDocuments(context.Background(), "q", Options{})
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	// Default threshold 0.7 keeps exact (1.0), scaled (0.8944) and diag (0.7071).
	if len(results) != 3 {
		t.Fatalf("Expected 3 results above threshold 0.7, got %d", len(results))
	}
	for _, r := range results {
		if r.SimilarityScore < 0.7 {
			t.Errorf("Result %s below threshold: %f", r.DocID, r.SimilarityScore)
		}
	}
}

func TestSearchDocumentsSortedDescending(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	results, err := engine.SearchDocuments(context.Background(), "q", Options{Threshold: float64Ptr(0.0)})
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	for i := 0; i < len(results)-1; i++ {
		if results[i].SimilarityScore < results[i+1].SimilarityScore {
			t.Errorf("Results not sorted descending at index %d: %f < %f",
				i, results[i].SimilarityScore, results[i+1].SimilarityScore)
		}
	}

	wantOrder := []string{"doc-exact", "doc-scaled", "doc-diag", "doc-far"}
	for i, want := range wantOrder {
		if results[i].DocID != want {
			t.Errorf("Expected %s at position %d, got %s", want, i, results[i].DocID)
		}
	}
}

func TestSearchDocumentsTopKTruncation(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	results, err := engine.SearchDocuments(context.Background(), "q", Options{
		TopK:      2,
		Threshold: float64Ptr(0.0),
	})
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results with top_k=2, got %d", len(results))
	}
	if results[0].DocID != "doc-exact" || results[1].DocID != "doc-scaled" {
		t.Errorf("Expected the two best documents, got %s and %s", results[0].DocID, results[1].DocID)
	}
}

func TestSearchDocumentsThresholdMonotonicity(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	thresholds := []float64{0.0, 0.5, 0.7, 0.9, 1.0}
	prevCount := len(testCorpus()) + 1
	for _, th := range thresholds {
		results, err := engine.SearchDocuments(context.Background(), "q", Options{
			TopK:      10,
			Threshold: float64Ptr(th),
		})
		if err != nil {
			t.Fatalf("SearchDocuments at threshold %f failed: %v", th, err)
		}
		if len(results) > prevCount {
			t.Errorf("Raising threshold to %f increased result count from %d to %d",
				th, prevCount, len(results))
		}
		prevCount = len(results)
	}
}

func TestSearchDocumentsIDSubsetFilter(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	// doc-exact is more similar but lies outside the requested subset.
	results, err := engine.SearchDocuments(context.Background(), "q", Options{
		Threshold:   float64Ptr(0.0),
		DocumentIDs: []string{"doc-diag", "doc-unknown"},
	})
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result from subset, got %d", len(results))
	}
	if results[0].DocID != "doc-diag" {
		t.Errorf("Expected doc-diag, got %s", results[0].DocID)
	}
}

func TestSearchDocumentsSkipsWrongDimension(t *testing.T) {
	docs := append(testCorpus(),
		doc("doc-stale", "stale.txt", "Embedded at an old dimension", []float32{1, 0, 0}))
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(docs, embedder)

	results, err := engine.SearchDocuments(context.Background(), "q", Options{Threshold: float64Ptr(0.0)})
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	for _, r := range results {
		if r.DocID == "doc-stale" {
			t.Error("Expected wrong-dimension document to be skipped")
		}
	}
}

func TestSearchDocumentsEmptyQuery(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	for _, query := range []string{"", "   ", "\t\n"} {
		if _, err := engine.SearchDocuments(context.Background(), query, Options{}); err == nil {
			t.Errorf("Expected error for query %q, got nil", query)
		}
	}
	if embedder.calls != 0 {
		t.Errorf("Expected no embedding calls for invalid queries, got %d", embedder.calls)
	}
}

func TestSearchDocumentsInvalidTopK(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	if _, err := engine.SearchDocuments(context.Background(), "q", Options{TopK: -3}); err == nil {
		t.Error("Expected error for negative top_k, got nil")
	}
}

func TestSearchDocumentsInvalidThreshold(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	if _, err := engine.SearchDocuments(context.Background(), "q", Options{Threshold: float64Ptr(1.5)}); err == nil {
		t.Error("Expected error for threshold above 1, got nil")
	}
	if _, err := engine.SearchDocuments(context.Background(), "q", Options{Threshold: float64Ptr(-0.1)}); err == nil {
		t.Error("Expected error for negative threshold, got nil")
	}
}

func TestSearchDocumentsEmbedderErrorPropagates(t *testing.T) {
	embedder := &stubEmbedder{err: fmt.Errorf("quota exhausted")}
	engine := newTestEngine(testCorpus(), embedder)

	_, err := engine.SearchDocuments(context.Background(), "q", Options{})
	if err == nil {
		t.Fatal("Expected embedder error to propagate, got nil")
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Errorf("Expected wrapped provider error, got %v", err)
	}
}

func TestSearchDocumentsExcerptBounded(t *testing.T) {
	longText := strings.Repeat("a", 600)
	docs := []models.Document{doc("doc-long", "long.txt", longText, []float32{1, 0, 0, 0})}
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(docs, embedder)

	results, err := engine.SearchDocuments(context.Background(), "q", Options{})
	if err != nil {
		t.Fatalf("SearchDocuments failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if got := len([]rune(results[0].Excerpt)); got != 500 {
		t.Errorf("Expected excerpt of 500 runes, got %d", got)
	}
}

func TestGetSimilarDocumentsExcludesSource(t *testing.T) {
	// The erroring embedder proves the stored embedding is used instead of
	// a fresh embedding call.
	embedder := &stubEmbedder{err: fmt.Errorf("must not be called")}
	engine := newTestEngine(testCorpus(), embedder)

	results, err := engine.GetSimilarDocuments(context.Background(), "doc-exact", 10)
	if err != nil {
		t.Fatalf("GetSimilarDocuments failed: %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("Expected no embedding calls, got %d", embedder.calls)
	}
	for _, r := range results {
		if r.DocID == "doc-exact" {
			t.Error("Expected source document excluded from its own results")
		}
	}
	// Default threshold 0.7 keeps scaled (0.8944) and diag (0.7071).
	if len(results) != 2 {
		t.Fatalf("Expected 2 neighbors above the default threshold, got %d", len(results))
	}
	if results[0].DocID != "doc-scaled" {
		t.Errorf("Expected doc-scaled as nearest neighbor, got %s", results[0].DocID)
	}
}

func TestGetSimilarDocumentsUnknownID(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	if _, err := engine.GetSimilarDocuments(context.Background(), "doc-missing", 5); err == nil {
		t.Error("Expected error for unknown document, got nil")
	}
}

func TestGetSimilarDocumentsSourceWithoutEmbedding(t *testing.T) {
	docs := append(testCorpus(), doc("doc-plain", "plain.txt", "No embedding yet", nil))
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(docs, embedder)

	if _, err := engine.GetSimilarDocuments(context.Background(), "doc-plain", 5); err == nil {
		t.Error("Expected error for source document without embedding, got nil")
	}
}

func TestGetSimilarDocumentsTopK(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1, 0, 0, 0}}
	engine := newTestEngine(testCorpus(), embedder)

	results, err := engine.GetSimilarDocuments(context.Background(), "doc-exact", 1)
	if err != nil {
		t.Fatalf("GetSimilarDocuments failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result with top_k=1, got %d", len(results))
	}
	if results[0].DocID != "doc-scaled" {
		t.Errorf("Expected the closest neighbor only, got %s", results[0].DocID)
	}
}
