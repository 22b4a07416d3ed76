package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/embedding"
	"accord/backend/go/internal/models"
	"accord/backend/go/internal/store"
	"accord/backend/go/pkg/util"
)

// DocumentSource is the read-only slice of the document store the engine
// scans. Search never mutates documents.
type DocumentSource interface {
	Find(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

var _ DocumentSource = (*store.MongoDocumentStore)(nil)

// Engine ranks stored documents against a query with an exact brute-force
// cosine scan. Every eligible document is scored on every call, so results
// are a deterministic function of the document snapshot read. Corpora here
// are thousands of compliance documents, not millions; an approximate index
// would change the exact top-K contract and is deliberately not used.
type Engine struct {
	docs      DocumentSource
	embedder  embedding.Provider
	dimension int
	cfg       config.SearchConfig
}

// NewEngine creates a search engine over docs using embedder for query
// vectors. dimension is the system-wide embedding dimension; documents
// whose stored embedding differs are not candidates.
func NewEngine(docs DocumentSource, embedder embedding.Provider, dimension int, cfg config.SearchConfig) *Engine {
	return &Engine{
		docs:      docs,
		embedder:  embedder,
		dimension: dimension,
		cfg:       cfg,
	}
}

// Options narrow a single search call. Zero values select the configured
// defaults.
type Options struct {
	// TopK caps the number of results. 0 selects the configured default.
	TopK int
	// Threshold is the minimum similarity kept. nil selects the configured
	// default; an explicit 0 keeps everything.
	Threshold *float64
	// DocumentIDs restricts the scan to these documents when non-empty.
	// Unknown IDs are simply absent from the candidate set.
	DocumentIDs []string
}

// SearchDocuments embeds queryText and returns the top-K most similar
// documents at or above the similarity threshold, ordered by descending
// score. An empty result is a successful outcome, not an error.
func (e *Engine) SearchDocuments(ctx context.Context, queryText string, opts Options) ([]models.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("query text is empty")
	}
	topK, threshold, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}

	queryVec, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}

	docs, err := e.docs.Find(ctx, models.DocumentFilter{
		IDs:              opts.DocumentIDs,
		RequireEmbedding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load candidate documents: %w", err)
	}

	return e.rank(queryVec, docs, threshold, topK, "")
}

// GetSimilarDocuments ranks stored documents against the stored embedding
// of docID, excluding the document itself. No embedding call is made; the
// ranking uses the engine's default similarity threshold.
func (e *Engine) GetSimilarDocuments(ctx context.Context, docID string, topK int) ([]models.SearchResult, error) {
	if topK == 0 {
		topK = e.cfg.DefaultTopK
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	doc, err := e.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load source document: %w", err)
	}
	if !doc.HasEmbedding(e.dimension) {
		return nil, fmt.Errorf("document %s has no embedding of dimension %d", docID, e.dimension)
	}

	docs, err := e.docs.Find(ctx, models.DocumentFilter{RequireEmbedding: true})
	if err != nil {
		return nil, fmt.Errorf("load candidate documents: %w", err)
	}

	return e.rank(doc.Embedding, docs, e.cfg.SimilarityThreshold, topK, doc.ID)
}

// resolve fills defaults into opts and validates the resolved values.
func (e *Engine) resolve(opts Options) (topK int, threshold float64, err error) {
	topK = opts.TopK
	if topK == 0 {
		topK = e.cfg.DefaultTopK
	}
	if topK <= 0 {
		return 0, 0, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	threshold = e.cfg.SimilarityThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return 0, 0, fmt.Errorf("similarity_threshold must be in [0, 1], got %g", threshold)
	}
	return topK, threshold, nil
}

// rank scores docs against queryVec and returns at most topK results at or
// above threshold, sorted by descending score. Ties keep scan order via the
// stable sort, which makes the ranking deterministic for a fixed snapshot.
func (e *Engine) rank(queryVec []float32, docs []models.Document, threshold float64, topK int, excludeID string) ([]models.SearchResult, error) {
	results := make([]models.SearchResult, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if excludeID != "" && doc.ID == excludeID {
			continue
		}
		if !doc.HasEmbedding(e.dimension) {
			// Documents embedded at a different dimension stay invisible
			// until re-embedded.
			continue
		}

		score, err := CosineSimilarity(queryVec, doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("score document %s: %w", doc.ID, err)
		}
		if score < threshold {
			continue
		}

		results = append(results, models.SearchResult{
			DocID:           doc.ID,
			Filename:        doc.Filename,
			SimilarityScore: score,
			Excerpt:         util.TruncateRunes(doc.TextContent, e.cfg.ExcerptLength),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
