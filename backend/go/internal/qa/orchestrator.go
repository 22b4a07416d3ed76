// Package qa implements the retrieval-augmented Q&A orchestrator: retrieve,
// answer, cite, audit.
package qa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"accord/backend/go/internal/audit"
	"accord/backend/go/internal/config"
	"accord/backend/go/internal/llm"
	"accord/backend/go/internal/models"
	"accord/backend/go/internal/search"
	"accord/backend/go/pkg/logger"
)

// Searcher is the slice of the search engine the orchestrator consumes.
type Searcher interface {
	SearchDocuments(ctx context.Context, queryText string, opts search.Options) ([]models.SearchResult, error)
}

var _ Searcher = (*search.Engine)(nil)

// Recorder is the slice of the audit trail the orchestrator consumes.
type Recorder interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	QueryHistory(ctx context.Context, userID string, limit int64) ([]models.AuditEntry, error)
}

var _ Recorder = (*audit.Trail)(nil)

// Orchestrator answers natural-language questions grounded in retrieved
// documents and records every completed interaction in the audit trail.
type Orchestrator struct {
	searcher Searcher
	adapter  llm.Adapter
	trail    Recorder
	cfg      config.QAConfig
	log      *logger.Logger
}

// NewOrchestrator wires the orchestrator to its collaborators. All retry
// and backoff behavior belongs to the collaborators; the orchestrator
// itself never retries.
func NewOrchestrator(searcher Searcher, adapter llm.Adapter, trail Recorder, cfg config.QAConfig) *Orchestrator {
	return &Orchestrator{
		searcher: searcher,
		adapter:  adapter,
		trail:    trail,
		cfg:      cfg,
		log:      logger.New("qa-orchestrator", "", ""),
	}
}

// AnswerQuery retrieves documents for the query, generates a grounded
// answer and appends exactly one audit entry. When nothing clears the
// similarity threshold the response carries confidence 0.0 and the fixed
// no-answer text, and the model is not called at all. A model failure
// propagates without an audit entry; an audit write failure is logged but
// never fails an already-produced answer.
func (o *Orchestrator) AnswerQuery(ctx context.Context, req *models.QARequest) (*models.QAResponse, error) {
	start := time.Now()
	if strings.TrimSpace(req.QueryText) == "" {
		return nil, fmt.Errorf("query text is empty")
	}

	opts := search.Options{Threshold: req.SimilarityThreshold}
	if req.TopK != nil {
		opts.TopK = *req.TopK
	}
	results, err := o.searcher.SearchDocuments(ctx, req.QueryText, opts)
	if err != nil {
		return nil, err
	}

	var (
		answerText string
		confidence float64
	)
	if len(results) == 0 {
		answerText = o.cfg.NoAnswerText
		confidence = 0.0
	} else {
		answer, err := o.adapter.GenerateAnswer(ctx, req.QueryText, BuildContext(results))
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		answerText = answer.Text
		confidence = clamp01(answer.Confidence)
	}

	resp := &models.QAResponse{
		Query:            req.QueryText,
		Answer:           answerText,
		Confidence:       confidence,
		ModelUsed:        o.adapter.ModelID(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
	if req.IncludeSources {
		resp.Citations = results
	}

	o.record(ctx, &models.AuditEntry{
		EventType:    models.EventTypeQAQuery,
		UserID:       req.UserID,
		Query:        req.QueryText,
		Answer:       answerText,
		Confidence:   confidence,
		NumCitations: len(results),
		Details: map[string]interface{}{
			"model_used":         resp.ModelUsed,
			"processing_time_ms": resp.ProcessingTimeMS,
			"include_sources":    req.IncludeSources,
		},
	})
	return resp, nil
}

// AnswerImageQuery answers a question about user-supplied images. No
// retrieval is involved; the images are the grounding. The interaction is
// audited like a text query, marked as image mode in the details.
func (o *Orchestrator) AnswerImageQuery(ctx context.Context, req *models.ImageQARequest) (*models.QAResponse, error) {
	start := time.Now()
	if strings.TrimSpace(req.QueryText) == "" {
		return nil, fmt.Errorf("query text is empty")
	}
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("no images supplied")
	}

	answer, err := o.adapter.GenerateVisionAnswer(ctx, req.QueryText, req.Images, "")
	if err != nil {
		return nil, fmt.Errorf("generate vision answer: %w", err)
	}

	resp := &models.QAResponse{
		Query:            req.QueryText,
		Answer:           answer.Text,
		Confidence:       clamp01(answer.Confidence),
		ModelUsed:        o.adapter.ModelID(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}

	o.record(ctx, &models.AuditEntry{
		EventType:    models.EventTypeQAQuery,
		UserID:       req.UserID,
		Query:        req.QueryText,
		Answer:       answer.Text,
		Confidence:   resp.Confidence,
		NumCitations: 0,
		Details: map[string]interface{}{
			"mode":               "image",
			"image_count":        len(req.Images),
			"model_used":         resp.ModelUsed,
			"processing_time_ms": resp.ProcessingTimeMS,
		},
	})
	return resp, nil
}

// GetQueryHistory returns the user's Q&A interactions, most recent first.
func (o *Orchestrator) GetQueryHistory(ctx context.Context, userID string, limit int64) ([]models.AuditEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", limit)
	}
	return o.trail.QueryHistory(ctx, userID, limit)
}

// record appends the audit entry for a completed interaction. The answer
// has already been produced, so a failed write is logged, not returned.
func (o *Orchestrator) record(ctx context.Context, entry *models.AuditEntry) {
	if err := o.trail.Append(ctx, entry); err != nil {
		o.log.WithError(err).WithField("query", entry.Query).Error("audit append failed")
	}
}

// BuildContext assembles the model-facing context payload from retrieved
// excerpts, labeling each with its position and source filename.
func BuildContext(results []models.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Source %d: %s]\n%s", i+1, r.Filename, r.Excerpt)
	}
	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
