package llm

import (
	"context"
	"fmt"
	"strings"

	"accord/backend/go/internal/models"
	"accord/backend/go/pkg/util"
)

// localAnswerLimit bounds the extractive answer produced by the local
// adapter.
const localAnswerLimit = 400

// Local is a deterministic offline adapter for development and CI. It
// produces an extractive answer from the leading part of the retrieved
// context instead of calling a model service, so the full answer pipeline
// can run without credentials.
type Local struct {
	confidence float64
}

var _ Adapter = (*Local)(nil)

// NewLocal creates a local adapter reporting the given confidence.
func NewLocal(confidence float64) *Local {
	return &Local{confidence: confidence}
}

// GenerateAnswer returns the leading sentences of the retrieved context.
func (l *Local) GenerateAnswer(_ context.Context, query, contextText string) (*models.ModelAnswer, error) {
	answer := extractiveAnswer(contextText)
	if answer == "" {
		answer = "The retrieved context does not state an answer to: " + query
	}
	return &models.ModelAnswer{Text: answer, Confidence: l.confidence}, nil
}

// GenerateVisionAnswer cannot inspect pixels offline; it reports what was
// received so callers exercising the vision path still get a deterministic
// response.
func (l *Local) GenerateVisionAnswer(_ context.Context, query string, images []models.ImagePart, contextText string) (*models.ModelAnswer, error) {
	answer := fmt.Sprintf("Received %d image(s) for review regarding: %s", len(images), query)
	if extract := extractiveAnswer(contextText); extract != "" {
		answer += "\n" + extract
	}
	return &models.ModelAnswer{Text: answer, Confidence: l.confidence}, nil
}

// ModelID identifies the local adapter in responses and audit entries.
func (l *Local) ModelID() string {
	return "local"
}

// extractiveAnswer clips the context to the answer limit, preferring a
// sentence boundary when one falls in the second half of the clip.
func extractiveAnswer(contextText string) string {
	text := strings.TrimSpace(contextText)
	if text == "" {
		return ""
	}
	clipped := util.TruncateRunes(text, localAnswerLimit)
	if clipped == text {
		return text
	}
	if idx := strings.LastIndex(clipped, ". "); idx > len(clipped)/2 {
		return clipped[:idx+1]
	}
	return clipped
}
