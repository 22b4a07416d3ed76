package llm

import (
	"context"
	"fmt"
	"strings"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/models"
)

// Adapter is the narrow surface the answer pipeline needs from a generative
// model provider. Implementations are stateless between calls; every query
// carries its own retrieved context.
type Adapter interface {
	// GenerateAnswer produces an answer to query grounded in contextText,
	// the concatenated excerpts of the retrieved documents.
	GenerateAnswer(ctx context.Context, query, contextText string) (*models.ModelAnswer, error)

	// GenerateVisionAnswer produces an answer to query about the supplied
	// images, optionally grounded in contextText.
	GenerateVisionAnswer(ctx context.Context, query string, images []models.ImagePart, contextText string) (*models.ModelAnswer, error)

	// ModelID returns the identifier of the underlying model, as reported
	// in responses and audit entries.
	ModelID() string
}

// Supported provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// NewAdapter builds the generative model adapter selected by cfg.Provider.
func NewAdapter(cfg *config.LLMConfig) (Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is nil")
	}
	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(context.Background(), cfg.Gemini.Model, cfg.Gemini.APIKey, cfg.AnswerConfidence)
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.AnswerConfidence)
	case ProviderOllama:
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL, cfg.AnswerConfidence)
	case ProviderLocal:
		return NewLocal(cfg.AnswerConfidence), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// systemPrompt pins every provider to grounded, citation-faithful answers.
const systemPrompt = "You are a compliance assistant. Answer the question using only the " +
	"provided context from the organization's compliance document repository. " +
	"Quote obligations, controls and deadlines exactly as written. If the " +
	"context does not contain the answer, say so plainly instead of guessing."

// buildUserPrompt assembles the user-facing prompt from the retrieved
// context and the question.
func buildUserPrompt(query, contextText string) string {
	var sb strings.Builder
	if contextText != "" {
		sb.WriteString("Context:\n")
		sb.WriteString(contextText)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}
