package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	olla "github.com/ollama/ollama/api"

	"accord/backend/go/internal/models"
)

// Ollama answers questions through a local or remote Ollama server.
type Ollama struct {
	client     *olla.Client
	model      string
	confidence float64
}

var _ Adapter = (*Ollama)(nil)

// NewOllama creates an Ollama adapter. baseURL defaults to the local Ollama
// address when empty.
func NewOllama(model, baseURL string, confidence float64) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	// Generation on CPU-only hosts can be slow, so the HTTP timeout is
	// generous.
	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{
		client:     olla.NewClient(parsedURL, hc),
		model:      model,
		confidence: confidence,
	}, nil
}

// GenerateAnswer produces a grounded answer for query.
func (o *Ollama) GenerateAnswer(ctx context.Context, query, contextText string) (*models.ModelAnswer, error) {
	return o.chat(ctx, olla.Message{
		Role:    "user",
		Content: buildUserPrompt(query, contextText),
	})
}

// GenerateVisionAnswer produces an answer about the supplied images using a
// multimodal Ollama model.
func (o *Ollama) GenerateVisionAnswer(ctx context.Context, query string, images []models.ImagePart, contextText string) (*models.ModelAnswer, error) {
	imageData := make([]olla.ImageData, 0, len(images))
	for _, img := range images {
		imageData = append(imageData, olla.ImageData(img.Data))
	}
	return o.chat(ctx, olla.Message{
		Role:    "user",
		Content: buildUserPrompt(query, contextText),
		Images:  imageData,
	})
}

// ModelID returns the configured Ollama model name.
func (o *Ollama) ModelID() string {
	return o.model
}

func (o *Ollama) chat(ctx context.Context, userMessage olla.Message) (*models.ModelAnswer, error) {
	stream := false
	var sb strings.Builder

	err := o.client.Chat(ctx, &olla.ChatRequest{
		Model: o.model,
		Messages: []olla.Message{
			{Role: "system", Content: systemPrompt},
			userMessage,
		},
		Stream: &stream,
	}, func(resp olla.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to chat with ollama: %w", err)
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("ollama returned an empty response")
	}
	return &models.ModelAnswer{Text: sb.String(), Confidence: o.confidence}, nil
}
