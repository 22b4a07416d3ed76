package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"accord/backend/go/internal/models"
)

// OpenAI answers questions through the OpenAI chat completions API or any
// OpenAI-compatible endpoint.
type OpenAI struct {
	client     *openai.Client
	model      string
	confidence float64
}

var _ Adapter = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI adapter. baseURL overrides the default
// endpoint when non-empty.
func NewOpenAI(model, apiKey, baseURL string, confidence float64) (*OpenAI, error) {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		confidence: confidence,
	}, nil
}

// GenerateAnswer produces a grounded answer for query.
func (o *OpenAI) GenerateAnswer(ctx context.Context, query, contextText string) (*models.ModelAnswer, error) {
	return o.complete(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: buildUserPrompt(query, contextText),
	})
}

// GenerateVisionAnswer produces an answer about the supplied images. Images
// travel inline as base64 data URLs in a multi-part user message.
func (o *OpenAI) GenerateVisionAnswer(ctx context.Context, query string, images []models.ImagePart, contextText string) (*models.ModelAnswer, error) {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	for _, img := range images {
		dataURL := fmt.Sprintf("data:%s;base64,%s", img.MimeType, base64.StdEncoding.EncodeToString(img.Data))
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: buildUserPrompt(query, contextText),
	})

	return o.complete(ctx, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
}

// ModelID returns the configured OpenAI model name.
func (o *OpenAI) ModelID() string {
	return o.model
}

func (o *OpenAI) complete(ctx context.Context, userMessage openai.ChatCompletionMessage) (*models.ModelAnswer, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			userMessage,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}
	return &models.ModelAnswer{
		Text:       resp.Choices[0].Message.Content,
		Confidence: o.confidence,
	}, nil
}
