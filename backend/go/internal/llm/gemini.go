package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"accord/backend/go/internal/models"
)

// Gemini answers questions through the Google GenAI API.
type Gemini struct {
	model      *genai.GenerativeModel
	modelName  string
	confidence float64
}

var _ Adapter = (*Gemini)(nil)

// NewGemini creates a GenAI client bound to the named generative model. The
// system prompt is installed once as a system instruction rather than being
// resent with every request.
func NewGemini(ctx context.Context, model, apiKey string, confidence float64) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	generativeModel := client.GenerativeModel(model)
	generativeModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	return &Gemini{
		model:      generativeModel,
		modelName:  model,
		confidence: confidence,
	}, nil
}

// GenerateAnswer produces a grounded answer for query.
func (g *Gemini) GenerateAnswer(ctx context.Context, query, contextText string) (*models.ModelAnswer, error) {
	return g.generate(ctx, genai.Text(buildUserPrompt(query, contextText)))
}

// GenerateVisionAnswer produces an answer about the supplied images. Images
// are sent inline as blobs alongside the prompt text.
func (g *Gemini) GenerateVisionAnswer(ctx context.Context, query string, images []models.ImagePart, contextText string) (*models.ModelAnswer, error) {
	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.Blob{
			MIMEType: img.MimeType,
			Data:     img.Data,
		})
	}
	parts = append(parts, genai.Text(buildUserPrompt(query, contextText)))
	return g.generate(ctx, parts...)
}

// ModelID returns the configured Gemini model name.
func (g *Gemini) ModelID() string {
	return g.modelName
}

func (g *Gemini) generate(ctx context.Context, parts ...genai.Part) (*models.ModelAnswer, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := textFromGenaiResponse(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini returned no text candidates")
	}
	return &models.ModelAnswer{Text: text, Confidence: g.confidence}, nil
}

// textFromGenaiResponse concatenates the text parts of the first candidate.
func textFromGenaiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var text string
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text
}
