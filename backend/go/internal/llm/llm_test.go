package llm

import (
	"context"
	"strings"
	"testing"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/models"
)

func TestLocalAnswerFromContext(t *testing.T) {
	adapter := NewLocal(0.85)

	answer, err := adapter.GenerateAnswer(context.Background(),
		"What is the retention period?",
		"The retention period for audit records is seven years. Records are archived to cold storage after one year.")
	if err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}
	if !strings.Contains(answer.Text, "retention period") {
		t.Errorf("Expected extractive answer to contain context text, got %q", answer.Text)
	}
	if answer.Confidence != 0.85 {
		t.Errorf("Expected confidence 0.85, got %f", answer.Confidence)
	}
}

func TestLocalAnswerWithoutContext(t *testing.T) {
	adapter := NewLocal(0.85)

	answer, err := adapter.GenerateAnswer(context.Background(), "What is our breach notification deadline?", "")
	if err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}
	if !strings.Contains(answer.Text, "breach notification deadline") {
		t.Errorf("Expected fallback answer to mention the query, got %q", answer.Text)
	}
}

func TestLocalAnswerClipsLongContext(t *testing.T) {
	adapter := NewLocal(0.85)

	long := strings.Repeat("Access reviews run quarterly. ", 100)
	answer, err := adapter.GenerateAnswer(context.Background(), "How often do access reviews run?", long)
	if err != nil {
		t.Fatalf("GenerateAnswer failed: %v", err)
	}
	if len([]rune(answer.Text)) > localAnswerLimit {
		t.Errorf("Expected answer clipped to %d runes, got %d", localAnswerLimit, len([]rune(answer.Text)))
	}
	if !strings.HasSuffix(answer.Text, ".") {
		t.Errorf("Expected clip at sentence boundary, got ending %q", answer.Text[len(answer.Text)-20:])
	}
}

func TestLocalVisionAnswer(t *testing.T) {
	adapter := NewLocal(0.85)

	images := []models.ImagePart{
		{MimeType: "image/png", Data: []byte{0x89, 0x50}},
		{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	}
	answer, err := adapter.GenerateVisionAnswer(context.Background(), "Is this badge photo compliant?", images, "")
	if err != nil {
		t.Fatalf("GenerateVisionAnswer failed: %v", err)
	}
	if !strings.Contains(answer.Text, "2 image(s)") {
		t.Errorf("Expected vision answer to report image count, got %q", answer.Text)
	}
}

func TestLocalModelID(t *testing.T) {
	adapter := NewLocal(0.85)
	if got := adapter.ModelID(); got != "local" {
		t.Errorf("Expected model id 'local', got %q", got)
	}
}

func TestNewAdapterLocal(t *testing.T) {
	cfg := &config.LLMConfig{Provider: ProviderLocal, AnswerConfidence: 0.9}
	adapter, err := NewAdapter(cfg)
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}
	if _, ok := adapter.(*Local); !ok {
		t.Errorf("Expected *Local, got %T", adapter)
	}
}

func TestNewAdapterUnsupported(t *testing.T) {
	cfg := &config.LLMConfig{Provider: "cohere"}
	if _, err := NewAdapter(cfg); err == nil {
		t.Error("Expected error for unsupported provider, got nil")
	}
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt("What is the SLA?", "Uptime commitment is 99.9%.")
	if !strings.Contains(prompt, "Context:") {
		t.Errorf("Expected prompt to carry a context section, got %q", prompt)
	}
	if !strings.Contains(prompt, "Question: What is the SLA?") {
		t.Errorf("Expected prompt to carry the question, got %q", prompt)
	}

	noContext := buildUserPrompt("What is the SLA?", "")
	if strings.Contains(noContext, "Context:") {
		t.Errorf("Expected no context section for empty context, got %q", noContext)
	}
}
