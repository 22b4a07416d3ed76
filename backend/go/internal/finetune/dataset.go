package finetune

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"accord/backend/go/internal/models"
)

type datasetMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type datasetMetadata struct {
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Timestamp  string  `json:"timestamp"`
}

type datasetRecord struct {
	Messages []datasetMessage `json:"messages"`
	Metadata datasetMetadata  `json:"metadata"`
}

// BuildDataset renders training pairs as JSONL in the chat message format
// tuning pipelines expect: one object per line with a user/assistant message
// pair plus provenance metadata.
func BuildDataset(pairs []models.TrainingPair) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, pair := range pairs {
		rec := datasetRecord{
			Messages: []datasetMessage{
				{Role: "user", Content: pair.Query},
				{Role: "assistant", Content: pair.Answer},
			},
			Metadata: datasetMetadata{
				Confidence: pair.Confidence,
				Source:     "audit_log",
				Timestamp:  pair.Timestamp.UTC().Format(time.RFC3339),
			},
		}
		if err := enc.Encode(&rec); err != nil {
			return nil, fmt.Errorf("encode training pair: %w", err)
		}
	}
	return buf.Bytes(), nil
}
