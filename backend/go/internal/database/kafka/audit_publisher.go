package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"accord/backend/go/internal/audit"
	"accord/backend/go/internal/models"

	"github.com/segmentio/kafka-go"
)

// AuditTopic receives one message per audit entry written by the backend.
const AuditTopic = "audit_events"

// AuditPublisher streams audit entries to Kafka so downstream consumers
// (SIEM pipelines, compliance reports) can follow the trail in real time.
type AuditPublisher struct {
	writer *kafka.Writer
}

var _ audit.Publisher = (*AuditPublisher)(nil)

// NewAuditPublisher creates a publisher writing to the audit topic.
func NewAuditPublisher(client *Client) *AuditPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      client.Config.Brokers,
		Topic:        AuditTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
	return &AuditPublisher{writer: writer}
}

// Publish serializes the entry as JSON and writes it keyed by entry id.
func (p *AuditPublisher) Publish(ctx context.Context, entry *models.AuditEntry) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.ID),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close shuts down the underlying writer.
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}
