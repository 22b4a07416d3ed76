// Package audit implements the append-only audit trail. Every completed
// Q&A interaction and ingestion lands here exactly once; entries are never
// updated or deleted, and double as the raw material for fine-tuning
// dataset extraction.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"accord/backend/go/internal/models"
	"accord/backend/go/internal/store"
	"accord/backend/go/pkg/logger"
)

// Publisher mirrors appended entries onto a message stream for downstream
// consumers (SIEM ingestion, alerting). Publishing is best-effort: it runs
// after the store write and never fails the append.
type Publisher interface {
	Publish(ctx context.Context, entry *models.AuditEntry) error
}

// Trail is the append-only audit record backed by the audit store, with an
// optional stream publisher.
type Trail struct {
	store     store.AuditStore
	publisher Publisher
	log       *logger.Logger
}

// NewTrail creates a trail over the given store. publisher may be nil when
// no event stream is configured.
func NewTrail(s store.AuditStore, publisher Publisher) *Trail {
	return &Trail{
		store:     s,
		publisher: publisher,
		log:       logger.New("audit-trail", "", ""),
	}
}

// Append writes one entry. A missing ID or timestamp is filled in. A failed
// stream publish is logged and swallowed; the store write is the record.
func (t *Trail) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := t.store.Insert(ctx, entry); err != nil {
		return err
	}

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, entry); err != nil {
			t.log.WithError(err).WithField("entry_id", entry.ID).Warn("failed to publish audit event")
		}
	}
	return nil
}

// Find returns entries matching filter, most recent first.
func (t *Trail) Find(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	return t.store.Find(ctx, filter)
}

// QueryHistory returns the Q&A entries of one user, most recent first,
// capped at limit.
func (t *Trail) QueryHistory(ctx context.Context, userID string, limit int64) ([]models.AuditEntry, error) {
	return t.store.Find(ctx, models.AuditFilter{
		UserID:    userID,
		EventType: models.EventTypeQAQuery,
		Limit:     limit,
	})
}

// ExtractTrainingPairs returns query/answer pairs from Q&A entries with
// confidence at or above minConfidence. Entries missing either side of the
// pair are skipped.
func (t *Trail) ExtractTrainingPairs(ctx context.Context, minConfidence float64) ([]models.TrainingPair, error) {
	entries, err := t.store.Find(ctx, models.AuditFilter{
		EventType:     models.EventTypeQAQuery,
		MinConfidence: &minConfidence,
	})
	if err != nil {
		return nil, err
	}

	pairs := make([]models.TrainingPair, 0, len(entries))
	for _, entry := range entries {
		if entry.Query == "" || entry.Answer == "" {
			continue
		}
		pairs = append(pairs, models.TrainingPair{
			Query:      entry.Query,
			Answer:     entry.Answer,
			Confidence: entry.Confidence,
			Timestamp:  entry.Timestamp,
		})
	}
	return pairs, nil
}
