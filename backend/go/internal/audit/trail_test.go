package audit

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"accord/backend/go/internal/models"
)

// memoryAuditStore applies the same filter semantics as the Mongo store.
type memoryAuditStore struct {
	entries   []models.AuditEntry
	insertErr error
}

func (m *memoryAuditStore) Insert(_ context.Context, entry *models.AuditEntry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryAuditStore) Find(_ context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	for _, e := range m.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.MinConfidence != nil && e.Confidence < *filter.MinConfidence {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// failingPublisher always fails, counting attempts.
type failingPublisher struct {
	attempts int
}

func (p *failingPublisher) Publish(_ context.Context, _ *models.AuditEntry) error {
	p.attempts++
	return fmt.Errorf("broker unreachable")
}

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	mem := &memoryAuditStore{}
	trail := NewTrail(mem, nil)

	entry := &models.AuditEntry{
		EventType:  models.EventTypeQAQuery,
		Query:      "What is the data retention period?",
		Answer:     "Seven years.",
		Confidence: 0.9,
	}
	if err := trail.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if entry.ID == "" {
		t.Error("Expected generated entry ID")
	}
	if entry.Timestamp.IsZero() {
		t.Error("Expected generated timestamp")
	}
	if len(mem.entries) != 1 {
		t.Fatalf("Expected 1 stored entry, got %d", len(mem.entries))
	}
}

func TestAppendKeepsCallerProvidedFields(t *testing.T) {
	mem := &memoryAuditStore{}
	trail := NewTrail(mem, nil)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := &models.AuditEntry{ID: "fixed-id", Timestamp: ts, EventType: models.EventTypeQAQuery}
	if err := trail.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if entry.ID != "fixed-id" {
		t.Errorf("Expected caller-provided ID kept, got %s", entry.ID)
	}
	if !entry.Timestamp.Equal(ts) {
		t.Errorf("Expected caller-provided timestamp kept, got %v", entry.Timestamp)
	}
}

func TestAppendStoreErrorPropagates(t *testing.T) {
	mem := &memoryAuditStore{insertErr: fmt.Errorf("connection reset")}
	trail := NewTrail(mem, nil)

	err := trail.Append(context.Background(), &models.AuditEntry{EventType: models.EventTypeQAQuery})
	if err == nil {
		t.Fatal("Expected store error to propagate, got nil")
	}
}

func TestAppendPublishFailureDoesNotFailAppend(t *testing.T) {
	mem := &memoryAuditStore{}
	publisher := &failingPublisher{}
	trail := NewTrail(mem, publisher)

	err := trail.Append(context.Background(), &models.AuditEntry{EventType: models.EventTypeQAQuery})
	if err != nil {
		t.Fatalf("Expected append to succeed despite publish failure, got %v", err)
	}
	if publisher.attempts != 1 {
		t.Errorf("Expected 1 publish attempt, got %d", publisher.attempts)
	}
	if len(mem.entries) != 1 {
		t.Errorf("Expected entry stored despite publish failure, got %d entries", len(mem.entries))
	}
}

func TestQueryHistoryFiltersByUserAndType(t *testing.T) {
	mem := &memoryAuditStore{}
	trail := NewTrail(mem, nil)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed := []models.AuditEntry{
		{ID: "1", EventType: models.EventTypeQAQuery, UserID: "alice", Timestamp: base.Add(1 * time.Hour), Query: "q1", Answer: "a1"},
		{ID: "2", EventType: models.EventTypeQAQuery, UserID: "bob", Timestamp: base.Add(2 * time.Hour), Query: "q2", Answer: "a2"},
		{ID: "3", EventType: models.EventTypeDocumentIngestion, UserID: "alice", Timestamp: base.Add(3 * time.Hour)},
		{ID: "4", EventType: models.EventTypeQAQuery, UserID: "alice", Timestamp: base.Add(4 * time.Hour), Query: "q4", Answer: "a4"},
	}
	for i := range seed {
		if err := trail.Append(context.Background(), &seed[i]); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history, err := trail.QueryHistory(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("QueryHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries for alice, got %d", len(history))
	}
	if history[0].ID != "4" || history[1].ID != "1" {
		t.Errorf("Expected most-recent-first order [4 1], got [%s %s]", history[0].ID, history[1].ID)
	}
}

func TestQueryHistoryRespectsLimit(t *testing.T) {
	mem := &memoryAuditStore{}
	trail := NewTrail(mem, nil)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := models.AuditEntry{
			ID:        fmt.Sprintf("e%d", i),
			EventType: models.EventTypeQAQuery,
			UserID:    "alice",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := trail.Append(context.Background(), &entry); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history, err := trail.QueryHistory(context.Background(), "alice", 3)
	if err != nil {
		t.Fatalf("QueryHistory failed: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("Expected 3 entries with limit 3, got %d", len(history))
	}
}

func TestExtractTrainingPairs(t *testing.T) {
	mem := &memoryAuditStore{}
	trail := NewTrail(mem, nil)

	seed := []models.AuditEntry{
		{ID: "1", EventType: models.EventTypeQAQuery, Query: "q1", Answer: "a1", Confidence: 0.95},
		{ID: "2", EventType: models.EventTypeQAQuery, Query: "q2", Answer: "a2", Confidence: 0.5},
		{ID: "3", EventType: models.EventTypeQAQuery, Query: "q3", Answer: "a3", Confidence: 0.75},
		{ID: "4", EventType: models.EventTypeQAQuery, Query: "", Answer: "orphan", Confidence: 0.99},
		{ID: "5", EventType: models.EventTypeDocumentIngestion, Confidence: 1.0},
	}
	for i := range seed {
		if err := trail.Append(context.Background(), &seed[i]); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	pairs, err := trail.ExtractTrainingPairs(context.Background(), 0.7)
	if err != nil {
		t.Fatalf("ExtractTrainingPairs failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs at min confidence 0.7, got %d", len(pairs))
	}
	for _, p := range pairs {
		if p.Query == "" || p.Answer == "" {
			t.Errorf("Expected complete pair, got %+v", p)
		}
	}
}
