package models

import "time"

// Audit event types written by the backend.
const (
	EventTypeQAQuery           = "qa_query"
	EventTypeDocumentIngestion = "document_ingestion"
	EventTypeDocumentDeletion  = "document_deletion"
)

// AuditEntry is an append-only record of one completed interaction. Entries
// are never updated or deleted by the query path.
type AuditEntry struct {
	ID           string                 `bson:"_id" json:"id"`
	EventType    string                 `bson:"event_type" json:"event_type"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	UserID       string                 `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Query        string                 `bson:"query,omitempty" json:"query,omitempty"`
	Answer       string                 `bson:"answer,omitempty" json:"answer,omitempty"`
	Confidence   float64                `bson:"confidence" json:"confidence"`
	NumCitations int                    `bson:"num_citations" json:"num_citations"`
	Details      map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
}

// AuditFilter narrows an audit trail read. Results are always returned
// most-recent-first.
type AuditFilter struct {
	UserID    string
	EventType string
	// MinConfidence keeps only entries at or above this confidence when set.
	MinConfidence *float64
	// Limit caps the number of entries returned. 0 means no cap.
	Limit int64
}

// TrainingPair is one query/answer example extracted from the audit trail
// for fine-tuning dataset assembly. Confidence and Timestamp come from the
// audit entry the pair was extracted from.
type TrainingPair struct {
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
