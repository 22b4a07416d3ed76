// Package store holds the MongoDB persistence layer: documents, audit
// entries, the model registry and fine-tune jobs, one collection each.
package store

import "errors"

// Collection names in the application database.
const (
	DocumentCollection    = "documents"
	AuditLogCollection    = "audit_logs"
	ModelRegistryCol      = "model_registry"
	FineTuneJobCollection = "fine_tune_jobs"
)

// ErrNotFound is returned when a requested record does not exist. Handlers
// map it to a 404.
var ErrNotFound = errors.New("record not found")
