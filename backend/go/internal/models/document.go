package models

import "time"

// Document is a persisted unit of ingested compliance content. It is created
// at ingestion and read-only on the query path.
type Document struct {
	ID          string                 `bson:"_id" json:"id"`
	Filename    string                 `bson:"filename" json:"filename"`
	MimeType    string                 `bson:"mime_type" json:"mime_type"`
	StoragePath string                 `bson:"storage_path,omitempty" json:"storage_path,omitempty"`
	TextContent string                 `bson:"text_content" json:"text_content,omitempty"`
	Embedding   []float32              `bson:"embedding,omitempty" json:"-"`
	Metadata    map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	ContentHash string                 `bson:"content_hash,omitempty" json:"-"`
	Sensitive   bool                   `bson:"sensitive_flag" json:"sensitive_flag"`
	UploadedBy  string                 `bson:"uploaded_by,omitempty" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at" json:"updated_at"`
}

// HasEmbedding reports whether the document is eligible for similarity
// search, i.e. carries an embedding of the given dimension. A dimension of
// zero accepts any non-empty embedding.
func (d *Document) HasEmbedding(dimension int) bool {
	if len(d.Embedding) == 0 {
		return false
	}
	return dimension <= 0 || len(d.Embedding) == dimension
}

// DocumentFilter narrows a document store read.
type DocumentFilter struct {
	// IDs restricts the result to the given document ids when non-nil.
	IDs []string
	// RequireEmbedding excludes documents without a stored embedding.
	RequireEmbedding bool
}
