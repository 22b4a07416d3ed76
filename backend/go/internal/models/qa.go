package models

// SearchResult is one ranked hit from a similarity search. Derived per query,
// never persisted.
type SearchResult struct {
	DocID           string  `json:"doc_id"`
	Filename        string  `json:"filename"`
	SimilarityScore float64 `json:"similarity_score"`
	Excerpt         string  `json:"excerpt"`
}

// QARequest carries one question into the Q&A orchestrator. TopK and
// SimilarityThreshold fall back to the configured defaults when nil.
type QARequest struct {
	QueryText           string
	TopK                *int
	SimilarityThreshold *float64
	IncludeSources      bool
	UserID              string
}

// QAResponse is the caller-visible outcome of one answered question.
// Citations preserve descending similarity order and are omitted when the
// request asked for no sources.
type QAResponse struct {
	Query            string         `json:"query"`
	Answer           string         `json:"answer"`
	Confidence       float64        `json:"confidence"`
	Citations        []SearchResult `json:"citations,omitempty"`
	ModelUsed        string         `json:"model_used"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
}

// ImagePart is one user-supplied image attached to a multimodal question.
type ImagePart struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// ImageQARequest carries a question about one or more images.
type ImageQARequest struct {
	QueryText string
	Images    []ImagePart
	UserID    string
}

// ModelAnswer is what a generative model adapter reports back for one
// generation: the answer text and a confidence in [0, 1].
type ModelAnswer struct {
	Text       string
	Confidence float64
}
