package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"

	"accord/backend/go/internal/audit"
	"accord/backend/go/internal/config"
	"accord/backend/go/internal/embedding"
	"accord/backend/go/internal/models"
	"accord/backend/go/internal/pii"
	"accord/backend/go/internal/store"
	"accord/backend/go/pkg/logger"
	"accord/backend/go/pkg/util"
)

// ObjectStore archives uploaded originals and serves them back.
// *minio.Client satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts miniogo.GetObjectOptions) (*miniogo.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts miniogo.RemoveObjectOptions) error
}

var _ ObjectStore = (*miniogo.Client)(nil)

// Recorder appends entries to the audit trail.
type Recorder interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}

var _ Recorder = (*audit.Trail)(nil)

// UploadInput describes one file handed to Ingest.
type UploadInput struct {
	Filename   string
	Data       []byte
	UploadedBy string
	Metadata   map[string]interface{}
}

// Result reports what ingestion did with one file. Duplicate is set when the
// content hash matched an already stored document, in which case Document is
// nil and nothing was written.
type Result struct {
	Document  *models.Document
	Duplicate bool
}

// Service runs the document ingestion pipeline: extract text, detect PII,
// archive the original, embed the text and persist the document.
type Service struct {
	docs     store.DocumentStore
	embedder embedding.Provider
	objects  ObjectStore
	trail    Recorder
	redactor *pii.Redactor
	seen     *util.ScalableBloomFilter
	cfg      config.IngestConfig
	bucket   string
	log      *logger.Logger
}

// NewService creates the ingestion service. objects may be nil to disable
// archival of originals, and trail may be nil to disable audit entries.
func NewService(docs store.DocumentStore, embedder embedding.Provider, objects ObjectStore, trail Recorder, redactor *pii.Redactor, cfg config.IngestConfig, bucket string) (*Service, error) {
	seen, err := util.NewScalableBloomFilter(util.SBFConfig{
		InitialCapacity:      cfg.Bloom.ExpectedItems,
		ErrorRate:            cfg.Bloom.FalsePositiveRate,
		GrowthFactor:         2,
		ErrorTighteningRatio: 0.5,
	})
	if err != nil {
		return nil, fmt.Errorf("create duplicate filter: %w", err)
	}

	return &Service{
		docs:     docs,
		embedder: embedder,
		objects:  objects,
		trail:    trail,
		redactor: redactor,
		seen:     seen,
		cfg:      cfg,
		bucket:   bucket,
		log:      logger.New("ingest-service", "", ""),
	}, nil
}

// WarmDedupe loads the content hashes of all stored documents into the
// duplicate filter. Until it is called, duplicates of documents ingested by
// earlier runs can slip past the filter.
func (s *Service) WarmDedupe(ctx context.Context) error {
	hashes, err := s.docs.ContentHashes(ctx)
	if err != nil {
		return fmt.Errorf("load content hashes: %w", err)
	}
	for _, h := range hashes {
		s.seen.Add([]byte(h))
	}
	s.log.WithField("count", len(hashes)).Info("Duplicate filter warmed")
	return nil
}

// Rejection reasons the HTTP layer maps to client-error status codes.
var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file exceeds the size limit")
)

// Ingest runs the pipeline for one uploaded file. Duplicates are reported,
// not re-stored. An embedding failure does not fail ingestion: the document
// is stored without an embedding and stays invisible to similarity search
// until it is re-embedded.
func (s *Service) Ingest(ctx context.Context, in UploadInput) (*Result, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("file %q: %w", in.Filename, ErrEmptyFile)
	}
	if maxBytes := int64(s.cfg.MaxFileSizeMB) << 20; int64(len(in.Data)) > maxBytes {
		return nil, fmt.Errorf("file %q is over %d MB: %w", in.Filename, s.cfg.MaxFileSizeMB, ErrFileTooLarge)
	}

	sum := sha256.Sum256(in.Data)
	contentHash := hex.EncodeToString(sum[:])

	// The filter answers "definitely new" without a store roundtrip; a
	// positive answer still has to be confirmed against the store.
	if s.seen.Test([]byte(contentHash)) {
		exists, err := s.docs.ExistsByHash(ctx, contentHash)
		if err != nil {
			return nil, fmt.Errorf("check duplicate: %w", err)
		}
		if exists {
			s.log.WithField("filename", in.Filename).Info("Skipping duplicate upload")
			return &Result{Duplicate: true}, nil
		}
	}

	text, mimeType, err := ExtractText(in.Data)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", in.Filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("file %q contains no extractable text", in.Filename)
	}

	// Detection always runs so the sensitive flag is recorded even when
	// redaction of the stored text is turned off.
	sensitive := false
	if s.redactor != nil {
		var found []string
		sensitive, found = s.redactor.Scan(text)
		if sensitive && s.cfg.RedactPII {
			text = s.redactor.Redact(text)
			s.log.WithField("patterns", found).WithField("filename", in.Filename).Info("Redacted PII from document text")
		}
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:          uuid.NewString(),
		Filename:    in.Filename,
		MimeType:    mimeType,
		TextContent: text,
		Metadata:    in.Metadata,
		ContentHash: contentHash,
		Sensitive:   sensitive,
		UploadedBy:  in.UploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var embedErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.objects == nil {
			return nil
		}
		objectName := doc.ID + "/" + in.Filename
		_, err := s.objects.PutObject(gctx, s.bucket, objectName, bytes.NewReader(in.Data), int64(len(in.Data)), miniogo.PutObjectOptions{
			ContentType: mimeType,
		})
		if err != nil {
			return fmt.Errorf("archive original: %w", err)
		}
		doc.StoragePath = s.bucket + "/" + objectName
		return nil
	})
	g.Go(func() error {
		vec, err := s.embedder.Embed(gctx, text)
		if err != nil {
			embedErr = err
			return nil
		}
		doc.Embedding = vec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if embedErr != nil {
		s.log.WithError(embedErr).WithField("filename", in.Filename).Warn("Embedding failed, storing document without one")
	}

	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	s.seen.Add([]byte(contentHash))

	s.record(ctx, &models.AuditEntry{
		EventType: models.EventTypeDocumentIngestion,
		UserID:    in.UploadedBy,
		Details: map[string]interface{}{
			"document_id": doc.ID,
			"filename":    in.Filename,
			"mime_type":   mimeType,
			"size_bytes":  len(in.Data),
			"sensitive":   sensitive,
			"embedded":    doc.HasEmbedding(0),
		},
	})

	s.log.WithField("document_id", doc.ID).WithField("filename", in.Filename).Info("Document ingested")
	return &Result{Document: doc}, nil
}

// ReEmbed regenerates and stores the embedding of an already ingested
// document, bringing documents stored without one (or with one of a stale
// dimension) back into similarity search.
func (s *Service) ReEmbed(ctx context.Context, docID string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.TextContent) == "" {
		return nil, fmt.Errorf("document %s has no text to embed", docID)
	}

	vec, err := s.embedder.Embed(ctx, doc.TextContent)
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	if err := s.docs.UpdateEmbedding(ctx, docID, vec); err != nil {
		return nil, err
	}

	doc.Embedding = vec
	return doc, nil
}

// Get returns one ingested document by ID.
func (s *Service) Get(ctx context.Context, docID string) (*models.Document, error) {
	return s.docs.GetByID(ctx, docID)
}

// List returns one page of ingested documents, newest first, with the total
// count. Listed documents omit their text and embedding.
func (s *Service) List(ctx context.Context, page, limit int) ([]models.Document, int64, error) {
	return s.docs.List(ctx, page, limit)
}

// Delete removes a document and, best effort, its archived original. A
// failure to remove the original is logged but does not undo the deletion.
func (s *Service) Delete(ctx context.Context, docID, deletedBy string) error {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		return err
	}

	if s.objects != nil && doc.StoragePath != "" {
		objectName := strings.TrimPrefix(doc.StoragePath, s.bucket+"/")
		if err := s.objects.RemoveObject(ctx, s.bucket, objectName, miniogo.RemoveObjectOptions{}); err != nil {
			s.log.WithError(err).WithField("document_id", docID).Warn("Failed to remove archived original")
		}
	}

	s.record(ctx, &models.AuditEntry{
		EventType: models.EventTypeDocumentDeletion,
		UserID:    deletedBy,
		Details: map[string]interface{}{
			"document_id": docID,
			"filename":    doc.Filename,
		},
	})

	s.log.WithField("document_id", docID).Info("Document deleted")
	return nil
}

// Download streams the archived original of a document. The caller closes
// the returned reader.
func (s *Service) Download(ctx context.Context, docID string) (io.ReadCloser, *models.Document, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if s.objects == nil {
		return nil, nil, fmt.Errorf("document archival is disabled")
	}
	if doc.StoragePath == "" {
		return nil, nil, fmt.Errorf("document %s has no archived original", docID)
	}

	objectName := strings.TrimPrefix(doc.StoragePath, s.bucket+"/")
	obj, err := s.objects.GetObject(ctx, s.bucket, objectName, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch archived original: %w", err)
	}
	return obj, doc, nil
}

// record appends an audit entry, logging instead of failing when the trail
// write does not go through.
func (s *Service) record(ctx context.Context, entry *models.AuditEntry) {
	if s.trail == nil {
		return
	}
	if err := s.trail.Append(ctx, entry); err != nil {
		s.log.WithError(err).Error("Failed to record ingestion in the audit trail")
	}
}
