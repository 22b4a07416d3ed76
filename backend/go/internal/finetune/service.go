// Package finetune builds fine-tuning datasets from high-confidence audit
// trail interactions. The pipeline ends at the dataset handoff: once the
// JSONL file is in object storage, the external training platform owns the
// rest of the model lifecycle.
package finetune

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"go.mongodb.org/mongo-driver/bson"

	"accord/backend/go/internal/audit"
	"accord/backend/go/internal/config"
	"accord/backend/go/internal/models"
	"accord/backend/go/internal/store"
	"accord/backend/go/pkg/logger"
)

// PairSource provides training pairs at or above a confidence floor.
// *audit.Trail satisfies it.
type PairSource interface {
	ExtractTrainingPairs(ctx context.Context, minConfidence float64) ([]models.TrainingPair, error)
}

var _ PairSource = (*audit.Trail)(nil)

// ObjectStore uploads dataset files. *minio.Client satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

var _ ObjectStore = (*miniogo.Client)(nil)

// Service manages fine-tune jobs and runs their dataset builds.
type Service struct {
	jobs    store.FineTuneStore
	pairs   PairSource
	objects ObjectStore
	cfg     config.FineTuneConfig
	log     *logger.Logger
}

// NewService creates the fine-tuning service.
func NewService(jobs store.FineTuneStore, pairs PairSource, objects ObjectStore, cfg config.FineTuneConfig) *Service {
	return &Service{
		jobs:    jobs,
		pairs:   pairs,
		objects: objects,
		cfg:     cfg,
		log:     logger.New("finetune-service", "", ""),
	}
}

// CreateJobRequest carries the parameters of a new dataset build.
type CreateJobRequest struct {
	JobName       string
	BaseModel     string
	MinConfidence *float64
	MinSamples    int
	CreatedBy     string
}

// CreateJob records a new job in the pending state. Run executes it.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*models.FineTuneJob, error) {
	if strings.TrimSpace(req.JobName) == "" {
		return nil, fmt.Errorf("job name is required")
	}

	minConfidence := s.cfg.MinConfidence
	if req.MinConfidence != nil {
		if *req.MinConfidence < 0 || *req.MinConfidence > 1 {
			return nil, fmt.Errorf("min confidence must be between 0.0 and 1.0, got %v", *req.MinConfidence)
		}
		minConfidence = *req.MinConfidence
	}

	minSamples := req.MinSamples
	if minSamples <= 0 {
		minSamples = s.cfg.MinSamples
	}

	baseModel := req.BaseModel
	if baseModel == "" {
		baseModel = s.cfg.BaseModel
	}

	now := time.Now().UTC()
	job := &models.FineTuneJob{
		ID:            uuid.NewString(),
		JobName:       req.JobName,
		BaseModel:     baseModel,
		Status:        models.JobStatusPending,
		MinConfidence: minConfidence,
		MinSamples:    minSamples,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}

	s.log.WithField("job_id", job.ID).WithField("job_name", job.JobName).Info("Fine-tune job created")
	return job, nil
}

// Run executes the dataset build for a pending job: extract pairs, encode
// the JSONL dataset, upload it and mark the job ready for training. Any
// pipeline failure moves the job to the failed state with the cause recorded
// on it.
func (s *Service) Run(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPending {
		return fmt.Errorf("job %s is %s, expected %s", jobID, job.Status, models.JobStatusPending)
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusPreparingData, nil); err != nil {
		return err
	}

	pairs, err := s.pairs.ExtractTrainingPairs(ctx, job.MinConfidence)
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("extract training pairs: %w", err))
	}
	if len(pairs) < job.MinSamples {
		return s.fail(ctx, jobID, fmt.Errorf("insufficient training data: %d pairs, need at least %d", len(pairs), job.MinSamples))
	}

	// Honor a cancellation issued while data was being prepared.
	if current, err := s.jobs.GetByID(ctx, jobID); err == nil && current.Status == models.JobStatusCancelled {
		s.log.WithField("job_id", jobID).Info("Fine-tune job cancelled during data preparation")
		return nil
	}

	dataset, err := BuildDataset(pairs)
	if err != nil {
		return s.fail(ctx, jobID, err)
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusUploadingDataset, bson.M{"pair_count": len(pairs)}); err != nil {
		return err
	}

	objectName := "datasets/" + jobID + ".jsonl"
	_, err = s.objects.PutObject(ctx, s.cfg.DatasetBucket, objectName, bytes.NewReader(dataset), int64(len(dataset)), miniogo.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("upload dataset: %w", err))
	}

	datasetObject := s.cfg.DatasetBucket + "/" + objectName
	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusReadyForTraining, bson.M{"dataset_object": datasetObject}); err != nil {
		return err
	}

	s.log.WithField("job_id", jobID).WithField("pairs", len(pairs)).Info("Fine-tune dataset ready for training")
	return nil
}

// Cancel moves a job that has not finished to the cancelled state.
func (s *Service) Cancel(ctx context.Context, jobID string) (*models.FineTuneJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s is already %s", jobID, job.Status)
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusCancelled, nil); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusCancelled
	return job, nil
}

// GetJob returns one job by id.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.FineTuneJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListJobs returns jobs, newest first, capped at limit when positive.
func (s *Service) ListJobs(ctx context.Context, limit int64) ([]models.FineTuneJob, error) {
	return s.jobs.List(ctx, limit)
}

// fail records the cause on the job and returns it.
func (s *Service) fail(ctx context.Context, jobID string, cause error) error {
	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusFailed, bson.M{"error": cause.Error()}); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("Failed to record job failure")
	}
	return cause
}
