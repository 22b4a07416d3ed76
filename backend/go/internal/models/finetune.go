package models

import "time"

// FineTuneJobStatus is the lifecycle state of a fine-tuning dataset handoff.
type FineTuneJobStatus string

// Job states. The pipeline here ends at ReadyForTraining: the external
// training platform owns everything past the dataset handoff.
const (
	JobStatusPending          FineTuneJobStatus = "pending"
	JobStatusPreparingData    FineTuneJobStatus = "preparing_data"
	JobStatusUploadingDataset FineTuneJobStatus = "uploading_dataset"
	JobStatusReadyForTraining FineTuneJobStatus = "ready_for_training"
	JobStatusFailed           FineTuneJobStatus = "failed"
	JobStatusCancelled        FineTuneJobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s FineTuneJobStatus) Terminal() bool {
	switch s {
	case JobStatusReadyForTraining, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// FineTuneJob tracks one fine-tuning dataset build from creation through the
// handoff to the external training platform.
type FineTuneJob struct {
	ID            string            `bson:"_id" json:"id"`
	JobName       string            `bson:"job_name" json:"job_name"`
	BaseModel     string            `bson:"base_model" json:"base_model"`
	Status        FineTuneJobStatus `bson:"status" json:"status"`
	MinConfidence float64           `bson:"min_confidence" json:"min_confidence"`
	MinSamples    int               `bson:"min_samples" json:"min_samples"`
	PairCount     int               `bson:"pair_count" json:"pair_count"`
	DatasetObject string            `bson:"dataset_object,omitempty" json:"dataset_object,omitempty"`
	Error         string            `bson:"error,omitempty" json:"error,omitempty"`
	CreatedBy     string            `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt     time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at" json:"updated_at"`
}
