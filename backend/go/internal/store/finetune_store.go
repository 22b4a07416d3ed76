package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"accord/backend/go/internal/models"
)

// FineTuneStore persists fine-tune job records.
type FineTuneStore interface {
	Insert(ctx context.Context, job *models.FineTuneJob) error
	GetByID(ctx context.Context, id string) (*models.FineTuneJob, error)
	List(ctx context.Context, limit int64) ([]models.FineTuneJob, error)
	UpdateStatus(ctx context.Context, id string, status models.FineTuneJobStatus, fields bson.M) error
}

// MongoFineTuneStore implements FineTuneStore on a MongoDB collection.
type MongoFineTuneStore struct {
	collection *mongo.Collection
}

var _ FineTuneStore = (*MongoFineTuneStore)(nil)

// NewMongoFineTuneStore creates a fine-tune job store over the given
// database.
func NewMongoFineTuneStore(db *mongo.Database) *MongoFineTuneStore {
	return &MongoFineTuneStore{
		collection: db.Collection(FineTuneJobCollection),
	}
}

// Insert stores a new job record.
func (s *MongoFineTuneStore) Insert(ctx context.Context, job *models.FineTuneJob) error {
	_, err := s.collection.InsertOne(ctx, job)
	return err
}

// GetByID retrieves a job by its ID.
func (s *MongoFineTuneStore) GetByID(ctx context.Context, id string) (*models.FineTuneJob, error) {
	var job models.FineTuneJob
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("fine-tune job %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &job, nil
}

// List returns jobs, newest first, capped at limit when positive.
func (s *MongoFineTuneStore) List(ctx context.Context, limit int64) ([]models.FineTuneJob, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []models.FineTuneJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateStatus moves a job to the given status and applies any extra field
// updates in the same write. updated_at is always refreshed.
func (s *MongoFineTuneStore) UpdateStatus(ctx context.Context, id string, status models.FineTuneJobStatus, fields bson.M) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		set[k] = v
	}

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("fine-tune job %s: %w", id, ErrNotFound)
	}
	return nil
}
