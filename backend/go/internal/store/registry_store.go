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

// RegistryStore persists the model registry.
type RegistryStore interface {
	Upsert(ctx context.Context, record *models.ModelRecord) error
	GetByID(ctx context.Context, id string) (*models.ModelRecord, error)
	List(ctx context.Context) ([]models.ModelRecord, error)
	SetActive(ctx context.Context, id string) error
	GetActive(ctx context.Context, provider string) (*models.ModelRecord, error)
}

// MongoRegistryStore implements RegistryStore on a MongoDB collection.
type MongoRegistryStore struct {
	collection *mongo.Collection
}

var _ RegistryStore = (*MongoRegistryStore)(nil)

// NewMongoRegistryStore creates a registry store over the given database.
func NewMongoRegistryStore(db *mongo.Database) *MongoRegistryStore {
	return &MongoRegistryStore{
		collection: db.Collection(ModelRegistryCol),
	}
}

// Upsert inserts or replaces a model record keyed by its ID.
func (s *MongoRegistryStore) Upsert(ctx context.Context, record *models.ModelRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": record.ID}, record, opts)
	return err
}

// GetByID retrieves a model record by its ID.
func (s *MongoRegistryStore) GetByID(ctx context.Context, id string) (*models.ModelRecord, error) {
	var record models.ModelRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("model %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}

// List returns all registered models, newest first.
func (s *MongoRegistryStore) List(ctx context.Context) ([]models.ModelRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.ModelRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SetActive marks the record active and deactivates every other record of
// the same provider. The two updates are not transactional; a crash in
// between leaves the provider with no active model, which activation of any
// model repairs.
func (s *MongoRegistryStore) SetActive(ctx context.Context, id string) error {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.collection.UpdateMany(ctx,
		bson.M{"provider": record.Provider, "active": true},
		bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return err
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"active": true}})
	return err
}

// GetActive returns the active model for a provider.
func (s *MongoRegistryStore) GetActive(ctx context.Context, provider string) (*models.ModelRecord, error) {
	var record models.ModelRecord
	err := s.collection.FindOne(ctx, bson.M{"provider": provider, "active": true}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("no active model for provider %s: %w", provider, ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}
