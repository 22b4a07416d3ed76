package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"accord/backend/go/internal/models"
)

// AuditStore persists audit entries. Entries are append-only; there is no
// update or delete.
type AuditStore interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	Find(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

// MongoAuditStore implements AuditStore on a MongoDB collection.
type MongoAuditStore struct {
	collection *mongo.Collection
}

var _ AuditStore = (*MongoAuditStore)(nil)

// NewMongoAuditStore creates an audit store over the given database.
func NewMongoAuditStore(db *mongo.Database) *MongoAuditStore {
	return &MongoAuditStore{
		collection: db.Collection(AuditLogCollection),
	}
}

// Insert appends one audit entry.
func (s *MongoAuditStore) Insert(ctx context.Context, entry *models.AuditEntry) error {
	_, err := s.collection.InsertOne(ctx, entry)
	return err
}

// Find returns entries matching filter, most recent first.
func (s *MongoAuditStore) Find(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.MinConfidence != nil {
		query["confidence"] = bson.M{"$gte": *filter.MinConfidence}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
