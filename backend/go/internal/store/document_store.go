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

// DocumentStore defines document persistence. The search path only reads;
// writes happen during ingestion and deletion.
type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Find(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	List(ctx context.Context, page, limit int) ([]models.Document, int64, error)
	Delete(ctx context.Context, id string) error
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
	ContentHashes(ctx context.Context) ([]string, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// MongoDocumentStore implements DocumentStore on a MongoDB collection.
type MongoDocumentStore struct {
	collection *mongo.Collection
}

var _ DocumentStore = (*MongoDocumentStore)(nil)

// NewMongoDocumentStore creates a document store over the given database.
func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{
		collection: db.Collection(DocumentCollection),
	}
}

// Insert stores a new document.
func (s *MongoDocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	_, err := s.collection.InsertOne(ctx, doc)
	return err
}

// GetByID retrieves a document by its ID.
func (s *MongoDocumentStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &doc, nil
}

// Find returns documents matching filter in insertion order, which gives
// the search engine a fixed scan order for deterministic ranking.
func (s *MongoDocumentStore) Find(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	query := bson.M{}
	if filter.RequireEmbedding {
		query["embedding"] = bson.M{"$exists": true, "$ne": nil}
	}
	if len(filter.IDs) > 0 {
		query["_id"] = bson.M{"$in": filter.IDs}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// List returns one page of documents, newest first, along with the total
// document count.
func (s *MongoDocumentStore) List(ctx context.Context, page, limit int) ([]models.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"embedding": 0, "text_content": 0})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Delete removes a document by ID.
func (s *MongoDocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExistsByHash reports whether a document with the given content hash is
// already stored. The ingestion path uses it to confirm bloom filter hits.
func (s *MongoDocumentStore) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"content_hash": contentHash}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ContentHashes returns the content hashes of all stored documents. The
// ingestion path loads them into its duplicate filter at startup.
func (s *MongoDocumentStore) ContentHashes(ctx context.Context) ([]string, error) {
	query := bson.M{"content_hash": bson.M{"$exists": true, "$ne": ""}}
	opts := options.Find().SetProjection(bson.M{"content_hash": 1})

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ContentHash string `bson:"content_hash"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(rows))
	for _, row := range rows {
		hashes = append(hashes, row.ContentHash)
	}
	return hashes, nil
}

// UpdateEmbedding replaces the stored embedding of a document, making it
// visible to similarity search again.
func (s *MongoDocumentStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	update := bson.M{"$set": bson.M{
		"embedding":  embedding,
		"updated_at": time.Now().UTC(),
	}}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}
