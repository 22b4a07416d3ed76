package models

import "time"

// ModelRecord is one entry in the model registry: a generative model known to
// the system, either a stock provider model or a fine-tuned artifact. At most
// one record per provider is active at a time.
type ModelRecord struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Provider    string    `bson:"provider" json:"provider"`
	ModelID     string    `bson:"model_id" json:"model_id"`
	Active      bool      `bson:"active" json:"active"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
