// Package registry tracks the generative models known to the system, stock
// provider models and fine-tuned artifacts alike, with at most one active
// model per provider.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"accord/backend/go/internal/models"
	"accord/backend/go/internal/store"
	"accord/backend/go/pkg/logger"
)

// Service manages model registry records.
type Service struct {
	store store.RegistryStore
	log   *logger.Logger
}

// NewService creates the registry service.
func NewService(s store.RegistryStore) *Service {
	return &Service{
		store: s,
		log:   logger.New("registry-service", "", ""),
	}
}

// RegisterRequest carries the fields of a new model record.
type RegisterRequest struct {
	Name        string
	Provider    string
	ModelID     string
	Description string
	Activate    bool
}

// Register records a model. With Activate set it also becomes the active
// model of its provider, deactivating the previous one.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.ModelRecord, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if strings.TrimSpace(req.Provider) == "" {
		return nil, fmt.Errorf("model provider is required")
	}
	if strings.TrimSpace(req.ModelID) == "" {
		return nil, fmt.Errorf("model id is required")
	}

	record := &models.ModelRecord{
		ID:          "model-" + uuid.NewString(),
		Name:        req.Name,
		Provider:    req.Provider,
		ModelID:     req.ModelID,
		Description: req.Description,
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("store model record: %w", err)
	}

	if req.Activate {
		if err := s.store.SetActive(ctx, record.ID); err != nil {
			return nil, fmt.Errorf("activate model: %w", err)
		}
		record.Active = true
	}

	s.log.WithField("model_id", record.ID).WithField("provider", record.Provider).Info("Model registered")
	return record, nil
}

// EnsureDefault registers and activates the configured serving model when its
// provider has no active record yet. Safe to call on every startup.
func (s *Service) EnsureDefault(ctx context.Context, provider, modelID string) error {
	_, err := s.store.GetActive(ctx, provider)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check active model: %w", err)
	}

	_, err = s.Register(ctx, RegisterRequest{
		Name:     fmt.Sprintf("%s (configured)", modelID),
		Provider: provider,
		ModelID:  modelID,
		Activate: true,
	})
	return err
}

// Activate makes the record the active model of its provider.
func (s *Service) Activate(ctx context.Context, id string) (*models.ModelRecord, error) {
	if err := s.store.SetActive(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, id)
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id string) (*models.ModelRecord, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all registered models, newest first.
func (s *Service) List(ctx context.Context) ([]models.ModelRecord, error) {
	return s.store.List(ctx)
}

// ActiveModel returns the active model of a provider.
func (s *Service) ActiveModel(ctx context.Context, provider string) (*models.ModelRecord, error) {
	return s.store.GetActive(ctx, provider)
}
