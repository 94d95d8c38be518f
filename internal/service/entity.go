package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/repository"
)

const MaxEntityNameLength = 120

// EntityService handles the referenced Skill/Project/Event records.
type EntityService struct {
	entities repository.EntityRepository
	logger   *slog.Logger
}

// NewEntityService creates an EntityService.
func NewEntityService(entities repository.EntityRepository, logger *slog.Logger) *EntityService {
	return &EntityService{entities: entities, logger: logger}
}

// Create validates and saves a new entity of the given kind.
func (s *EntityService) Create(ctx context.Context, kind model.RefKind, name string) (*model.Entity, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown entity kind %q", kind))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxEntityNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxEntityNameLength))
	}

	entity := &model.Entity{Kind: kind, Name: name}
	if err := s.entities.CreateEntity(ctx, entity); err != nil {
		return nil, err
	}

	s.logger.Info("entity created",
		slog.String("id", entity.ID),
		slog.String("kind", string(kind)),
		slog.String("name", name),
	)
	return entity, nil
}

// GetByID retrieves an entity by kind and id.
func (s *EntityService) GetByID(ctx context.Context, kind model.RefKind, id string) (*model.Entity, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown entity kind %q", kind))
	}
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "entity ID is required")
	}
	return s.entities.GetEntity(ctx, kind, id)
}

// List retrieves entities of one kind.
func (s *EntityService) List(ctx context.Context, kind model.RefKind, limit, offset int) ([]model.Entity, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown entity kind %q", kind))
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.entities.ListEntities(ctx, kind, repository.ListOptions{Limit: limit, Offset: offset})
}

// Delete removes an entity. The store refuses while users still reference
// it, so no stored id is ever left dangling.
func (s *EntityService) Delete(ctx context.Context, kind model.RefKind, id string) error {
	if !kind.Valid() {
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown entity kind %q", kind))
	}
	if err := s.entities.DeleteEntity(ctx, kind, id); err != nil {
		return err
	}
	s.logger.Info("entity deleted", slog.String("kind", string(kind)), slog.String("id", id))
	return nil
}
