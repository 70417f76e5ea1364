package mappings

import (
	"context"
	"fmt"
	"strings"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
)

// Service implements business logic for email mappings.
type Service struct {
	repo Repository
}

// NewService creates a new mappings service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns mappings matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.EmailMapping, error) {
	if filter.MappingType != "" && !domain.MappingType(filter.MappingType).IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMappingType, filter.MappingType)
	}
	filter.EmailAddress = strings.ToLower(filter.EmailAddress)
	return s.repo.List(ctx, filter)
}

// GetByID returns one mapping.
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.EmailMapping, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new mapping. The address is normalized to lowercase before
// the uniqueness check so case variants collide.
func (s *Service) Create(ctx context.Context, mapping *domain.EmailMapping) (*domain.EmailMapping, error) {
	if !mapping.MappingType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMappingType, mapping.MappingType)
	}
	if mapping.CreatedBy == "" {
		return nil, ErrActorRequired
	}
	mapping.EmailAddress = strings.ToLower(strings.TrimSpace(mapping.EmailAddress))

	if err := s.repo.Create(ctx, mapping); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("created mapping",
		"mapping_id", mapping.ID,
		"type", mapping.MappingType,
		"email", mapping.EmailAddress,
		"label", mapping.Label,
		"created_by", mapping.CreatedBy,
	)
	return mapping, nil
}

// Update modifies an existing mapping in place.
func (s *Service) Update(ctx context.Context, id int64, update func(*domain.EmailMapping) error) (*domain.EmailMapping, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := update(existing); err != nil {
		return nil, err
	}
	if existing.UpdatedBy == nil || *existing.UpdatedBy == "" {
		return nil, ErrActorRequired
	}
	existing.EmailAddress = strings.ToLower(strings.TrimSpace(existing.EmailAddress))

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("updated mapping",
		"mapping_id", existing.ID,
		"email", existing.EmailAddress,
		"label", existing.Label,
		"updated_by", *existing.UpdatedBy,
	)
	return existing, nil
}

// Delete soft-deletes a mapping.
func (s *Service) Delete(ctx context.Context, id int64, deletedBy string) error {
	if deletedBy == "" {
		return ErrActorRequired
	}

	mapping, err := s.repo.Delete(ctx, id, deletedBy)
	if err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("deleted mapping",
		"mapping_id", mapping.ID,
		"email", mapping.EmailAddress,
		"deleted_by", deletedBy,
	)
	return nil
}

// History returns the audit trail for an address, newest first.
func (s *Service) History(ctx context.Context, emailAddress string, limit int) ([]domain.MappingHistoryEntry, error) {
	return s.repo.History(ctx, strings.ToLower(emailAddress), limit)
}
