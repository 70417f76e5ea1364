// Package mappings provides HTTP handlers and business logic for sender
// triage mappings, including the transactional side effects every mutation
// carries: an audit history row, a mapping-change re-triage enqueue, and a
// worker reload signal.
package mappings

import (
	"context"

	"github.com/devonjones/cortex-gateway/internal/domain"
)

// ListFilter narrows mapping listings.
type ListFilter struct {
	MappingType    string
	EmailAddress   string
	IncludeDeleted bool
}

// Repository defines the data access contract for email mappings. Mutations
// are transactional: the live-row change, its history entry, the re-triage
// enqueue, and the worker signal all commit or roll back together.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]domain.EmailMapping, error)
	GetByID(ctx context.Context, id int64) (*domain.EmailMapping, error)
	Create(ctx context.Context, mapping *domain.EmailMapping) error
	Update(ctx context.Context, mapping *domain.EmailMapping) error
	Delete(ctx context.Context, id int64, deletedBy string) (*domain.EmailMapping, error)
	History(ctx context.Context, emailAddress string, limit int) ([]domain.MappingHistoryEntry, error)
}
