// Package sync manages Gmail-side backfill jobs: requests to pull historical
// mail from the Gmail API into the pipeline. Distinct from /backfill, which
// re-enqueues mail the pipeline already stores. Jobs are written to a table
// the sync worker polls; cancellation is cooperative and takes effect at the
// worker's next page boundary.
package sync

import (
	"context"

	"github.com/devonjones/cortex-gateway/internal/domain"
)

// JobFilter narrows job listings.
type JobFilter struct {
	Status string
	Limit  int
}

// Repository defines data access for backfill jobs.
type Repository interface {
	Create(ctx context.Context, job *domain.BackfillJob) error
	List(ctx context.Context, filter JobFilter) ([]domain.BackfillJob, error)
	GetByID(ctx context.Context, id string) (*domain.BackfillJob, error)
	// Cancel transitions a pending or running job to cancelled; the bool
	// reports whether the guarded update matched.
	Cancel(ctx context.Context, id string) (bool, error)
}
