package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// Listing constants.
const (
	DefaultJobLimit = 20
	MaxJobLimit     = 100
)

// Service implements business logic for Gmail backfill jobs.
type Service struct {
	repo Repository
}

// NewService creates a new sync service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateRequest asks for a historical sync window. Days and After are
// mutually exclusive; exactly one must be set.
type CreateRequest struct {
	Days  *int
	After string // YYYY-MM-DD
}

// Create validates the window, derives the Gmail search query, and stores a
// pending job for the sync worker.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.BackfillJob, error) {
	if req.Days != nil && req.After != "" {
		return nil, ErrConflictingWindows
	}
	if req.Days == nil && req.After == "" {
		return nil, ErrWindowRequired
	}

	var afterDate time.Time
	if req.Days != nil {
		if *req.Days < 1 {
			return nil, ErrInvalidDays
		}
		afterDate = time.Now().UTC().AddDate(0, 0, -*req.Days)
	} else {
		parsed, err := time.Parse("2006-01-02", req.After)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAfterDate, req.After)
		}
		afterDate = parsed
	}

	job := &domain.BackfillJob{
		ID:        uuid.NewString(),
		Status:    domain.BackfillStatusPending,
		Query:     "after:" + afterDate.Format("2006/01/02"),
		Days:      req.Days,
		AfterDate: &afterDate,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("created backfill job",
		"job_id", job.ID,
		"query", job.Query,
	)
	return job, nil
}

// List returns recent jobs, newest first.
func (s *Service) List(ctx context.Context, filter JobFilter) ([]domain.BackfillJob, error) {
	if filter.Status != "" && !domain.BackfillStatus(filter.Status).IsValid() {
		return nil, fmt.Errorf("unknown job status %q", filter.Status)
	}
	if filter.Limit < 1 || filter.Limit > MaxJobLimit {
		filter.Limit = DefaultJobLimit
	}
	return s.repo.List(ctx, filter)
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id string) (*domain.BackfillJob, error) {
	return s.repo.GetByID(ctx, id)
}

// Cancel requests cancellation of a pending or running job. The guarded
// update decides the race with the worker; a terminal job is reported as not
// cancellable with its current status attached.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.BackfillJob, error) {
	matched, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !matched {
		return job, fmt.Errorf("%w: status %q", ErrJobNotCancellable, job.Status)
	}

	ctxlog.FromContext(ctx).Info("cancelled backfill job", "job_id", id)
	return job, nil
}
