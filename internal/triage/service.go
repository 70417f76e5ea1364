package triage

import (
	"context"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/queue"
)

// Pagination constants.
const (
	DefaultClassificationLimit = 50
	MaxClassificationLimit     = 100
)

// Service implements business logic for triage visibility and rerun.
type Service struct {
	repo  Repository
	queue *queue.Service
}

// NewService creates a new triage service.
func NewService(repo Repository, queueService *queue.Service) *Service {
	return &Service{repo: repo, queue: queueService}
}

// Stats returns the classification activity breakdown.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// RerunRequest selects emails for re-triage. Exactly one of GmailIDs,
// Senders, or Label must be provided.
type RerunRequest struct {
	GmailIDs []string
	Senders  []string
	Label    string
	Days     int
	Force    bool
	Priority *int
}

// Rerun enqueues the selected emails on the triage queue and returns the
// number actually inserted.
func (s *Service) Rerun(ctx context.Context, req RerunRequest) (int64, error) {
	enqueue := queue.EnqueueRequest{
		Queue:    domain.QueueTriage,
		GmailIDs: req.GmailIDs,
		Senders:  req.Senders,
		Label:    req.Label,
		Days:     req.Days,
		Force:    req.Force,
		Priority: req.Priority,
	}

	switch {
	case len(req.GmailIDs) > 0:
		enqueue.Trigger = queue.TriggerIDs
	case len(req.Senders) > 0:
		enqueue.Trigger = queue.TriggerSenders
	default:
		enqueue.Trigger = queue.TriggerLabel
	}

	return s.queue.Enqueue(ctx, enqueue)
}

// ListClassifications returns recent classifications, newest first.
func (s *Service) ListClassifications(ctx context.Context, filter ClassificationFilter) ([]domain.Classification, error) {
	if filter.Limit < 1 || filter.Limit > MaxClassificationLimit {
		filter.Limit = DefaultClassificationLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListClassifications(ctx, filter)
}
