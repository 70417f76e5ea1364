package queue

import (
	"context"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
	"github.com/devonjones/cortex-gateway/internal/pkg/metrics"
)

// Service wraps the enqueue engine and dead-letter recovery.
type Service struct {
	repo Repository
}

// NewService creates a queue service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enqueue validates and executes one trigger intent, returning the number of
// rows actually inserted (matched targets already in flight are skipped).
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	count, err := s.repo.Enqueue(ctx, req)
	if err != nil {
		return 0, err
	}

	metrics.EnqueuedTotal.WithLabelValues(req.Trigger.String()).Add(float64(count))
	ctxlog.FromContext(ctx).Info("enqueued queue items",
		"queue", req.Queue,
		"trigger", req.Trigger.String(),
		"priority", req.EffectivePriority(),
		"force", req.Force,
		"count", count,
	)
	return count, nil
}

// Stats returns per-queue, per-status item counts and refreshes the queue
// depth gauges.
func (s *Service) Stats(ctx context.Context) (domain.QueueStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	for queueName, byStatus := range stats {
		for status, count := range byStatus {
			metrics.QueueDepth.WithLabelValues(string(queueName), string(status)).Set(float64(count))
		}
	}
	return stats, nil
}

// BackfillStats returns counts over backfill items only.
func (s *Service) BackfillStats(ctx context.Context) (domain.QueueStats, error) {
	return s.repo.BackfillStats(ctx)
}

// CancelBackfill cancels pending backfill items for a queue.
func (s *Service) CancelBackfill(ctx context.Context, queueName domain.QueueName) (int64, error) {
	if !queueName.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQueue, queueName)
	}

	count, err := s.repo.CancelBackfill(ctx, queueName)
	if err != nil {
		return 0, err
	}

	ctxlog.FromContext(ctx).Info("cancelled backfill items", "queue", queueName, "count", count)
	return count, nil
}

// ListFailed returns failed items, newest first.
func (s *Service) ListFailed(ctx context.Context, queueName string, limit, offset int) ([]domain.QueueItem, error) {
	return s.repo.ListFailed(ctx, queueName, limit, offset)
}

// Retry unblocks one failed item: failed -> pending with error cleared and
// attempts reset. Recovery never re-enqueues or signals; the row already
// exists.
func (s *Service) Retry(ctx context.Context, id int64) (*domain.QueueItem, error) {
	item, err := s.repo.Retry(ctx, id)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("retried failed job", "job_id", id, "queue", item.QueueName)
	return item, nil
}

// RetryAll retries every failed item in a queue. Idempotent: a second call
// affects zero rows.
func (s *Service) RetryAll(ctx context.Context, queueName domain.QueueName) (int64, error) {
	if !queueName.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQueue, queueName)
	}

	count, err := s.repo.RetryAll(ctx, queueName)
	if err != nil {
		return 0, err
	}

	ctxlog.FromContext(ctx).Info("retried failed jobs", "queue", queueName, "count", count)
	return count, nil
}

// Delete permanently removes one failed item.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("deleted failed job", "job_id", id)
	return nil
}
