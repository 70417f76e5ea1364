package queue

import (
	"context"

	"github.com/devonjones/cortex-gateway/internal/domain"
)

// Repository defines data access for the work queue.
type Repository interface {
	// Enqueue executes the compiled statement for one trigger intent and
	// returns the number of rows actually inserted.
	Enqueue(ctx context.Context, req EnqueueRequest) (int64, error)

	// Stats returns item counts grouped by queue and status.
	Stats(ctx context.Context) (domain.QueueStats, error)

	// BackfillStats returns counts over backfill items only (priority < 0).
	BackfillStats(ctx context.Context) (domain.QueueStats, error)

	// CancelBackfill marks pending backfill items cancelled for a queue and
	// returns the number of rows affected.
	CancelBackfill(ctx context.Context, queueName domain.QueueName) (int64, error)

	// ListFailed returns failed items, newest first, optionally filtered by
	// queue name.
	ListFailed(ctx context.Context, queueName string, limit, offset int) ([]domain.QueueItem, error)

	// Retry transitions one failed item back to pending, clearing its error
	// and attempt counter. Returns ErrJobNotFound or ErrJobNotFailed when the
	// guard fails.
	Retry(ctx context.Context, id int64) (*domain.QueueItem, error)

	// RetryAll retries every failed item in a queue; zero matches is not an
	// error.
	RetryAll(ctx context.Context, queueName domain.QueueName) (int64, error)

	// Delete permanently removes one failed item. Returns ErrJobNotFound or
	// ErrJobNotFailed when the guard fails.
	Delete(ctx context.Context, id int64) error
}
