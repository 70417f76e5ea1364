// Package postgres provides the PostgreSQL implementation of the queue
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	pkgpostgres "github.com/devonjones/cortex-gateway/internal/pkg/postgres"
	"github.com/devonjones/cortex-gateway/internal/queue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository implements queue.Repository using PostgreSQL.
type Repository struct {
	db *pkgpostgres.Pool
}

// NewRepository creates a new PostgreSQL queue repository.
func NewRepository(db *pkgpostgres.Pool) *Repository {
	return &Repository{db: db}
}

// Enqueue executes the compiled trigger statement. The expected dedup
// conflict is absorbed by the statement itself (DO NOTHING); any other
// constraint violation surfaces as ErrEnqueueFailed with the cause attached.
func (r *Repository) Enqueue(ctx context.Context, req queue.EnqueueRequest) (int64, error) {
	sql, args, err := req.Build()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return 0, fmt.Errorf("%w: constraint %s: %w", queue.ErrEnqueueFailed, pgErr.ConstraintName, err)
		}
		return 0, fmt.Errorf("%w: %w", queue.ErrEnqueueFailed, err)
	}

	return tag.RowsAffected(), nil
}

// Stats returns item counts grouped by queue and status.
func (r *Repository) Stats(ctx context.Context) (domain.QueueStats, error) {
	query := `
		SELECT queue_name, status, COUNT(*)
		FROM queue
		GROUP BY queue_name, status
		ORDER BY queue_name, status
	`
	return r.groupedCounts(ctx, query)
}

// BackfillStats returns counts over backfill items only (priority < 0).
func (r *Repository) BackfillStats(ctx context.Context) (domain.QueueStats, error) {
	query := `
		SELECT queue_name, status, COUNT(*)
		FROM queue
		WHERE priority < 0
		GROUP BY queue_name, status
		ORDER BY queue_name, status
	`
	return r.groupedCounts(ctx, query)
}

func (r *Repository) groupedCounts(ctx context.Context, query string) (domain.QueueStats, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(domain.QueueStats)
	for rows.Next() {
		var queueName domain.QueueName
		var status domain.QueueStatus
		var count int64
		if err := rows.Scan(&queueName, &status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		if stats[queueName] == nil {
			stats[queueName] = make(map[domain.QueueStatus]int64)
		}
		stats[queueName][status] = count
	}

	return stats, rows.Err()
}

// CancelBackfill marks pending backfill items cancelled for a queue.
func (r *Repository) CancelBackfill(ctx context.Context, queueName domain.QueueName) (int64, error) {
	query := `
		UPDATE queue
		SET status = 'cancelled', updated_at = NOW()
		WHERE queue_name = $1
		AND priority < 0
		AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, string(queueName))
	if err != nil {
		return 0, fmt.Errorf("cancel backfill: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListFailed returns failed items, newest first, optionally filtered by
// queue name.
func (r *Repository) ListFailed(ctx context.Context, queueName string, limit, offset int) ([]domain.QueueItem, error) {
	query := `
		SELECT id, queue_name, gmail_id, payload, priority, status, error, attempts, created_at, updated_at
		FROM queue
		WHERE status = 'failed'
	`
	args := []any{}
	if queueName != "" {
		query += " AND queue_name = $1"
		args = append(args, queueName)
	}
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	defer rows.Close()

	items := make([]domain.QueueItem, 0)
	for rows.Next() {
		var item domain.QueueItem
		err := rows.Scan(
			&item.ID,
			&item.QueueName,
			&item.GmailID,
			&item.Payload,
			&item.Priority,
			&item.Status,
			&item.Error,
			&item.Attempts,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Retry transitions one failed item back to pending. The guard is in the
// UPDATE itself; a miss is disambiguated with a follow-up status read. A
// failed item whose target message already has a live sibling stays failed,
// otherwise the flip would trip the active-item uniqueness index.
func (r *Repository) Retry(ctx context.Context, id int64) (*domain.QueueItem, error) {
	query := `
		UPDATE queue
		SET status = 'pending', error = NULL, attempts = 0, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
		AND NOT EXISTS (
			SELECT 1 FROM queue live
			WHERE live.queue_name = queue.queue_name
			AND live.gmail_id = queue.gmail_id
			AND live.status IN ('pending', 'processing')
		)
		RETURNING id, queue_name, gmail_id, payload, priority, status, error, attempts, created_at, updated_at
	`
	var item domain.QueueItem
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.QueueName,
		&item.GmailID,
		&item.Payload,
		&item.Priority,
		&item.Status,
		&item.Error,
		&item.Attempts,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.guardError(ctx, id)
		}
		if isUniqueViolation(err) {
			return nil, queue.ErrActiveDuplicate
		}
		return nil, fmt.Errorf("retry job: %w", err)
	}
	return &item, nil
}

// RetryAll retries every failed item in a queue. Items blocked by a live
// sibling are skipped rather than failing the whole batch.
func (r *Repository) RetryAll(ctx context.Context, queueName domain.QueueName) (int64, error) {
	query := `
		UPDATE queue
		SET status = 'pending', error = NULL, attempts = 0, updated_at = NOW()
		WHERE status = 'failed' AND queue_name = $1
		AND NOT EXISTS (
			SELECT 1 FROM queue live
			WHERE live.queue_name = queue.queue_name
			AND live.gmail_id = queue.gmail_id
			AND live.status IN ('pending', 'processing')
		)
	`
	tag, err := r.db.Exec(ctx, query, string(queueName))
	if err != nil {
		return 0, fmt.Errorf("retry all: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete permanently removes one failed item.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM queue WHERE id = $1 AND status = 'failed'`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.guardError(ctx, id)
	}
	return nil
}

// guardError distinguishes a missing job from one in the wrong status. A
// job that is still failed after a missed retry was blocked by a live
// sibling for the same message.
func (r *Repository) guardError(ctx context.Context, id int64) error {
	var status domain.QueueStatus
	err := r.db.QueryRow(ctx, `SELECT status FROM queue WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return queue.ErrJobNotFound
		}
		return fmt.Errorf("check job status: %w", err)
	}
	if status == domain.QueueStatusFailed {
		return queue.ErrActiveDuplicate
	}
	return fmt.Errorf("%w: current status %q", queue.ErrJobNotFailed, status)
}

// isUniqueViolation reports whether err is a unique constraint violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
