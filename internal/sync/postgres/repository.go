// Package postgres provides the PostgreSQL implementation of the sync
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	pkgpostgres "github.com/devonjones/cortex-gateway/internal/pkg/postgres"
	"github.com/devonjones/cortex-gateway/internal/sync"
	"github.com/jackc/pgx/v5"
)

// Repository implements sync.Repository using PostgreSQL.
type Repository struct {
	db *pkgpostgres.Pool
}

// NewRepository creates a new PostgreSQL sync repository.
func NewRepository(db *pkgpostgres.Pool) *Repository {
	return &Repository{db: db}
}

const jobColumns = `id, status, query, days, after_date, processed, stored, updated,
	error, created_at, started_at, completed_at`

// Create stores a pending job for the sync worker to pick up.
func (r *Repository) Create(ctx context.Context, job *domain.BackfillJob) error {
	query := `
		INSERT INTO backfill_jobs (id, status, query, days, after_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		job.ID,
		job.Status,
		job.Query,
		job.Days,
		job.AfterDate,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create backfill job: %w", err)
	}
	return nil
}

// List returns jobs, newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, filter sync.JobFilter) ([]domain.BackfillJob, error) {
	query := `SELECT ` + jobColumns + ` FROM backfill_jobs`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " WHERE status = $1"
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, filter.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backfill jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.BackfillJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// GetByID returns one job.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.BackfillJob, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM backfill_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Cancel transitions a pending or running job to cancelled. The status guard
// is in the statement so racing the worker cannot cancel a finished job.
func (r *Repository) Cancel(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE backfill_jobs
		SET status = 'cancelled', completed_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'running')
	`, id)
	if err != nil {
		return false, fmt.Errorf("cancel backfill job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanJob(row pgx.Row) (*domain.BackfillJob, error) {
	var job domain.BackfillJob
	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.Query,
		&job.Days,
		&job.AfterDate,
		&job.Processed,
		&job.Stored,
		&job.Updated,
		&job.Error,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan backfill job: %w", err)
	}
	return &job, nil
}
