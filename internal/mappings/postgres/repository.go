// Package postgres provides the PostgreSQL implementation of the mappings
// repository. Every mutation runs in one transaction that also writes the
// audit history row, enqueues affected emails for re-triage, and raises the
// worker reload signal.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/mappings"
	pkgpostgres "github.com/devonjones/cortex-gateway/internal/pkg/postgres"
	"github.com/devonjones/cortex-gateway/internal/queue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code raised by the partial unique
// index on (mapping_type, email_address) over live rows.
const uniqueViolation = "23505"

// Repository implements mappings.Repository using PostgreSQL.
type Repository struct {
	db *pkgpostgres.Pool
}

// NewRepository creates a new PostgreSQL mappings repository.
func NewRepository(db *pkgpostgres.Pool) *Repository {
	return &Repository{db: db}
}

// List returns mappings matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter mappings.ListFilter) ([]domain.EmailMapping, error) {
	query := `
		SELECT id, mapping_type, email_address, label, archive, mark_read,
		       created_by, updated_by, created_at, updated_at, deleted_at
		FROM triage_email_mappings
		WHERE 1=1
	`
	args := []any{}
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	if filter.MappingType != "" {
		args = append(args, filter.MappingType)
		query += fmt.Sprintf(" AND mapping_type = $%d", len(args))
	}
	if filter.EmailAddress != "" {
		args = append(args, filter.EmailAddress)
		query += fmt.Sprintf(" AND email_address = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	result := make([]domain.EmailMapping, 0)
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

// GetByID returns one live mapping.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.EmailMapping, error) {
	query := `
		SELECT id, mapping_type, email_address, label, archive, mark_read,
		       created_by, updated_by, created_at, updated_at, deleted_at
		FROM triage_email_mappings
		WHERE id = $1 AND deleted_at IS NULL
	`
	row := r.db.QueryRow(ctx, query, id)
	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mappings.ErrMappingNotFound
		}
		return nil, err
	}
	return m, nil
}

// Create inserts a mapping with its side effects in one transaction.
func (r *Repository) Create(ctx context.Context, mapping *domain.EmailMapping) error {
	return pkgpostgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO triage_email_mappings
				(mapping_type, email_address, label, archive, mark_read, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			mapping.MappingType,
			mapping.EmailAddress,
			mapping.Label,
			mapping.Archive,
			mapping.MarkRead,
			mapping.CreatedBy,
		).Scan(&mapping.ID, &mapping.CreatedAt, &mapping.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return mappings.ErrMappingExists
			}
			return fmt.Errorf("insert mapping: %w", err)
		}

		if err := insertHistory(ctx, tx, mapping, domain.MappingChangeCreate, mapping.CreatedBy, nil); err != nil {
			return err
		}
		return applyChangeSignals(ctx, tx, mapping.EmailAddress)
	})
}

// Update rewrites a live mapping with its side effects in one transaction.
// The previous values are re-read under lock so the history row is exact.
func (r *Repository) Update(ctx context.Context, mapping *domain.EmailMapping) error {
	return pkgpostgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var prev domain.EmailMapping
		err := tx.QueryRow(ctx, `
			SELECT label, archive, mark_read
			FROM triage_email_mappings
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE
		`, mapping.ID).Scan(&prev.Label, &prev.Archive, &prev.MarkRead)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return mappings.ErrMappingNotFound
			}
			return fmt.Errorf("lock mapping: %w", err)
		}

		query := `
			UPDATE triage_email_mappings
			SET mapping_type = $1, email_address = $2, label = $3,
			    archive = $4, mark_read = $5, updated_by = $6, updated_at = NOW()
			WHERE id = $7 AND deleted_at IS NULL
			RETURNING updated_at
		`
		err = tx.QueryRow(ctx, query,
			mapping.MappingType,
			mapping.EmailAddress,
			mapping.Label,
			mapping.Archive,
			mapping.MarkRead,
			mapping.UpdatedBy,
			mapping.ID,
		).Scan(&mapping.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return mappings.ErrMappingExists
			}
			return fmt.Errorf("update mapping: %w", err)
		}

		if err := insertHistory(ctx, tx, mapping, domain.MappingChangeUpdate, derefOr(mapping.UpdatedBy, mapping.CreatedBy), &prev); err != nil {
			return err
		}
		return applyChangeSignals(ctx, tx, mapping.EmailAddress)
	})
}

// Delete soft-deletes a mapping with its side effects in one transaction.
func (r *Repository) Delete(ctx context.Context, id int64, deletedBy string) (*domain.EmailMapping, error) {
	var deleted *domain.EmailMapping
	err := pkgpostgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE triage_email_mappings
			SET deleted_at = NOW(), updated_by = $1, updated_at = NOW()
			WHERE id = $2 AND deleted_at IS NULL
			RETURNING id, mapping_type, email_address, label, archive, mark_read,
			          created_by, updated_by, created_at, updated_at, deleted_at
		`
		m, err := scanMapping(tx.QueryRow(ctx, query, deletedBy, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return mappings.ErrMappingNotFound
			}
			return fmt.Errorf("delete mapping: %w", err)
		}
		deleted = m

		prev := domain.EmailMapping{Label: m.Label, Archive: m.Archive, MarkRead: m.MarkRead}
		if err := insertHistory(ctx, tx, m, domain.MappingChangeDelete, deletedBy, &prev); err != nil {
			return err
		}
		return applyChangeSignals(ctx, tx, m.EmailAddress)
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// History returns the audit trail for an address, newest first.
func (r *Repository) History(ctx context.Context, emailAddress string, limit int) ([]domain.MappingHistoryEntry, error) {
	query := `
		SELECT id, mapping_id, mapping_type, email_address, label, archive, mark_read,
		       change_type, changed_at, changed_by,
		       previous_label, previous_archive, previous_mark_read
		FROM triage_email_mappings_history
		WHERE email_address = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, emailAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("mapping history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.MappingHistoryEntry, 0)
	for rows.Next() {
		var e domain.MappingHistoryEntry
		err := rows.Scan(
			&e.ID,
			&e.MappingID,
			&e.MappingType,
			&e.EmailAddress,
			&e.Label,
			&e.Archive,
			&e.MarkRead,
			&e.ChangeType,
			&e.ChangedAt,
			&e.ChangedBy,
			&e.PreviousLabel,
			&e.PreviousArchive,
			&e.PreviousMarkRead,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// insertHistory writes the audit row for one mutation. History is written by
// application code, not triggers, so it participates in the rollback.
func insertHistory(ctx context.Context, tx pgx.Tx, m *domain.EmailMapping, change domain.MappingChangeType, changedBy string, prev *domain.EmailMapping) error {
	var prevLabel *string
	var prevArchive, prevMarkRead *bool
	if prev != nil {
		prevLabel = &prev.Label
		prevArchive = prev.Archive
		prevMarkRead = prev.MarkRead
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO triage_email_mappings_history
			(mapping_id, mapping_type, email_address, label, archive, mark_read,
			 change_type, changed_by, previous_label, previous_archive, previous_mark_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		m.ID, m.MappingType, m.EmailAddress, m.Label, m.Archive, m.MarkRead,
		change, changedBy, prevLabel, prevArchive, prevMarkRead,
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

// applyChangeSignals enqueues every stored email from the address for
// re-triage and raises the coalesced worker reload signal, both on the
// mutation's transaction. Zero matched emails is not an error.
func applyChangeSignals(ctx context.Context, tx pgx.Tx, emailAddress string) error {
	req := queue.NewMappingChangeRequest(emailAddress)
	sql, args, err := req.Build()
	if err != nil {
		return fmt.Errorf("build re-triage enqueue: %w", err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("enqueue re-triage: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO worker_signals (signal_type, target_worker)
		VALUES ($1, $2)
		ON CONFLICT (signal_type, target_worker) DO NOTHING
	`, domain.SignalMappingsReload, domain.WorkerTriage)
	if err != nil {
		return fmt.Errorf("signal worker: %w", err)
	}
	return nil
}

func scanMapping(row pgx.Row) (*domain.EmailMapping, error) {
	var m domain.EmailMapping
	err := row.Scan(
		&m.ID,
		&m.MappingType,
		&m.EmailAddress,
		&m.Label,
		&m.Archive,
		&m.MarkRead,
		&m.CreatedBy,
		&m.UpdatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func derefOr(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}
