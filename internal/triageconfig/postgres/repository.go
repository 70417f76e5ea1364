// Package postgres provides the PostgreSQL implementation of the config
// version repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	pkgpostgres "github.com/devonjones/cortex-gateway/internal/pkg/postgres"
	"github.com/devonjones/cortex-gateway/internal/triageconfig"
	"github.com/jackc/pgx/v5"
)

// Repository implements triageconfig.Repository using PostgreSQL.
type Repository struct {
	db *pkgpostgres.Pool
}

// NewRepository creates a new PostgreSQL config repository.
func NewRepository(db *pkgpostgres.Pool) *Repository {
	return &Repository{db: db}
}

const versionColumns = `version, config_hash, label_prefix, created_at, created_by,
	notes, is_active, rolled_back_from`

// ActiveVersion returns the metadata of the active version.
func (r *Repository) ActiveVersion(ctx context.Context) (*domain.ConfigVersion, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM triage_config_versions
		WHERE is_active
	`)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, triageconfig.ErrNoActiveConfig
		}
		return nil, err
	}
	return v, nil
}

// GetVersion returns one version's metadata.
func (r *Repository) GetVersion(ctx context.Context, version int) (*domain.ConfigVersion, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM triage_config_versions
		WHERE version = $1
	`, version)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, triageconfig.ErrVersionNotFound
		}
		return nil, err
	}
	return v, nil
}

// GetContent returns one version's YAML document.
func (r *Repository) GetContent(ctx context.Context, version int) (string, error) {
	var content string
	err := r.db.QueryRow(ctx, `
		SELECT content FROM triage_config_versions WHERE version = $1
	`, version).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", triageconfig.ErrVersionNotFound
		}
		return "", fmt.Errorf("get config content: %w", err)
	}
	return content, nil
}

// ActiveContent returns the active version's YAML document.
func (r *Repository) ActiveContent(ctx context.Context) (string, error) {
	var content string
	err := r.db.QueryRow(ctx, `
		SELECT content FROM triage_config_versions WHERE is_active
	`).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", triageconfig.ErrNoActiveConfig
		}
		return "", fmt.Errorf("get active config: %w", err)
	}
	return content, nil
}

// ListVersions returns version metadata, newest first, plus the total count.
func (r *Repository) ListVersions(ctx context.Context, limit, offset int) ([]domain.ConfigVersion, int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+versionColumns+`
		FROM triage_config_versions
		ORDER BY version DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list config versions: %w", err)
	}
	defer rows.Close()

	versions := make([]domain.ConfigVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM triage_config_versions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count config versions: %w", err)
	}
	return versions, total, nil
}

// Import stores a new version and makes it active. Numbers come from the
// MAX+1 under the transaction so concurrent imports serialize cleanly.
func (r *Repository) Import(ctx context.Context, params triageconfig.ImportParams) (int, error) {
	var version int
	err := pkgpostgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE triage_config_versions SET is_active = FALSE WHERE is_active
		`); err != nil {
			return fmt.Errorf("deactivate config: %w", err)
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO triage_config_versions
				(version, config_hash, label_prefix, content, created_by, notes, is_active, rolled_back_from)
			SELECT COALESCE(MAX(version), 0) + 1, $1, $2, $3, $4, $5, TRUE, $6
			FROM triage_config_versions
			RETURNING version
		`,
			params.ConfigHash,
			params.LabelPrefix,
			params.Content,
			params.CreatedBy,
			params.Notes,
			params.RolledBackFrom,
		).Scan(&version)
		if err != nil {
			return fmt.Errorf("insert config version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func scanVersion(row pgx.Row) (*domain.ConfigVersion, error) {
	var v domain.ConfigVersion
	err := row.Scan(
		&v.Version,
		&v.ConfigHash,
		&v.LabelPrefix,
		&v.CreatedAt,
		&v.CreatedBy,
		&v.Notes,
		&v.IsActive,
		&v.RolledBackFrom,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan config version: %w", err)
	}
	return &v, nil
}
