// Package postgres provides the PostgreSQL implementation of the triage
// repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	pkgpostgres "github.com/devonjones/cortex-gateway/internal/pkg/postgres"
	"github.com/devonjones/cortex-gateway/internal/triage"
)

// Repository implements triage.Repository using PostgreSQL.
type Repository struct {
	db *pkgpostgres.Pool
}

// NewRepository creates a new PostgreSQL triage repository.
func NewRepository(db *pkgpostgres.Pool) *Repository {
	return &Repository{db: db}
}

// Stats aggregates classification activity: top classifier/label/action
// combinations, hourly volume over the last day, and rule-vs-llm counts.
func (r *Repository) Stats(ctx context.Context) (*triage.Stats, error) {
	stats := &triage.Stats{
		ByClassifier: make([]domain.ClassifierCount, 0),
		RecentHourly: make([]domain.HourlyCount, 0),
		Methods:      make(map[string]int64),
	}

	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(matched_rule, 'llm') AS classifier, label, action, COUNT(*)
		FROM classifications
		GROUP BY matched_rule, label, action
		ORDER BY COUNT(*) DESC
		LIMIT 50
	`)
	if err != nil {
		return nil, fmt.Errorf("classifier stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.ClassifierCount
		if err := rows.Scan(&c.Classifier, &c.Label, &c.Action, &c.Count); err != nil {
			return nil, fmt.Errorf("scan classifier row: %w", err)
		}
		stats.ByClassifier = append(stats.ByClassifier, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT date_trunc('hour', classified_at) AS hour, COUNT(*)
		FROM classifications
		WHERE classified_at >= NOW() - INTERVAL '24 hours'
		GROUP BY hour
		ORDER BY hour
	`)
	if err != nil {
		return nil, fmt.Errorf("hourly stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h domain.HourlyCount
		if err := rows.Scan(&h.Hour, &h.Count); err != nil {
			return nil, fmt.Errorf("scan hourly row: %w", err)
		}
		stats.RecentHourly = append(stats.RecentHourly, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT CASE WHEN matched_rule IS NOT NULL THEN 'rule' ELSE 'llm' END AS method, COUNT(*)
		FROM classifications
		GROUP BY CASE WHEN matched_rule IS NOT NULL THEN 'rule' ELSE 'llm' END
	`)
	if err != nil {
		return nil, fmt.Errorf("method stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var count int64
		if err := rows.Scan(&method, &count); err != nil {
			return nil, fmt.Errorf("scan method row: %w", err)
		}
		stats.Methods[method] = count
	}

	return stats, rows.Err()
}

// ListClassifications returns recent classifications joined with parsed
// sender and subject, newest first.
func (r *Repository) ListClassifications(ctx context.Context, filter triage.ClassificationFilter) ([]domain.Classification, error) {
	query := `
		SELECT c.gmail_id, c.matched_rule, c.label, c.action,
		       c.llm_category, c.llm_confidence, c.classified_at,
		       ep.subject, ep.from_addr
		FROM classifications c
		LEFT JOIN emails_parsed ep ON c.gmail_id = ep.gmail_id
		WHERE 1=1
	`
	args := []any{}
	if filter.Label != "" {
		args = append(args, filter.Label)
		query += fmt.Sprintf(" AND c.label = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND c.action = $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY c.classified_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Classification, 0)
	for rows.Next() {
		var c domain.Classification
		err := rows.Scan(
			&c.GmailID,
			&c.MatchedRule,
			&c.Label,
			&c.Action,
			&c.LLMCategory,
			&c.Confidence,
			&c.ClassifiedAt,
			&c.Subject,
			&c.FromAddr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
