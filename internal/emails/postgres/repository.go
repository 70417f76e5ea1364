// Package postgres provides the PostgreSQL implementation of the emails
// repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/emails"
	pkgpostgres "github.com/devonjones/cortex-gateway/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
)

// Repository implements emails.Repository using PostgreSQL.
type Repository struct {
	db *pkgpostgres.Pool
}

// NewRepository creates a new PostgreSQL emails repository.
func NewRepository(db *pkgpostgres.Pool) *Repository {
	return &Repository{db: db}
}

// List returns email summaries, newest date header first.
func (r *Repository) List(ctx context.Context, filter emails.ListFilter) ([]domain.EmailSummary, error) {
	query := `
		SELECT er.gmail_id, ep.from_addr, ep.to_addrs, ep.subject, ep.date_header, er.label_ids
		FROM emails_raw er
		LEFT JOIN emails_parsed ep ON er.gmail_id = ep.gmail_id
	`
	args := []any{}
	if filter.Label != "" {
		labelJSON, err := json.Marshal([]string{filter.Label})
		if err != nil {
			return nil, fmt.Errorf("marshal label filter: %w", err)
		}
		args = append(args, string(labelJSON))
		query += fmt.Sprintf(" WHERE er.label_ids @> $%d::jsonb", len(args))
	}
	query += fmt.Sprintf(" ORDER BY ep.date_header DESC NULLS LAST LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows, true)
}

// GetByGmailID returns the full projection of one email, with its latest
// classification when one exists.
func (r *Repository) GetByGmailID(ctx context.Context, gmailID string) (*domain.EmailDetail, error) {
	query := `
		SELECT er.gmail_id, er.history_id, er.label_ids, er.headers, er.internal_date, er.created_at,
		       ep.from_addr, ep.from_name, ep.to_addrs, ep.cc_addrs, ep.subject, ep.date_header,
		       ep.message_id, ep.in_reply_to, ep.refs
		FROM emails_raw er
		LEFT JOIN emails_parsed ep ON er.gmail_id = ep.gmail_id
		WHERE er.gmail_id = $1
	`
	var d domain.EmailDetail
	err := r.db.QueryRow(ctx, query, gmailID).Scan(
		&d.GmailID,
		&d.HistoryID,
		&d.LabelIDs,
		&d.Headers,
		&d.InternalDate,
		&d.CreatedAt,
		&d.FromAddr,
		&d.FromName,
		&d.ToAddrs,
		&d.CcAddrs,
		&d.Subject,
		&d.DateHeader,
		&d.MessageID,
		&d.InReplyTo,
		&d.Refs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, emails.ErrEmailNotFound
		}
		return nil, fmt.Errorf("get email: %w", err)
	}

	var c domain.Classification
	err = r.db.QueryRow(ctx, `
		SELECT gmail_id, matched_rule, label, action, llm_category, llm_confidence, classified_at
		FROM classifications
		WHERE gmail_id = $1
		ORDER BY classified_at DESC
		LIMIT 1
	`, gmailID).Scan(
		&c.GmailID,
		&c.MatchedRule,
		&c.Label,
		&c.Action,
		&c.LLMCategory,
		&c.Confidence,
		&c.ClassifiedAt,
	)
	if err == nil {
		d.Classification = &c
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get classification: %w", err)
	}

	return &d, nil
}

// Counts returns pipeline progress counts over the corpus.
func (r *Repository) Counts(ctx context.Context) (*domain.EmailCounts, error) {
	query := `
		SELECT COUNT(*) AS total_emails,
		       COUNT(DISTINCT ep.gmail_id) AS parsed_emails,
		       COUNT(DISTINCT c.gmail_id) AS classified_emails
		FROM emails_raw er
		LEFT JOIN emails_parsed ep ON er.gmail_id = ep.gmail_id
		LEFT JOIN classifications c ON er.gmail_id = c.gmail_id
	`
	var counts domain.EmailCounts
	err := r.db.QueryRow(ctx, query).Scan(&counts.TotalEmails, &counts.ParsedEmails, &counts.ClassifiedEmails)
	if err != nil {
		return nil, fmt.Errorf("email counts: %w", err)
	}
	return &counts, nil
}

// ListByLabelID returns emails carrying a Gmail label ID.
func (r *Repository) ListByLabelID(ctx context.Context, labelID string, limit, offset int) ([]domain.EmailSummary, error) {
	labelJSON, err := json.Marshal([]string{labelID})
	if err != nil {
		return nil, fmt.Errorf("marshal label filter: %w", err)
	}

	query := `
		SELECT er.gmail_id, ep.from_addr, ep.subject, ep.date_header, er.label_ids
		FROM emails_raw er
		JOIN emails_parsed ep ON er.gmail_id = ep.gmail_id
		WHERE er.label_ids @> $1::jsonb
		ORDER BY ep.date_header DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, string(labelJSON), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list emails by label: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows, false)
}

// GetLabel returns a synced Gmail label definition.
func (r *Repository) GetLabel(ctx context.Context, labelID string) (*domain.GmailLabel, error) {
	var label domain.GmailLabel
	err := r.db.QueryRow(ctx, `SELECT id, name FROM gmail_labels WHERE id = $1`, labelID).Scan(&label.ID, &label.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, emails.ErrEmailNotFound
		}
		return nil, fmt.Errorf("get label: %w", err)
	}
	return &label, nil
}

// SenderClassifications returns the label breakdown for one sender.
func (r *Repository) SenderClassifications(ctx context.Context, fromAddr string) ([]domain.LabelCount, error) {
	query := `
		SELECT COALESCE(c.label, ''), COUNT(*)
		FROM classifications c
		JOIN emails_parsed ep ON c.gmail_id = ep.gmail_id
		WHERE ep.from_addr = $1
		GROUP BY c.label
		ORDER BY COUNT(*) DESC
	`
	rows, err := r.db.Query(ctx, query, fromAddr)
	if err != nil {
		return nil, fmt.Errorf("sender classifications: %w", err)
	}
	defer rows.Close()

	return scanLabelCounts(rows)
}

// ClassificationDistribution returns top labels by distinct email count.
func (r *Repository) ClassificationDistribution(ctx context.Context, limit int) ([]domain.LabelCount, error) {
	query := `
		SELECT label, COUNT(DISTINCT gmail_id)
		FROM classifications
		WHERE label IS NOT NULL
		GROUP BY label
		ORDER BY COUNT(DISTINCT gmail_id) DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("classification distribution: %w", err)
	}
	defer rows.Close()

	return scanLabelCounts(rows)
}

// UncategorizedTopSenders returns senders with no email classified outside
// the catch-all label.
func (r *Repository) UncategorizedTopSenders(ctx context.Context, uncategorizedLabel string, limit int) ([]domain.SenderCount, error) {
	query := `
		WITH uncategorized_emails AS (
			SELECT DISTINCT c.gmail_id
			FROM classifications c
			WHERE c.label = $1
		),
		emails_with_other_labels AS (
			SELECT DISTINCT c.gmail_id
			FROM classifications c
			WHERE c.label != $1 AND c.label IS NOT NULL
		),
		only_uncategorized AS (
			SELECT gmail_id FROM uncategorized_emails
			EXCEPT
			SELECT gmail_id FROM emails_with_other_labels
		)
		SELECT ep.from_addr, COUNT(DISTINCT ep.gmail_id)
		FROM only_uncategorized ou
		JOIN emails_parsed ep ON ep.gmail_id = ou.gmail_id
		GROUP BY ep.from_addr
		ORDER BY COUNT(DISTINCT ep.gmail_id) DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, uncategorizedLabel, limit)
	if err != nil {
		return nil, fmt.Errorf("uncategorized top senders: %w", err)
	}
	defer rows.Close()

	result := make([]domain.SenderCount, 0)
	for rows.Next() {
		var s domain.SenderCount
		if err := rows.Scan(&s.FromAddr, &s.Count); err != nil {
			return nil, fmt.Errorf("scan sender count: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// scanSummaries reads summary rows; withToAddrs matches the column lists of
// the two listing queries.
func scanSummaries(rows pgx.Rows, withToAddrs bool) ([]domain.EmailSummary, error) {
	result := make([]domain.EmailSummary, 0)
	for rows.Next() {
		var s domain.EmailSummary
		var err error
		if withToAddrs {
			err = rows.Scan(&s.GmailID, &s.FromAddr, &s.ToAddrs, &s.Subject, &s.DateHeader, &s.LabelIDs)
		} else {
			err = rows.Scan(&s.GmailID, &s.FromAddr, &s.Subject, &s.DateHeader, &s.LabelIDs)
		}
		if err != nil {
			return nil, fmt.Errorf("scan email summary: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func scanLabelCounts(rows pgx.Rows) ([]domain.LabelCount, error) {
	result := make([]domain.LabelCount, 0)
	for rows.Next() {
		var lc domain.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		result = append(result, lc)
	}
	return result, rows.Err()
}
