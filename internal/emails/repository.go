// Package emails provides read-only HTTP endpoints over the stored mail
// corpus, combining relational metadata with bodies served by the analytical
// cache.
package emails

import (
	"context"
	"errors"

	"github.com/devonjones/cortex-gateway/internal/domain"
)

// ErrEmailNotFound reports an unknown Gmail ID.
var ErrEmailNotFound = errors.New("email not found")

// ErrBodyNotFound reports that the cache holds no body for the ID.
var ErrBodyNotFound = errors.New("body not found")

// ListFilter narrows email listings.
type ListFilter struct {
	Label  string
	Limit  int
	Offset int
}

// Repository defines data access for the email corpus.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]domain.EmailSummary, error)
	GetByGmailID(ctx context.Context, gmailID string) (*domain.EmailDetail, error)
	Counts(ctx context.Context) (*domain.EmailCounts, error)
	ListByLabelID(ctx context.Context, labelID string, limit, offset int) ([]domain.EmailSummary, error)
	GetLabel(ctx context.Context, labelID string) (*domain.GmailLabel, error)
	SenderClassifications(ctx context.Context, fromAddr string) ([]domain.LabelCount, error)
	ClassificationDistribution(ctx context.Context, limit int) ([]domain.LabelCount, error)
	UncategorizedTopSenders(ctx context.Context, uncategorizedLabel string, limit int) ([]domain.SenderCount, error)
}
