package emails

import (
	"context"
	"errors"

	"github.com/devonjones/cortex-gateway/internal/bodystore"
	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
)

// Pagination constants.
const (
	DefaultListLimit         = 50
	MaxListLimit             = 100
	DefaultDistributionLimit = 50
	MaxDistributionLimit     = 200
	DefaultTopSendersLimit   = 20
	MaxTopSendersLimit       = 100
)

// DefaultUncategorizedLabel is the catch-all label for emails no rule or
// classifier placed anywhere else.
const DefaultUncategorizedLabel = "Cortex/Uncategorized"

// BodyReader is the slice of the body cache client the service needs.
type BodyReader interface {
	GetBody(ctx context.Context, gmailID string) (*bodystore.Body, error)
	GetMailText(ctx context.Context, gmailID string) (string, bool, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Service implements business logic for email browsing.
type Service struct {
	repo   Repository
	bodies BodyReader
}

// NewService creates a new emails service.
func NewService(repo Repository, bodies BodyReader) *Service {
	return &Service{repo: repo, bodies: bodies}
}

// List returns email summaries, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.EmailSummary, error) {
	return s.repo.List(ctx, filter)
}

// Get returns the full projection of one email.
func (s *Service) Get(ctx context.Context, gmailID string) (*domain.EmailDetail, error) {
	return s.repo.GetByGmailID(ctx, gmailID)
}

// GetBody returns the cached body for one email.
func (s *Service) GetBody(ctx context.Context, gmailID string) (*bodystore.Body, error) {
	body, err := s.bodies.GetBody(ctx, gmailID)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, ErrBodyNotFound
	}
	return body, nil
}

// GetText returns the decoded plain text for one email.
func (s *Service) GetText(ctx context.Context, gmailID string) (string, error) {
	text, found, err := s.bodies.GetMailText(ctx, gmailID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrBodyNotFound
	}
	return text, nil
}

// StatsResult combines relational pipeline counts with the body cache's own
// stats. BodyStore is nil when the cache is unreachable; the relational half
// is still served.
type StatsResult struct {
	Postgres  *domain.EmailCounts    `json:"postgres"`
	BodyStore map[string]interface{} `json:"body_store"`
}

// Stats returns corpus statistics, degrading on body cache failure.
func (s *Service) Stats(ctx context.Context) (*StatsResult, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}

	result := &StatsResult{Postgres: counts}

	bodyStats, err := s.bodies.Stats(ctx)
	if err != nil {
		if !errors.Is(err, bodystore.ErrUnavailable) {
			return nil, err
		}
		ctxlog.FromContext(ctx).Warn("body store unavailable, serving partial stats", "error", err)
	} else {
		result.BodyStore = bodyStats
	}
	return result, nil
}

// ByLabelResult is a label-scoped email listing with the label's metadata.
type ByLabelResult struct {
	Label  *domain.GmailLabel    `json:"label"`
	Emails []domain.EmailSummary `json:"emails"`
}

// ListByLabel returns emails carrying a Gmail label ID.
func (s *Service) ListByLabel(ctx context.Context, labelID string, limit, offset int) (*ByLabelResult, error) {
	items, err := s.repo.ListByLabelID(ctx, labelID, limit, offset)
	if err != nil {
		return nil, err
	}

	label, err := s.repo.GetLabel(ctx, labelID)
	if err != nil && !errors.Is(err, ErrEmailNotFound) {
		return nil, err
	}

	return &ByLabelResult{Label: label, Emails: items}, nil
}

// SenderClassifications returns the label breakdown for one sender.
func (s *Service) SenderClassifications(ctx context.Context, fromAddr string) ([]domain.LabelCount, error) {
	return s.repo.SenderClassifications(ctx, fromAddr)
}

// ClassificationDistribution returns top labels by distinct email count.
func (s *Service) ClassificationDistribution(ctx context.Context, limit int) ([]domain.LabelCount, error) {
	return s.repo.ClassificationDistribution(ctx, limit)
}

// UncategorizedTopSenders returns senders whose every classified email landed
// in the catch-all label. Each one is a candidate for a new mapping.
func (s *Service) UncategorizedTopSenders(ctx context.Context, label string, limit int) ([]domain.SenderCount, error) {
	if label == "" {
		label = DefaultUncategorizedLabel
	}
	return s.repo.UncategorizedTopSenders(ctx, label, limit)
}
