package triageconfig

import (
	"context"
	"fmt"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/pkg/ctxlog"
)

// Pagination constants.
const (
	DefaultVersionLimit = 20
	MaxVersionLimit     = 100
)

// Service implements business logic for config versioning.
type Service struct {
	repo Repository
}

// NewService creates a new config service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ActiveContent returns the active version's YAML.
func (s *Service) ActiveContent(ctx context.Context) (string, error) {
	return s.repo.ActiveContent(ctx)
}

// VersionContent returns one version's YAML.
func (s *Service) VersionContent(ctx context.Context, version int) (string, error) {
	return s.repo.GetContent(ctx, version)
}

// ListVersions returns version metadata, newest first, with the total count.
func (s *Service) ListVersions(ctx context.Context, limit, offset int) ([]domain.ConfigVersion, int64, error) {
	if limit < 1 || limit > MaxVersionLimit {
		limit = DefaultVersionLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListVersions(ctx, limit, offset)
}

// Validate parses and checks a config document without storing it.
func (s *Service) Validate(content []byte) (*Stats, []string, error) {
	if len(content) == 0 {
		return nil, nil, ErrEmptyConfig
	}

	doc, problems, err := Parse(content)
	if err != nil {
		return nil, []string{err.Error()}, ErrInvalidConfig
	}
	if len(problems) > 0 {
		return nil, problems, ErrInvalidConfig
	}

	stats := doc.CountStats()
	return &stats, nil, nil
}

// Import validates a document and stores it as the new active version.
func (s *Service) Import(ctx context.Context, content []byte, createdBy string, notes *string) (int, error) {
	return s.importVersion(ctx, content, createdBy, notes, nil)
}

// Rollback activates an old version's content as a brand-new version marked
// with its origin. History stays append-only.
func (s *Service) Rollback(ctx context.Context, version int, createdBy string, notes *string) (int, error) {
	content, err := s.repo.GetContent(ctx, version)
	if err != nil {
		return 0, err
	}

	if notes == nil {
		n := fmt.Sprintf("Rollback to version %d", version)
		notes = &n
	}

	newVersion, err := s.importVersion(ctx, []byte(content), createdBy, notes, &version)
	if err != nil {
		return 0, err
	}

	ctxlog.FromContext(ctx).Info("rolled back config",
		"from_version", version,
		"new_version", newVersion,
		"created_by", createdBy,
	)
	return newVersion, nil
}

// DiffVersions compares two stored versions line by line.
func (s *Service) DiffVersions(ctx context.Context, v1, v2 int) (*Diff, error) {
	content1, err := s.repo.GetContent(ctx, v1)
	if err != nil {
		return nil, err
	}
	content2, err := s.repo.GetContent(ctx, v2)
	if err != nil {
		return nil, err
	}

	diff := DiffContents(content1, content2)
	return &diff, nil
}

func (s *Service) importVersion(ctx context.Context, content []byte, createdBy string, notes *string, rolledBackFrom *int) (int, error) {
	if createdBy == "" {
		return 0, ErrActorRequired
	}

	doc, problems, err := Parse(content)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if len(problems) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidConfig, problems[0])
	}

	version, err := s.repo.Import(ctx, ImportParams{
		Content:        string(content),
		ConfigHash:     Hash(content),
		LabelPrefix:    doc.LabelPrefix,
		CreatedBy:      createdBy,
		Notes:          notes,
		RolledBackFrom: rolledBackFrom,
	})
	if err != nil {
		return 0, err
	}

	ctxlog.FromContext(ctx).Info("imported config version",
		"version", version,
		"created_by", createdBy,
	)
	return version, nil
}
