package triageconfig

import (
	"context"

	"github.com/devonjones/cortex-gateway/internal/domain"
)

// ImportParams carries one new version into the store.
type ImportParams struct {
	Content        string
	ConfigHash     string
	LabelPrefix    string
	CreatedBy      string
	Notes          *string
	RolledBackFrom *int
}

// Repository defines data access for config versions. Import is
// transactional: deactivating the previous version and inserting the new
// active one commit together.
type Repository interface {
	ActiveVersion(ctx context.Context) (*domain.ConfigVersion, error)
	GetVersion(ctx context.Context, version int) (*domain.ConfigVersion, error)
	GetContent(ctx context.Context, version int) (string, error)
	ActiveContent(ctx context.Context) (string, error)
	ListVersions(ctx context.Context, limit, offset int) ([]domain.ConfigVersion, int64, error)
	Import(ctx context.Context, params ImportParams) (int, error)
}
