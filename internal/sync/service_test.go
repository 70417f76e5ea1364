package sync

import (
	"context"
	"testing"
	"time"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	jobs map[string]*domain.BackfillJob
}

func newMockRepository() *mockRepository {
	return &mockRepository{jobs: make(map[string]*domain.BackfillJob)}
}

func (m *mockRepository) Create(_ context.Context, job *domain.BackfillJob) error {
	job.CreatedAt = time.Now()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockRepository) List(_ context.Context, filter JobFilter) ([]domain.BackfillJob, error) {
	result := make([]domain.BackfillJob, 0)
	for _, j := range m.jobs {
		if filter.Status != "" && string(j.Status) != filter.Status {
			continue
		}
		result = append(result, *j)
	}
	return result, nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.BackfillJob, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *mockRepository) Cancel(_ context.Context, id string) (bool, error) {
	j, ok := m.jobs[id]
	if !ok || !j.Status.Cancellable() {
		return false, nil
	}
	j.Status = domain.BackfillStatusCancelled
	return true, nil
}

func TestService_Create_FromDays(t *testing.T) {
	svc := NewService(newMockRepository())

	days := 30
	job, err := svc.Create(context.Background(), CreateRequest{Days: &days})
	require.NoError(t, err)

	assert.Equal(t, domain.BackfillStatusPending, job.Status)
	require.NotNil(t, job.AfterDate)
	assert.Equal(t, "after:"+job.AfterDate.Format("2006/01/02"), job.Query)

	_, err = uuid.Parse(job.ID)
	assert.NoError(t, err)
}

func TestService_Create_FromAfterDate(t *testing.T) {
	svc := NewService(newMockRepository())

	job, err := svc.Create(context.Background(), CreateRequest{After: "2026-01-15"})
	require.NoError(t, err)

	assert.Equal(t, "after:2026/01/15", job.Query)
	assert.Nil(t, job.Days)
}

func TestService_Create_WindowValidation(t *testing.T) {
	svc := NewService(newMockRepository())
	days := 7
	zero := 0

	_, err := svc.Create(context.Background(), CreateRequest{})
	assert.ErrorIs(t, err, ErrWindowRequired)

	_, err = svc.Create(context.Background(), CreateRequest{Days: &days, After: "2026-01-15"})
	assert.ErrorIs(t, err, ErrConflictingWindows)

	_, err = svc.Create(context.Background(), CreateRequest{Days: &zero})
	assert.ErrorIs(t, err, ErrInvalidDays)

	_, err = svc.Create(context.Background(), CreateRequest{After: "15/01/2026"})
	assert.ErrorIs(t, err, ErrInvalidAfterDate)
}

func TestService_Cancel(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	days := 7
	job, err := svc.Create(context.Background(), CreateRequest{Days: &days})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackfillStatusCancelled, cancelled.Status)

	// second cancel hits the terminal state
	_, err = svc.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrJobNotCancellable)
}

func TestService_Cancel_NotFound(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Cancel(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
}
