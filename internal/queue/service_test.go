package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository is a hand-rolled queue.Repository for service tests.
type mockRepository struct {
	enqueueCount int64
	enqueueErr   error
	lastRequest  *EnqueueRequest

	stats    domain.QueueStats
	statsErr error

	cancelCount int64

	failed    []domain.QueueItem
	retryItem *domain.QueueItem
	retryErr  error

	retryAllCount int64
	deleteErr     error
}

func (m *mockRepository) Enqueue(_ context.Context, req EnqueueRequest) (int64, error) {
	m.lastRequest = &req
	return m.enqueueCount, m.enqueueErr
}

func (m *mockRepository) Stats(context.Context) (domain.QueueStats, error) {
	return m.stats, m.statsErr
}

func (m *mockRepository) BackfillStats(context.Context) (domain.QueueStats, error) {
	return m.stats, m.statsErr
}

func (m *mockRepository) CancelBackfill(context.Context, domain.QueueName) (int64, error) {
	return m.cancelCount, nil
}

func (m *mockRepository) ListFailed(context.Context, string, int, int) ([]domain.QueueItem, error) {
	return m.failed, nil
}

func (m *mockRepository) Retry(context.Context, int64) (*domain.QueueItem, error) {
	return m.retryItem, m.retryErr
}

func (m *mockRepository) RetryAll(context.Context, domain.QueueName) (int64, error) {
	return m.retryAllCount, nil
}

func (m *mockRepository) Delete(context.Context, int64) error {
	return m.deleteErr
}

func TestService_Enqueue(t *testing.T) {
	repo := &mockRepository{enqueueCount: 3}
	svc := NewService(repo)

	count, err := svc.Enqueue(context.Background(), EnqueueRequest{
		Queue:    domain.QueueTriage,
		Trigger:  TriggerIDs,
		GmailIDs: []string{"g1", "g2", "g3"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.NotNil(t, repo.lastRequest)
	assert.Equal(t, TriggerIDs, repo.lastRequest.Trigger)
}

func TestService_Enqueue_InvalidRequestNeverReachesRepo(t *testing.T) {
	repo := &mockRepository{}
	svc := NewService(repo)

	_, err := svc.Enqueue(context.Background(), EnqueueRequest{
		Queue:    domain.QueueTriage,
		Trigger:  TriggerSenders,
		Senders:  []string{"a@b.com"},
		GmailIDs: []string{"g1"},
	})
	assert.ErrorIs(t, err, ErrConflictingFilters)
	assert.Nil(t, repo.lastRequest)
}

func TestService_Enqueue_RepoError(t *testing.T) {
	repo := &mockRepository{enqueueErr: errors.New("boom")}
	svc := NewService(repo)

	_, err := svc.Enqueue(context.Background(), EnqueueRequest{
		Queue:    domain.QueueTriage,
		Trigger:  TriggerIDs,
		GmailIDs: []string{"g1"},
	})
	assert.Error(t, err)
}

func TestService_Stats(t *testing.T) {
	repo := &mockRepository{stats: domain.QueueStats{
		domain.QueueTriage: {domain.QueueStatusPending: 5, domain.QueueStatusFailed: 2},
	}}
	svc := NewService(repo)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats[domain.QueueTriage][domain.QueueStatusPending])
}

func TestService_CancelBackfill_InvalidQueue(t *testing.T) {
	svc := NewService(&mockRepository{})

	_, err := svc.CancelBackfill(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidQueue)
}

func TestService_RetryAll_InvalidQueue(t *testing.T) {
	svc := NewService(&mockRepository{})

	_, err := svc.RetryAll(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidQueue)
}

func TestService_Retry_PassesThroughGuardErrors(t *testing.T) {
	repo := &mockRepository{retryErr: ErrJobNotFailed}
	svc := NewService(repo)

	_, err := svc.Retry(context.Background(), 7)
	assert.ErrorIs(t, err, ErrJobNotFailed)
}
