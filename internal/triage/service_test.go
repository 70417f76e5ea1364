package triage

import (
	"context"
	"testing"

	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/devonjones/cortex-gateway/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockQueueRepo struct {
	lastRequest *queue.EnqueueRequest
	count       int64
}

func (m *mockQueueRepo) Enqueue(_ context.Context, req queue.EnqueueRequest) (int64, error) {
	m.lastRequest = &req
	return m.count, nil
}

func (m *mockQueueRepo) Stats(context.Context) (domain.QueueStats, error)         { return nil, nil }
func (m *mockQueueRepo) BackfillStats(context.Context) (domain.QueueStats, error) { return nil, nil }
func (m *mockQueueRepo) CancelBackfill(context.Context, domain.QueueName) (int64, error) {
	return 0, nil
}
func (m *mockQueueRepo) ListFailed(context.Context, string, int, int) ([]domain.QueueItem, error) {
	return nil, nil
}
func (m *mockQueueRepo) Retry(context.Context, int64) (*domain.QueueItem, error) { return nil, nil }
func (m *mockQueueRepo) RetryAll(context.Context, domain.QueueName) (int64, error) {
	return 0, nil
}
func (m *mockQueueRepo) Delete(context.Context, int64) error { return nil }

type mockTriageRepo struct {
	stats *Stats
}

func (m *mockTriageRepo) Stats(context.Context) (*Stats, error) { return m.stats, nil }
func (m *mockTriageRepo) ListClassifications(context.Context, ClassificationFilter) ([]domain.Classification, error) {
	return nil, nil
}

func TestService_Rerun_TriggerSelection(t *testing.T) {
	tests := []struct {
		name string
		req  RerunRequest
		want queue.TriggerKind
	}{
		{"ids", RerunRequest{GmailIDs: []string{"g1"}}, queue.TriggerIDs},
		{"senders", RerunRequest{Senders: []string{"*@spam.com"}}, queue.TriggerSenders},
		{"label", RerunRequest{Label: "Cortex/Uncategorized"}, queue.TriggerLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queueRepo := &mockQueueRepo{count: 2}
			svc := NewService(&mockTriageRepo{}, queue.NewService(queueRepo))

			count, err := svc.Rerun(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
			require.NotNil(t, queueRepo.lastRequest)
			assert.Equal(t, tt.want, queueRepo.lastRequest.Trigger)
			assert.Equal(t, domain.QueueTriage, queueRepo.lastRequest.Queue)
		})
	}
}

func TestService_Rerun_ConflictingFilters(t *testing.T) {
	queueRepo := &mockQueueRepo{}
	svc := NewService(&mockTriageRepo{}, queue.NewService(queueRepo))

	_, err := svc.Rerun(context.Background(), RerunRequest{
		GmailIDs: []string{"g1"},
		Label:    "Cortex/Uncategorized",
	})
	assert.ErrorIs(t, err, queue.ErrConflictingFilters)
	assert.Nil(t, queueRepo.lastRequest)
}

func TestService_Rerun_NoFilter(t *testing.T) {
	svc := NewService(&mockTriageRepo{}, queue.NewService(&mockQueueRepo{}))

	_, err := svc.Rerun(context.Background(), RerunRequest{})
	assert.ErrorIs(t, err, queue.ErrNoFilter)
}

func TestService_ListClassifications_ClampsLimit(t *testing.T) {
	repo := &mockTriageRepo{}
	svc := NewService(repo, queue.NewService(&mockQueueRepo{}))

	_, err := svc.ListClassifications(context.Background(), ClassificationFilter{Limit: 10000})
	assert.NoError(t, err)
}
