package emails

import (
	"context"
	"testing"

	"github.com/devonjones/cortex-gateway/internal/bodystore"
	"github.com/devonjones/cortex-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	counts *domain.EmailCounts
	detail *domain.EmailDetail
}

func (m *mockRepo) List(context.Context, ListFilter) ([]domain.EmailSummary, error) {
	return nil, nil
}

func (m *mockRepo) GetByGmailID(_ context.Context, gmailID string) (*domain.EmailDetail, error) {
	if m.detail == nil || m.detail.GmailID != gmailID {
		return nil, ErrEmailNotFound
	}
	return m.detail, nil
}

func (m *mockRepo) Counts(context.Context) (*domain.EmailCounts, error) {
	return m.counts, nil
}

func (m *mockRepo) ListByLabelID(context.Context, string, int, int) ([]domain.EmailSummary, error) {
	return nil, nil
}

func (m *mockRepo) GetLabel(context.Context, string) (*domain.GmailLabel, error) {
	return nil, ErrEmailNotFound
}

func (m *mockRepo) SenderClassifications(context.Context, string) ([]domain.LabelCount, error) {
	return nil, nil
}

func (m *mockRepo) ClassificationDistribution(context.Context, int) ([]domain.LabelCount, error) {
	return nil, nil
}

func (m *mockRepo) UncategorizedTopSenders(_ context.Context, label string, _ int) ([]domain.SenderCount, error) {
	if label == "" {
		return nil, assert.AnError
	}
	return []domain.SenderCount{{FromAddr: "noisy@example.com", Count: 12}}, nil
}

type mockBodies struct {
	body     *bodystore.Body
	text     string
	hasText  bool
	stats    map[string]interface{}
	err      error
	statsErr error
}

func (m *mockBodies) GetBody(context.Context, string) (*bodystore.Body, error) {
	return m.body, m.err
}

func (m *mockBodies) GetMailText(context.Context, string) (string, bool, error) {
	return m.text, m.hasText, m.err
}

func (m *mockBodies) Stats(context.Context) (map[string]interface{}, error) {
	return m.stats, m.statsErr
}

func TestService_GetBody_Missing(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockBodies{})

	_, err := svc.GetBody(context.Background(), "g1")
	assert.ErrorIs(t, err, ErrBodyNotFound)
}

func TestService_GetBody_UnavailablePropagates(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockBodies{err: bodystore.ErrUnavailable})

	_, err := svc.GetBody(context.Background(), "g1")
	assert.ErrorIs(t, err, bodystore.ErrUnavailable)
}

func TestService_GetText(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockBodies{text: "hello", hasText: true})

	text, err := svc.GetText(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestService_Stats_DegradesWithoutBodyStore(t *testing.T) {
	repo := &mockRepo{counts: &domain.EmailCounts{TotalEmails: 100, ParsedEmails: 90, ClassifiedEmails: 80}}
	svc := NewService(repo, &mockBodies{statsErr: bodystore.ErrUnavailable})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Postgres.TotalEmails)
	assert.Nil(t, stats.BodyStore)
}

func TestService_Stats_IncludesBodyStore(t *testing.T) {
	repo := &mockRepo{counts: &domain.EmailCounts{TotalEmails: 5}}
	svc := NewService(repo, &mockBodies{stats: map[string]interface{}{"bodies": float64(5)}})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stats.BodyStore)
	assert.Equal(t, float64(5), stats.BodyStore["bodies"])
}

func TestService_UncategorizedTopSenders_DefaultsLabel(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockBodies{})

	senders, err := svc.UncategorizedTopSenders(context.Background(), "", 20)
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Equal(t, "noisy@example.com", senders[0].FromAddr)
}
