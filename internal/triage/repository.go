// Package triage provides HTTP handlers and business logic for classification
// visibility and re-triage triggers.
package triage

import (
	"context"

	"github.com/devonjones/cortex-gateway/internal/domain"
)

// Stats aggregates classification activity for the dashboard.
type Stats struct {
	ByClassifier []domain.ClassifierCount `json:"by_classifier"`
	RecentHourly []domain.HourlyCount     `json:"recent_hourly"`
	Methods      map[string]int64         `json:"methods"`
}

// ClassificationFilter narrows classification listings.
type ClassificationFilter struct {
	Label  string
	Action string
	Limit  int
	Offset int
}

// Repository defines data access for classification queries.
type Repository interface {
	Stats(ctx context.Context) (*Stats, error)
	ListClassifications(ctx context.Context, filter ClassificationFilter) ([]domain.Classification, error)
}
