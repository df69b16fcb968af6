// Package trend provides score-over-time calculations for cases.
package trend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kite/internal/domain"
)

// ErrNoHistory is returned when no stored analyses mention the case.
var ErrNoHistory = errors.New("no scoring history for case")

// Service derives trends from stored analyses.
type Service struct {
	repo domain.Repository
}

// NewService creates a new trend service.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// Point is one case observation taken from a stored analysis.
type Point struct {
	AnalysisID     string    `json:"analysisId"`
	OverallScore   float64   `json:"overallScore"`
	Percentage     float64   `json:"percentage"`
	Grade          string    `json:"grade"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp"`
}

// CaseTrend is the score trajectory of one case across analyses.
type CaseTrend struct {
	CaseID    string  `json:"caseId"`
	CaseName  string  `json:"caseName"`
	Points    []Point `json:"points"`
	Direction string  `json:"direction"`
	Delta     float64 `json:"delta"`
}

// Trend directions. A case is stable when the overall score moved less
// than one point between the first and last observation.
const (
	DirectionImproving = "improving"
	DirectionDeclining = "declining"
	DirectionStable    = "stable"
)

// CaseTrend returns the case's score trajectory within the window,
// oldest observation first.
func (s *Service) CaseTrend(ctx context.Context, tenantID, caseID string, window time.Duration) (*CaseTrend, error) {
	if tenantID == "" || caseID == "" {
		return nil, fmt.Errorf("tenantID and caseID are required")
	}

	since := time.Now().UTC().Add(-window)
	analyses, err := s.repo.ListAnalyses(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	trend := &CaseTrend{CaseID: caseID}
	for _, analysis := range analyses {
		for _, result := range analysis.Results {
			if result.CaseID != caseID {
				continue
			}
			trend.CaseName = result.CaseName
			trend.Points = append(trend.Points, Point{
				AnalysisID:     analysis.ID,
				OverallScore:   result.OverallScore,
				Percentage:     result.Percentage,
				Grade:          result.Grade,
				Recommendation: result.Recommendation,
				Timestamp:      analysis.CreatedAt,
			})
		}
	}

	if len(trend.Points) == 0 {
		return nil, ErrNoHistory
	}

	trend.Delta = trend.Points[len(trend.Points)-1].OverallScore - trend.Points[0].OverallScore
	switch {
	case trend.Delta >= 1:
		trend.Direction = DirectionImproving
	case trend.Delta <= -1:
		trend.Direction = DirectionDeclining
	default:
		trend.Direction = DirectionStable
	}

	return trend, nil
}

// RunCount returns how many analyses the tenant ran within the window.
func (s *Service) RunCount(ctx context.Context, tenantID string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	since := time.Now().UTC().Add(-window)
	analyses, err := s.repo.ListAnalyses(ctx, tenantID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list analyses: %w", err)
	}

	return int64(len(analyses)), nil
}
