package score

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kite/internal/domain"
)

// Input validation sentinels for the service boundary. Run itself is
// total: scoring an empty case list produces an all-zero summary. The
// API and worker reject empty inputs up front with these errors because
// an empty scoring request is meaningless to the caller.
var (
	ErrNoCriteria = errors.New("no criteria to score against")
	ErrNoCases    = errors.New("no cases to score")
)

// Scorer runs the aggregator over a batch of cases and computes the
// cross-case summary.
type Scorer struct {
	agg *Aggregator
}

// NewScorer creates a batch scorer.
func NewScorer(agg *Aggregator) *Scorer {
	return &Scorer{agg: agg}
}

// New constructs the full engine stack with stock configuration.
func New() (*Scorer, error) {
	eval, err := NewEvaluator()
	if err != nil {
		return nil, err
	}
	return NewScorer(NewAggregator(eval)), nil
}

// Evaluator exposes the underlying evaluator, used for expression
// validation at the API boundary.
func (s *Scorer) Evaluator() *Evaluator {
	return s.agg.eval
}

// ValidateInput checks a scoring request at the service boundary.
func ValidateInput(criteria []*domain.Criterion, cases []*domain.CaseRecord) error {
	if len(criteria) == 0 {
		return ErrNoCriteria
	}
	if len(cases) == 0 {
		return ErrNoCases
	}
	return nil
}

// Run scores every case against the criteria set and returns a fresh
// Analysis. Results keep input order; downstream trend consumers rely
// on it. The analysis ID and timestamp are new per invocation, even for
// identical inputs.
func (s *Scorer) Run(ctx context.Context, tenantID string, criteria []*domain.Criterion, cases []*domain.CaseRecord) *domain.Analysis {
	analysis := &domain.Analysis{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Results:   make([]domain.CaseResult, 0, len(cases)),
		CreatedAt: time.Now().UTC(),
	}

	for _, rec := range cases {
		select {
		case <-ctx.Done():
			// Scoring is pure and fast; honor cancellation between
			// cases only.
			return analysis
		default:
		}
		analysis.Results = append(analysis.Results, s.agg.EvaluateCase(rec, criteria))
	}

	analysis.Summary = summarize(analysis.Results)
	return analysis
}

// summarize computes percentage statistics and eligibility bucket
// counts. Zero cases yield the zero summary, not an error.
func summarize(results []domain.CaseResult) domain.BatchSummary {
	summary := domain.BatchSummary{TotalCases: len(results)}
	if len(results) == 0 {
		return summary
	}

	var sum float64
	summary.HighestScore = results[0].Percentage
	summary.LowestScore = results[0].Percentage

	for _, r := range results {
		sum += r.Percentage
		if r.Percentage > summary.HighestScore {
			summary.HighestScore = r.Percentage
		}
		if r.Percentage < summary.LowestScore {
			summary.LowestScore = r.Percentage
		}

		switch r.EligibilityStatus {
		case domain.EligibilityEligible:
			summary.EligibleCases++
		case domain.EligibilityReview:
			summary.ReviewCases++
		default:
			summary.RejectedCases++
		}
	}

	summary.AverageScore = round2(sum / float64(len(results)))
	return summary
}
