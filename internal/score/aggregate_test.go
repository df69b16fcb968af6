package score

import (
	"strings"
	"testing"

	"github.com/opensource-finance/kite/internal/domain"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(newTestEvaluator(t))
}

func revenueCriterion(weight float64) *domain.Criterion {
	return &domain.Criterion{
		MetricName: "Revenue",
		Weight:     weight,
		Intervals: []domain.IntervalRule{
			{Interval: "1000+", Score: 10},
			{Interval: "500-999", Score: 6},
			{Interval: "0-499", Score: 2},
		},
	}
}

func TestEvaluateCaseSingleCriterion(t *testing.T) {
	agg := newTestAggregator(t)

	rec := &domain.CaseRecord{
		CaseID:   "case-1",
		CaseName: "Acme Traders",
		Metrics:  map[string]any{"revenue": 750},
	}

	result := agg.EvaluateCase(rec, []*domain.Criterion{revenueCriterion(20)})

	if len(result.MetricScores) != 1 {
		t.Fatalf("expected 1 metric score, got %d", len(result.MetricScores))
	}
	ms := result.MetricScores[0]
	if ms.Score != 6 {
		t.Errorf("expected sub-score 6, got %v", ms.Score)
	}
	if ms.WeightedScore != 1.2 {
		t.Errorf("expected weighted score 1.2, got %v", ms.WeightedScore)
	}

	// Weight-normalized view: 1.2 / 20 * 100.
	if result.OverallScore != 6 {
		t.Errorf("expected overall score 6, got %v", result.OverallScore)
	}
	// Equal-credit view: 6 / 10 * 100.
	if result.Percentage != 60 {
		t.Errorf("expected percentage 60, got %v", result.Percentage)
	}
	if result.TotalScore != 6 {
		t.Errorf("expected total score 6, got %v", result.TotalScore)
	}
	if result.MaxPossibleScore != 10 {
		t.Errorf("expected max possible score 10, got %v", result.MaxPossibleScore)
	}

	if result.Grade != "F" {
		t.Errorf("expected grade F, got %s", result.Grade)
	}
	if result.Recommendation != domain.RecommendReject {
		t.Errorf("expected %s, got %s", domain.RecommendReject, result.Recommendation)
	}
	if result.RiskLevel != domain.RiskHigh {
		t.Errorf("expected %s risk, got %s", domain.RiskHigh, result.RiskLevel)
	}
	if result.EligibilityStatus != domain.EligibilityReview {
		t.Errorf("expected %s, got %s", domain.EligibilityReview, result.EligibilityStatus)
	}
}

func TestEvaluateCaseStrongProfile(t *testing.T) {
	agg := newTestAggregator(t)

	rec := &domain.CaseRecord{
		CaseID:  "case-2",
		Metrics: map[string]any{"revenue": 5000, "pat margin": 18},
	}

	criteria := []*domain.Criterion{
		revenueCriterion(20),
		{
			MetricName: "PAT Margin",
			Weight:     15,
			Intervals:  []domain.IntervalRule{{Interval: "15+", Score: 10}},
		},
	}

	result := agg.EvaluateCase(rec, criteria)

	// Both criteria score 10/10, so the weight-normalized view tops out:
	// (10*0.2 + 10*0.15) / 35 * 100.
	if result.OverallScore != 10 {
		t.Errorf("expected overall score 10, got %v", result.OverallScore)
	}
	if result.Percentage != 100 {
		t.Errorf("expected percentage 100, got %v", result.Percentage)
	}
	if result.EligibilityStatus != domain.EligibilityEligible {
		t.Errorf("expected %s, got %s", domain.EligibilityEligible, result.EligibilityStatus)
	}

	// Both metrics hit 100 on the hundred scale, plus the overall note.
	if len(result.Strengths) != 3 {
		t.Fatalf("expected 3 strengths, got %d: %v", len(result.Strengths), result.Strengths)
	}
	if result.Strengths[0] != "Strong Revenue (100.0/100)" {
		t.Errorf("unexpected strength entry: %s", result.Strengths[0])
	}
	if result.Strengths[2] != "Overall strong financial profile" {
		t.Errorf("expected overall note last, got %s", result.Strengths[2])
	}
	if len(result.Weaknesses) != 0 {
		t.Errorf("expected no weaknesses, got %v", result.Weaknesses)
	}
}

func TestEvaluateCaseUnmatchedCriterionPenalizesPercentage(t *testing.T) {
	agg := newTestAggregator(t)

	rec := &domain.CaseRecord{
		CaseID:  "case-3",
		Metrics: map[string]any{"revenue": 2000},
	}

	criteria := []*domain.Criterion{
		revenueCriterion(20),
		{MetricName: "Export Share", Weight: 10, Intervals: []domain.IntervalRule{{Interval: "50+", Score: 10}}},
	}

	result := agg.EvaluateCase(rec, criteria)

	if len(result.MetricScores) != 1 {
		t.Fatalf("expected 1 matched metric, got %d", len(result.MetricScores))
	}
	// Unmatched criteria still count in the equal-credit denominator.
	if result.MaxPossibleScore != 20 {
		t.Errorf("expected max possible 20, got %v", result.MaxPossibleScore)
	}
	if result.Percentage != 50 {
		t.Errorf("expected percentage 50, got %v", result.Percentage)
	}
	// But not in the weight-normalized view: 2 / 20 * 100.
	if result.OverallScore != 10 {
		t.Errorf("expected overall score 10, got %v", result.OverallScore)
	}
}

func TestEvaluateCaseNoCriteria(t *testing.T) {
	agg := newTestAggregator(t)

	rec := &domain.CaseRecord{CaseID: "case-4", Metrics: map[string]any{"revenue": 100}}
	result := agg.EvaluateCase(rec, nil)

	if result.OverallScore != 0 || result.Percentage != 0 {
		t.Errorf("expected zero scores, got overall=%v percentage=%v", result.OverallScore, result.Percentage)
	}
	if result.Grade != "F" {
		t.Errorf("expected grade F, got %s", result.Grade)
	}
	if result.EligibilityStatus != domain.EligibilityNotEligible {
		t.Errorf("expected %s, got %s", domain.EligibilityNotEligible, result.EligibilityStatus)
	}
}

func TestEvaluateCaseMixedScalesAggregateOnTen(t *testing.T) {
	agg := newTestAggregator(t)

	rec := &domain.CaseRecord{
		CaseID:  "case-5",
		Metrics: map[string]any{"revenue": 750, "current ratio": 120},
	}

	criteria := []*domain.Criterion{
		revenueCriterion(20),
		// No intervals: ratio fallback on the hundred scale.
		{MetricName: "Current Ratio", Weight: 10, HardMin: "100"},
	}

	result := agg.EvaluateCase(rec, criteria)

	// Revenue 6/10 plus ratio 100/100 converted to 10/10.
	if result.TotalScore != 16 {
		t.Errorf("expected total score 16, got %v", result.TotalScore)
	}
	if result.Percentage != 80 {
		t.Errorf("expected percentage 80, got %v", result.Percentage)
	}
	// Weighted on the ten scale: (6*0.2 + 10*0.1) / 30 * 100.
	if result.OverallScore != 7.33 {
		t.Errorf("expected overall score 7.33, got %v", result.OverallScore)
	}
}

func TestAnalyzePerformanceCaps(t *testing.T) {
	var scores []domain.MetricScore
	for _, name := range []string{"revenue", "pat margin", "roce", "current ratio", "cibil", "vintage", "growth"} {
		scores = append(scores, domain.MetricScore{
			MetricName: name,
			Score:      10,
			Scale:      domain.ScaleTen,
		})
	}

	strengths, weaknesses := analyzePerformance(scores)

	if len(strengths) != 5 {
		t.Errorf("expected strengths capped at 5, got %d", len(strengths))
	}
	if len(weaknesses) != 0 {
		t.Errorf("expected no weaknesses, got %v", weaknesses)
	}
	for _, s := range strengths {
		if !strings.HasPrefix(s, "Strong ") {
			t.Errorf("unexpected strength format: %s", s)
		}
	}
}

func TestTitleCase(t *testing.T) {
	if got := titleCase("pat margin"); got != "Pat Margin" {
		t.Errorf("expected 'Pat Margin', got %q", got)
	}
	if got := titleCase("REVENUE"); got != "Revenue" {
		t.Errorf("expected 'Revenue', got %q", got)
	}
}
