package score

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-finance/kite/internal/domain"
)

// Aggregator runs the evaluator over all criteria for one case and
// produces the case verdict.
type Aggregator struct {
	eval *Evaluator
}

// NewAggregator creates a case aggregator.
func NewAggregator(eval *Evaluator) *Aggregator {
	return &Aggregator{eval: eval}
}

// bandTable maps descending score thresholds to labels. Bands are
// checked in order, first satisfied threshold wins.
type bandTable []struct {
	min   float64
	label string
}

func (t bandTable) pick(value float64, fallback string) string {
	for _, band := range t {
		if value >= band.min {
			return band.label
		}
	}
	return fallback
}

var (
	gradeBands = bandTable{
		{90, "A+"}, {85, "A"}, {80, "B+"}, {75, "B"},
		{70, "C+"}, {65, "C"}, {60, "D"},
	}
	recommendationBands = bandTable{
		{80, domain.RecommendApprove}, {65, domain.RecommendReview},
	}
	riskBands = bandTable{
		{75, domain.RiskLow}, {50, domain.RiskMedium},
	}
	eligibilityBands = bandTable{
		{80, domain.EligibilityEligible}, {60, domain.EligibilityReview},
	}
)

// EvaluateCase scores one case against a criteria set.
//
// Two distinct score views are produced on purpose: Percentage gives
// every criterion equal credit (sum of ten-scale sub-scores over
// 10 * criteria count) and drives eligibility; OverallScore is weight
// adjusted (weighted sum over total matched weight) and drives grade,
// recommendation and risk. Criteria whose metric cannot be matched are
// logged and skipped, contributing neither weight nor score.
func (a *Aggregator) EvaluateCase(rec *domain.CaseRecord, criteria []*domain.Criterion) domain.CaseResult {
	result := domain.CaseResult{
		CaseID:   rec.CaseID,
		CaseName: rec.Name(),
	}

	var totalScore, totalWeighted, totalWeight float64

	for _, c := range criteria {
		ms, ok := a.eval.ScoreCriterion(c, rec.Metrics)
		if !ok {
			slog.Debug("no matching metric for criterion",
				"case_id", rec.CaseID,
				"metric", c.MetricName,
			)
			continue
		}

		totalScore += tenScale(ms)
		totalWeighted += ms.WeightedScore
		totalWeight += ms.Weight

		result.MetricScores = append(result.MetricScores, *ms)
	}

	result.TotalScore = round2(totalScore)
	result.MaxPossibleScore = float64(10 * len(criteria))
	if result.MaxPossibleScore > 0 {
		result.Percentage = round2(totalScore / result.MaxPossibleScore * 100)
	}
	if totalWeight > 0 {
		result.OverallScore = round2(totalWeighted / totalWeight * 100)
	}

	result.Grade = gradeBands.pick(result.OverallScore, "F")
	result.Recommendation = recommendationBands.pick(result.OverallScore, domain.RecommendReject)
	result.RiskLevel = riskBands.pick(result.OverallScore, domain.RiskHigh)
	result.EligibilityStatus = eligibilityBands.pick(result.Percentage, domain.EligibilityNotEligible)

	result.Strengths, result.Weaknesses = analyzePerformance(result.MetricScores)

	return result
}

// analyzePerformance derives the strengths and weaknesses lists from
// per-metric hundred-scale scores, in evaluation order, capped at 5
// entries each.
func analyzePerformance(scores []domain.MetricScore) (strengths, weaknesses []string) {
	var sum float64

	for _, ms := range scores {
		hundred := hundredScale(&ms)
		sum += hundred

		name := titleCase(ms.MetricName)
		if hundred >= 85 {
			strengths = append(strengths, fmt.Sprintf("Strong %s (%.1f/100)", name, hundred))
		} else if hundred < 50 {
			weaknesses = append(weaknesses, fmt.Sprintf("Weak %s (%.1f/100)", name, hundred))
		}
	}

	if len(scores) > 0 {
		mean := sum / float64(len(scores))
		if mean >= 80 {
			strengths = append(strengths, "Overall strong financial profile")
		} else if mean < 60 {
			weaknesses = append(weaknesses, "Overall financial profile needs improvement")
		}
	}

	return capList(strengths, 5), capList(weaknesses, 5)
}

// tenScale returns the sub-score on the ten scale.
func tenScale(ms *domain.MetricScore) float64 {
	if ms.Scale == domain.ScaleHundred {
		return ms.Score / 10
	}
	return ms.Score
}

// hundredScale returns the sub-score on the hundred scale.
func hundredScale(ms *domain.MetricScore) float64 {
	if ms.Scale == domain.ScaleTen {
		return ms.Score * 10
	}
	return ms.Score
}

func capList(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

// titleCase upper-cases the first letter of each word, matching the
// display form used in strengths/weaknesses.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
