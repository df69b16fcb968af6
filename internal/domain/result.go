package domain

import "time"

// Scale identifies which scoring scale a MetricScore is expressed on.
// Interval, special-rule and expression scoring produce ten-scale
// scores; the ratio fallback produces hundred-scale scores. The
// aggregator converts before summing so the two never mix implicitly.
type Scale string

const (
	ScaleTen     Scale = "ten"
	ScaleHundred Scale = "hundred"
)

// MetricScore is the result of evaluating one criterion against one case.
type MetricScore struct {
	MetricName     string  `json:"metricName"`
	ActualValue    any     `json:"actualValue"`
	BenchmarkValue string  `json:"benchmarkValue,omitempty"`
	Score          float64 `json:"score"`
	Scale          Scale   `json:"scale"`
	Weight         float64 `json:"weight"`
	WeightedScore  float64 `json:"weightedScore"`
	Status         string  `json:"status"`
	Recommendation string  `json:"recommendation"`
}

// Metric status values, derived from the sub-score.
const (
	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusAverage   = "average"
	StatusPoor      = "poor"
)

// CaseResult is the full verdict for one case.
type CaseResult struct {
	CaseID   string `json:"caseId"`
	CaseName string `json:"caseName,omitempty"`

	// OverallScore is weight-adjusted (0-100): sum of weighted scores
	// over the total weight of matched criteria. Drives grade,
	// recommendation and risk level.
	OverallScore float64 `json:"overallScore"`

	// Percentage is equal-credit (0-100): sum of ten-scale sub-scores
	// over 10 * criteria count. Drives the eligibility status and the
	// batch summary. Both views are deliberately exposed.
	Percentage float64 `json:"percentage"`

	TotalScore       float64 `json:"totalScore"`
	MaxPossibleScore float64 `json:"maxPossibleScore"`

	Grade             string `json:"grade"`
	Recommendation    string `json:"recommendation"`
	RiskLevel         string `json:"riskLevel"`
	EligibilityStatus string `json:"eligibilityStatus"`

	MetricScores []MetricScore `json:"metricScores"`
	Strengths    []string      `json:"strengths"`
	Weaknesses   []string      `json:"weaknesses"`
}

// Case recommendation values.
const (
	RecommendApprove = "Approve"
	RecommendReview  = "Review"
	RecommendReject  = "Reject"
)

// Risk levels.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Eligibility buckets, derived from Percentage.
const (
	EligibilityEligible    = "Eligible"
	EligibilityReview      = "Review Required"
	EligibilityNotEligible = "Not Eligible"
)

// BatchSummary aggregates percentage statistics over one scoring run.
type BatchSummary struct {
	TotalCases    int     `json:"totalCases"`
	AverageScore  float64 `json:"averageScore"`
	HighestScore  float64 `json:"highestScore"`
	LowestScore   float64 `json:"lowestScore"`
	EligibleCases int     `json:"eligibleCases"`
	ReviewCases   int     `json:"reviewCases"`
	RejectedCases int     `json:"rejectedCases"`
}

// Analysis is the complete output of one batch scoring run. Immutable
// once computed; the ID and timestamp are fresh per invocation even for
// identical inputs.
type Analysis struct {
	ID        string       `json:"analysisId"`
	TenantID  string       `json:"tenantId,omitempty"`
	Results   []CaseResult `json:"results"`
	Summary   BatchSummary `json:"summary"`
	CreatedAt time.Time    `json:"createdAt"`
}

// RatingScores maps credit-rating tokens to hundred-scale scores for the
// categorical ratio fallback. Read-only configuration data.
var RatingScores = map[string]float64{
	"AAA": 100, "AA+": 95, "AA": 90, "AA-": 85,
	"A+": 80, "A": 75, "A-": 70,
	"BBB+": 65, "BBB": 60, "BBB-": 55,
	"BB+": 50, "BB": 45, "BB-": 40,
	"B+": 35, "B": 30, "B-": 25,
	"CCC": 20, "CC": 15, "C": 10, "D": 5,
}
