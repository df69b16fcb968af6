package domain

import "time"

// Criterion defines a single eligibility criterion extracted from a
// criteria sheet. Scoring is driven by the ordered interval list; an
// optional CEL expression may be supplied instead for criteria that do
// not fit the interval grammar.
type Criterion struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`

	// MetricName is the sheet label of the metric (e.g. "Revenue",
	// "CIBIL Score"). Matching against case metrics is fuzzy.
	MetricName string `json:"metricName"`

	// Weight is the percentage contribution of this criterion to the
	// overall score. Weights are not required to sum to 100 across a
	// criteria set; aggregation normalizes by the total matched weight.
	Weight float64 `json:"weight"`

	// Intervals are evaluated in declared order, first match wins.
	// Order is the contract: the engine never re-sorts by threshold.
	Intervals []IntervalRule `json:"scoringIntervals,omitempty"`

	// HardMin is the benchmark used by the ratio fallback when no
	// intervals are defined. May be numeric or a rating string.
	HardMin string `json:"minValue,omitempty"`

	// Expression is an optional CEL expression over the case metrics.
	// It takes precedence over Intervals when present.
	Expression string `json:"expression,omitempty"`

	// LowerIsBetter flips the direction of the ratio fallback for
	// metrics where smaller values are healthier (debt ratios, debtor
	// days). Zero value means higher is better.
	LowerIsBetter bool `json:"lowerIsBetter,omitempty"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// IntervalRule maps a free-text interval specification to a score.
// The interval text is interpreted at evaluation time because the same
// text may match differently depending on the case value's type.
type IntervalRule struct {
	Interval string  `json:"interval"`
	Score    float64 `json:"score"`
}

// DefaultWeight is applied when a criterion arrives without a usable
// weight. Spreadsheet sourcing is heterogeneous; a missing weight is a
// tolerated malformation, not an error.
const DefaultWeight = 10.0
