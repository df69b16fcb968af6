package score

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/kite/internal/domain"
)

// Evaluator scores a single criterion against a case's metrics.
//
// Precedence: special-cased metrics (TOL/TNW, CMR) first, then an
// optional CEL expression, then the interval list, then the
// ratio-vs-benchmark fallback. The first three paths score on the ten
// scale, the fallback on the hundred scale; every MetricScore carries
// its Scale so the aggregator converts explicitly.
type Evaluator struct {
	synonyms SynonymTable
	ratings  map[string]float64

	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEvaluator creates an evaluator with the stock synonym and rating
// tables and a CEL environment for expression criteria.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("metrics", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("value", cel.DynType),
		cel.Variable("value_num", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{
		synonyms: DefaultSynonyms(),
		ratings:  domain.RatingScores,
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// ValidateExpression compiles an expression criterion without caching
// it, so invalid CEL is rejected at criteria-create time.
func (e *Evaluator) ValidateExpression(expr string) error {
	_, err := e.compile(expr)
	return err
}

// ScoreCriterion evaluates one criterion against a case's metrics.
// Returns false when the metric matcher finds no candidate value; the
// caller excludes such criteria from aggregation.
func (e *Evaluator) ScoreCriterion(c *domain.Criterion, metrics map[string]any) (*domain.MetricScore, bool) {
	name := strings.ToLower(c.MetricName)

	actual, ok := FindMetric(name, metrics, e.synonyms)
	if !ok {
		return nil, false
	}

	weight := c.Weight
	if weight <= 0 {
		weight = domain.DefaultWeight
	}

	text, numeric := Normalize(actual)

	var value float64
	scale := domain.ScaleTen

	switch {
	case strings.Contains(name, "tol"):
		// TOL/TNW leverage: full points only below 3, strict.
		if numeric != nil && *numeric < 3 {
			value = 10
		}

	case strings.Contains(name, "cmr"):
		// CMR: full points at 5 and above.
		if numeric != nil && *numeric >= 5 {
			value = 10
		}

	case c.Expression != "":
		value = e.scoreExpression(c.Expression, metrics, actual, numeric)

	case len(c.Intervals) > 0:
		value = scoreFromIntervals(text, numeric, c.Intervals)

	default:
		scale = domain.ScaleHundred
		value = e.ratioScore(actual, c.HardMin, c.LowerIsBetter)
	}

	// The weighted contribution is always on the ten-scale view so one
	// aggregation never mixes units.
	tenValue := value
	if scale == domain.ScaleHundred {
		tenValue = value / 10
	}

	return &domain.MetricScore{
		MetricName:     c.MetricName,
		ActualValue:    actual,
		BenchmarkValue: c.HardMin,
		Score:          round2(value),
		Scale:          scale,
		Weight:         weight,
		WeightedScore:  round2(tenValue * (weight / 100)),
		Status:         statusFor(value, scale),
		Recommendation: metricRecommendation(c.MetricName, value, scale),
	}, true
}

// scoreFromIntervals walks the interval list in declared order and
// returns the first matching rule's score clamped to [0,10]. Order is
// the overlap-resolution contract; the list is never re-sorted.
func scoreFromIntervals(text string, numeric *float64, intervals []domain.IntervalRule) float64 {
	for _, rule := range intervals {
		if MatchesInterval(text, numeric, rule.Interval) {
			return clamp(rule.Score, 0, 10)
		}
	}
	return 0
}

// scoreExpression evaluates a CEL expression criterion. Booleans map to
// 10/0; numeric results are clamped to [0,10]. Compile and evaluation
// errors degrade to 0, never abort the scoring pass.
func (e *Evaluator) scoreExpression(expr string, metrics map[string]any, actual any, numeric *float64) float64 {
	program, err := e.program(expr)
	if err != nil {
		return 0
	}

	var valueNum float64
	if numeric != nil {
		valueNum = *numeric
	}

	out, _, err := program.Eval(map[string]any{
		"metrics":   metrics,
		"value":     actual,
		"value_num": valueNum,
	})
	if err != nil {
		return 0
	}

	return clamp(toScore(out), 0, 10)
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 10.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// program returns the compiled program for an expression, compiling and
// caching it on first use.
func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expr] = program
	e.mu.Unlock()

	return program, nil
}

func (e *Evaluator) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("expression must return bool, int, or double, got %s", outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return program, nil
}

// ratioScore is the fallback for criteria without intervals: map
// actual/benchmark into [0,100] through a piecewise-linear curve with
// breakpoints at ratio 0.8/1.0/1.2, direction-aware. Non-numeric values
// go through the credit-rating table instead.
func (e *Evaluator) ratioScore(actual any, benchmark string, lowerIsBetter bool) float64 {
	actualNum, okA := parseNumeric(fmt.Sprintf("%v", actual))
	benchNum, okB := parseNumeric(benchmark)

	if !okA || !okB {
		return e.categoricalScore(actual, benchmark)
	}
	if benchNum == 0 {
		return 50 // neutral when the benchmark is zero
	}

	ratio := actualNum / benchNum

	var s float64
	if !lowerIsBetter {
		switch {
		case ratio >= 1.2:
			s = 100
		case ratio >= 1.0:
			s = 80 + (ratio-1.0)*100
		case ratio >= 0.8:
			s = 60 + (ratio-0.8)*100
		default:
			s = ratio * 75
		}
	} else {
		switch {
		case ratio <= 0.8:
			s = 100
		case ratio <= 1.0:
			s = 80 + (1.0-ratio)*100
		case ratio <= 1.2:
			s = 60 + (1.2-ratio)*100
		default:
			s = math.Max(0, 60-(ratio-1.2)*50)
		}
	}

	return clamp(s, 0, 100)
}

// categoricalScore compares rating tokens through the rating table.
// Unknown tokens score a neutral 50.
func (e *Evaluator) categoricalScore(actual any, benchmark string) float64 {
	actualScore, ok := e.ratings[strings.ToUpper(strings.TrimSpace(fmt.Sprintf("%v", actual)))]
	if !ok {
		actualScore = 50
	}
	benchScore, ok := e.ratings[strings.ToUpper(strings.TrimSpace(benchmark))]
	if !ok {
		benchScore = 50
	}

	if benchScore > 0 {
		return math.Min(100, actualScore/benchScore*100)
	}
	return 50
}

// statusFor derives the qualitative status from a sub-score. Thresholds
// are 85/70/50 on the hundred scale and 8.5/7.0/5.0 on the ten scale.
func statusFor(value float64, scale domain.Scale) string {
	hundred := value
	if scale == domain.ScaleTen {
		hundred = value * 10
	}

	switch {
	case hundred >= 85:
		return domain.StatusExcellent
	case hundred >= 70:
		return domain.StatusGood
	case hundred >= 50:
		return domain.StatusAverage
	default:
		return domain.StatusPoor
	}
}

func metricRecommendation(metricName string, value float64, scale domain.Scale) string {
	switch statusFor(value, scale) {
	case domain.StatusExcellent:
		return fmt.Sprintf("Excellent %s performance", metricName)
	case domain.StatusGood:
		return fmt.Sprintf("Good %s, meets requirements", metricName)
	case domain.StatusAverage:
		return fmt.Sprintf("Average %s, consider improvement", metricName)
	default:
		return fmt.Sprintf("Poor %s, significant concern", metricName)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
