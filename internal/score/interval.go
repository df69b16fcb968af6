package score

import (
	"regexp"
	"strings"
)

var rangeSplitPattern = regexp.MustCompile(`\s*-\s*`)

// MatchesInterval reports whether a normalized case value satisfies a
// free-text interval specification such as "1000 cr+", "6-12 months",
// "above 500" or "AA-". Categories are tried in priority order and the
// first applicable one decides; once a category is entered there is no
// fallthrough to later ones. Any parse failure inside a category reports
// no-match rather than an error.
func MatchesInterval(text string, numeric *float64, interval string) bool {
	iv := strings.ToLower(strings.TrimSpace(interval))

	// "less than N" comparisons (e.g. TOL/TNW style thresholds).
	if strings.Contains(iv, "less than") && numeric != nil {
		if threshold, ok := firstNumber(iv); ok {
			return *numeric < threshold
		}
	}

	// Time-duration intervals like "6 months and above".
	if strings.Contains(iv, "month") {
		return matchTimeInterval(numeric, iv)
	}

	// Boolean categorical values.
	if iv == "yes" || iv == "no" || text == "yes" || text == "no" {
		return text == iv
	}

	// Credit-rating-like tokens (AA-, BBB, A+ ...).
	if len(iv) <= 3 && containsRatingLetter(iv) {
		return strings.EqualFold(text, iv)
	}

	// Numeric intervals.
	if numeric != nil {
		return matchNumericInterval(*numeric, iv)
	}

	// Fallback: exact string equality.
	return text == iv
}

// matchTimeInterval matches duration intervals. The threshold is the
// first number in the interval text; keywords decide the comparison.
func matchTimeInterval(numeric *float64, iv string) bool {
	threshold, ok := firstNumber(iv)
	if !ok || numeric == nil {
		return false
	}

	switch {
	case strings.Contains(iv, "above") || strings.Contains(iv, "+"):
		return *numeric >= threshold
	case strings.Contains(iv, "below") || strings.Contains(iv, "under"):
		return *numeric < threshold
	case strings.Contains(iv, "between") || strings.Contains(iv, "-"):
		bounds := numberPattern.FindAllString(iv, 2)
		if len(bounds) < 2 {
			return false
		}
		lo, okLo := parseNumeric(bounds[0])
		hi, okHi := parseNumeric(bounds[1])
		return okLo && okHi && lo <= *numeric && *numeric <= hi
	default:
		return *numeric == threshold
	}
}

// matchNumericInterval matches numeric intervals like "1000 cr+",
// "800 - 999" or "above 500" after stripping unit suffixes.
func matchNumericInterval(value float64, iv string) bool {
	clean := iv
	for _, tok := range []string{"crore", "cr"} {
		clean = strings.ReplaceAll(clean, tok, "")
	}
	clean = strings.TrimSpace(strings.ReplaceAll(clean, ",", ""))

	switch {
	case strings.Contains(clean, "above"):
		threshold, ok := firstNumber(clean)
		return ok && value > threshold

	case strings.Contains(clean, "below"):
		threshold, ok := firstNumber(clean)
		return ok && value < threshold

	case strings.Contains(clean, "+"):
		// "1000+" means >= 1000, inclusive open-ended.
		threshold, ok := parseNumeric(strings.ReplaceAll(clean, "+", ""))
		return ok && value >= threshold

	case strings.Contains(clean, "-") && !strings.HasPrefix(clean, "-"):
		// "800 - 999" and "760-799" are inclusive ranges.
		parts := rangeSplitPattern.Split(clean, -1)
		if len(parts) != 2 {
			return false
		}
		lo, okLo := parseNumeric(parts[0])
		hi, okHi := parseNumeric(parts[1])
		return okLo && okHi && lo <= value && value <= hi

	default:
		threshold, ok := parseNumeric(clean)
		return ok && value == threshold
	}
}

func containsRatingLetter(iv string) bool {
	upper := strings.ToUpper(iv)
	return strings.ContainsAny(upper, "ABCD")
}
