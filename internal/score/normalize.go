// Package score implements the criteria-interval scoring engine.
//
// The engine is a pure, synchronous computation: criteria and cases go
// in, an Analysis comes out. It holds no cross-call state beyond
// immutable configuration (synonym table, threshold tables) and a
// compiled-expression cache, so concurrent invocations on independent
// inputs need no coordination.
package score

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// numberPattern extracts the first decimal number from a string.
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// unitTokens are magnitude suffixes stripped before numeric extraction.
// Longest token first so "crore" is not mangled by "cr".
var unitTokens = []string{"crore", "cr", "months", "month"}

// Normalize coerces a raw case value into comparable forms: the trimmed
// lower-cased text, and a numeric magnitude when one can be extracted
// ("1500 cr" -> 1500, "8 months" -> 8). A nil numeric is a valid
// outcome, not an error; the categorical path is tried instead.
func Normalize(raw any) (string, *float64) {
	text := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", raw)))

	cleaned := text
	for _, tok := range unitTokens {
		cleaned = strings.ReplaceAll(cleaned, tok, "")
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	match := numberPattern.FindString(cleaned)
	if match == "" {
		return text, nil
	}

	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return text, nil
	}
	return text, &n
}

// firstNumber extracts the first decimal number from s.
func firstNumber(s string) (float64, bool) {
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseNumeric parses a whole string as a number after stripping
// thousands separators. Unlike firstNumber it rejects trailing text.
func parseNumeric(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, ",", "")), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
