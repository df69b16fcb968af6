package score

import (
	"sort"
	"strings"
)

// SynonymTable maps a canonical metric term to its accepted synonyms.
// Shared read-only; substitute a custom table in tests if needed.
type SynonymTable map[string][]string

// DefaultSynonyms returns the stock synonym table for lending metrics.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		"revenue":          {"sales", "income", "turnover"},
		"profit":           {"earnings", "net income", "profit margin"},
		"debt":             {"liability", "borrowing"},
		"equity":           {"capital", "net worth"},
		"rating":           {"score", "grade"},
		"growth":           {"increase", "expansion"},
		"cibil":            {"credit score", "credit rating"},
		"business vintage": {"vintage", "business age", "company age"},
		"current ratio":    {"liquidity ratio"},
		"pat":              {"profit after tax", "net profit"},
		"debtor days":      {"receivables days", "collection period"},
		"tol/tnw":          {"debt equity", "leverage ratio"},
		"cmr score":        {"cmr", "credit monitoring"},
		"listed":           {"listing status", "public"},
	}
}

// FindMetric resolves a criterion's metric name to a value in a case's
// metric map. Resolution order, first hit wins: exact key, exact
// case-insensitive key, substring containment either direction, synonym
// table. Keys are visited in sorted order so resolution is
// deterministic. Returns false when nothing qualifies; an unmatched
// criterion is excluded from aggregation, never a failure.
func FindMetric(metricName string, metrics map[string]any, synonyms SynonymTable) (any, bool) {
	name := strings.ToLower(metricName)

	if v, ok := metrics[name]; ok {
		return v, true
	}

	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.ToLower(k) == name {
			return metrics[k], true
		}
	}

	for _, k := range keys {
		key := strings.ToLower(k)
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return metrics[k], true
		}
		if similarMetrics(name, key, synonyms) {
			return metrics[k], true
		}
	}

	return nil, false
}

// similarMetrics reports whether two metric names refer to the same
// concept: a canonical term appears in both, or a canonical term
// appears in one and one of its synonyms in the other.
func similarMetrics(a, b string, synonyms SynonymTable) bool {
	for canonical, alts := range synonyms {
		inA := strings.Contains(a, canonical)
		inB := strings.Contains(b, canonical)
		if inA && inB {
			return true
		}
		for _, alt := range alts {
			if (inA && strings.Contains(b, alt)) || (inB && strings.Contains(a, alt)) {
				return true
			}
		}
	}
	return false
}
