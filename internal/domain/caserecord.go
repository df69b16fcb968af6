package domain

// CaseRecord is one loan-applicant case to be assessed. Metric keys are
// spreadsheet-derived labels with no fixed vocabulary; values are
// already coerced to number-or-string by the extraction layer.
type CaseRecord struct {
	CaseID   string         `json:"caseId"`
	CaseName string         `json:"caseName,omitempty"`
	Metrics  map[string]any `json:"metrics"`
}

// Name returns the display name of the case, falling back to its ID.
func (c *CaseRecord) Name() string {
	if c.CaseName != "" {
		return c.CaseName
	}
	return c.CaseID
}
