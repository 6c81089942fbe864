package evaluator

import (
	"github.com/spigell/expansion-evaluator/internal/criteria"
)

type Result string

const (
	Qualified   Result = "qualified"
	Unqualified Result = "unqualified"
)

// CollectionFailure explains why a store's evidence is missing from a report.
type CollectionFailure struct {
	Store string `json:"store"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Report is the outcome of one evaluation. It is built once and never
// modified; Redacted returns a reduced copy.
type Report struct {
	Result             Result                          `json:"result"`
	ConfidenceScore    float64                         `json:"confidence_score"`
	CriteriaMet        map[criteria.ID]bool            `json:"criteria_met"`
	CriteriaAnalysis   map[criteria.ID]criteria.Result `json:"criteria_analysis"`
	Reasons            []string                        `json:"reasons"`
	Recommendations    []string                        `json:"recommendations"`
	ProductAnalysis    *criteria.ProductAnalysis       `json:"product_analysis,omitempty"`
	CollectionFailures []CollectionFailure             `json:"collection_failures,omitempty"`
}

// Redacted returns a copy without detailed analysis: product matching details
// and per-store evidence are dropped, verdicts and summaries are kept.
func (r *Report) Redacted() *Report {
	if r == nil {
		return nil
	}

	out := *r
	out.ProductAnalysis = nil
	out.CriteriaMet = make(map[criteria.ID]bool, len(r.CriteriaMet))
	for id, met := range r.CriteriaMet {
		out.CriteriaMet[id] = met
	}

	out.CriteriaAnalysis = make(map[criteria.ID]criteria.Result, len(r.CriteriaAnalysis))
	for id, result := range r.CriteriaAnalysis {
		result.MainStoreEvidence = nil
		result.ExpansionStoreEvidence = nil
		out.CriteriaAnalysis[id] = result
	}

	out.Reasons = append([]string(nil), r.Reasons...)
	out.Recommendations = append([]string(nil), r.Recommendations...)
	out.CollectionFailures = append([]CollectionFailure(nil), r.CollectionFailures...)

	return &out
}
