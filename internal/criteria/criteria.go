// Package criteria implements the qualification rules an expansion store is
// checked against. Every criterion is a pure function of the two stores'
// evidence and never fails: missing or malformed evidence makes it unmet and
// is recorded in the result.
package criteria

import (
	"github.com/spigell/expansion-evaluator/internal/evidence"
)

// ID names a criterion in reports.
type ID string

const (
	BrandExtension            ID = "brand_extension"
	BrandingIdentical         ID = "branding_identical"
	ProductsIdentical         ID = "products_identical"
	B2BQualified              ID = "b2b_qualified"
	LanguageCurrencyDifferent ID = "language_currency_different"
)

// Result is the verdict of a single criterion.
type Result struct {
	CriterionID            ID             `json:"criterion_id"`
	Met                    bool           `json:"met"`
	Summary                string         `json:"summary"`
	MainStoreEvidence      map[string]any `json:"main_store_evidence,omitempty"`
	ExpansionStoreEvidence map[string]any `json:"expansion_store_evidence,omitempty"`
	EvaluationDetails      map[string]any `json:"evaluation_details"`
}

// Criterion is a single qualification rule.
type Criterion interface {
	ID() ID
	Evaluate(main, expansion *evidence.StoreEvidence) Result
}

// Status describes how a criterion is configured.
type Status struct {
	ID       ID
	Required bool
	Details  map[string]string
}

type statusProvider interface {
	Status() Status
}

// Describe returns status entries for the provided criteria.
func Describe(list []Criterion) []Status {
	statuses := make([]Status, 0, len(list))
	for _, c := range list {
		if reporter, ok := c.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{ID: c.ID()})
	}
	return statuses
}

func orEmpty(e *evidence.StoreEvidence) *evidence.StoreEvidence {
	if e == nil {
		return &evidence.StoreEvidence{
			LanguageSource: evidence.SourceUnknown,
			CurrencySource: evidence.SourceUnknown,
			Failure:        &evidence.Failure{Error: "no evidence supplied"},
		}
	}
	return e
}

func notEvaluated(id ID, summary string, main, expansion *evidence.StoreEvidence) Result {
	details := map[string]any{"not_evaluated": true}
	if !main.Collected() {
		details["main_store_collection_failure"] = main.Failure.Error
	}
	if !expansion.Collected() {
		details["expansion_store_collection_failure"] = expansion.Failure.Error
	}

	return Result{
		CriterionID:       id,
		Met:               false,
		Summary:           summary,
		EvaluationDetails: details,
	}
}
