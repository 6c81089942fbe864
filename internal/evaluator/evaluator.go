// Package evaluator combines the criterion verdicts into a qualification
// decision and drives evidence collection for a pair of stores.
package evaluator

import (
	"fmt"
	"strings"

	"github.com/spigell/expansion-evaluator/internal/criteria"
	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/matching"
)

const (
	recommendExceptionRequest = "Exception request: if the merchant believes this store qualifies, submit an expansion store exception request with proof of shared ownership and catalog"
	recommendEscalation       = "Escalation: if this result looks wrong, escalate to the expansion store review team with this report attached"
)

// Evaluator applies the qualification criteria. It holds no per-request state
// and is safe for concurrent use.
type Evaluator struct {
	brandExtension   criteria.Criterion
	branding         criteria.Criterion
	products         *criteria.ProductsIdenticalCriterion
	b2b              criteria.Criterion
	languageCurrency criteria.Criterion
	minimumMatches   int
}

func New(cfg matching.Config) *Evaluator {
	minimum := cfg.MinimumMatches
	if minimum <= 0 {
		minimum = matching.DefaultMinimumMatches
	}

	return &Evaluator{
		brandExtension:   criteria.NewBrandExtension(),
		branding:         criteria.NewBrandingIdentical(),
		products:         criteria.NewProductsIdentical(cfg),
		b2b:              criteria.NewB2BQualified(),
		languageCurrency: criteria.NewLanguageCurrency(),
		minimumMatches:   minimum,
	}
}

// Criteria lists the configured criteria in evaluation order.
func (e *Evaluator) Criteria() []criteria.Criterion {
	return []criteria.Criterion{e.brandExtension, e.branding, e.products, e.b2b, e.languageCurrency}
}

// Evaluate builds the report for a pair of stores. The result is qualified iff
// brand_extension and branding_identical are met and either products_identical
// or, for b2b expansion stores, b2b_qualified is met. Missing evidence never
// produces a qualified result.
func (e *Evaluator) Evaluate(main, expansion *evidence.StoreEvidence) *Report {
	report := &Report{
		CriteriaMet:      make(map[criteria.ID]bool),
		CriteriaAnalysis: make(map[criteria.ID]criteria.Result),
	}

	record := func(r criteria.Result) criteria.Result {
		report.CriteriaMet[r.CriterionID] = r.Met
		report.CriteriaAnalysis[r.CriterionID] = r
		return r
	}

	brand := record(e.brandExtension.Evaluate(main, expansion))
	branding := record(e.branding.Evaluate(main, expansion))
	productsResult, analysis := e.products.Analyze(main, expansion)
	products := record(productsResult)
	record(e.languageCurrency.Evaluate(main, expansion))

	report.ProductAnalysis = analysis

	var b2b *criteria.Result
	if expansion != nil && expansion.BusinessType == evidence.B2B && !products.Met {
		r := record(e.b2b.Evaluate(main, expansion))
		b2b = &r
	}

	productsSatisfied := products.Met || (b2b != nil && b2b.Met)
	collected := main.Collected() && expansion.Collected()

	if !main.Collected() {
		report.CollectionFailures = append(report.CollectionFailures, failureOf("main", main))
	}
	if !expansion.Collected() {
		report.CollectionFailures = append(report.CollectionFailures, failureOf("expansion", expansion))
	}

	report.Result = Unqualified
	if collected && brand.Met && branding.Met && productsSatisfied {
		report.Result = Qualified
	}

	report.Reasons, report.Recommendations = e.explain(report, brand, branding, products, b2b)
	report.ConfidenceScore = confidence(expansion)

	return report
}

func (e *Evaluator) explain(report *Report, brand, branding, products criteria.Result, b2b *criteria.Result) ([]string, []string) {
	var reasons, recommendations []string

	if report.Result == Qualified {
		if products.Met {
			reasons = append(reasons, fmt.Sprintf("Expansion store meets all required criteria: brand extension, identical branding and at least %d identical products", e.minimumMatches))
		} else {
			requirements, _ := b2b.EvaluationDetails["b2b_requirements"].([]string)
			reasons = append(reasons, fmt.Sprintf("Expansion store meets all required criteria as a qualified B2B site (%s)", strings.Join(requirements, "; ")))
		}

		recommendations = append(recommendations,
			"Sales: the store can be sold as an expansion store under the main store's plan",
			"Merchant Success: link the expansion store to the main store account and keep catalog and branding aligned",
			"Support: treat the expansion store as part of the main store's account when handling requests",
		)
		if !products.Met {
			recommendations = append(recommendations, "Merchant Success: keep login gating on the B2B store; product parity was accepted through confirmed access restrictions")
		}

		return reasons, recommendations
	}

	for _, failure := range report.CollectionFailures {
		reasons = append(reasons, fmt.Sprintf("Evidence for the %s store (%s) could not be collected: %s. Products and B2B access were not evaluated", failure.Store, failure.URL, failure.Error))
	}
	if len(report.CollectionFailures) > 0 {
		recommendations = append(recommendations, "Retry the evaluation once the store is reachable; missing evidence is never treated as an empty catalog")
	}

	if !brand.Met {
		reasons = append(reasons, "Store is not an extension of the main brand")
		recommendations = append(recommendations, "Ensure the store is clearly related to the main brand through its name or domain")
	}

	if !branding.Met && len(report.CollectionFailures) == 0 {
		reasons = append(reasons, "Store name and branding are not identical to the main brand: "+branding.Summary)
		recommendations = append(recommendations, "Use an identical store name and branding elements")
	}

	if len(report.CollectionFailures) == 0 && !products.Met && (b2b == nil || !b2b.Met) {
		reasons = append(reasons, products.Summary)
		recommendations = append(recommendations, fmt.Sprintf("Ensure the expansion store carries at least %d products with identical names to the main store", e.minimumMatches))

		if b2b != nil {
			reasons = append(reasons, "Expansion store does not meet B2B qualification: "+b2b.Summary)
			recommendations = append(recommendations, "B2B stores qualify without a visible catalog only when login is required for product listing, pricing or cart")
		}
	}

	recommendations = append(recommendations, recommendExceptionRequest, recommendEscalation)

	return reasons, recommendations
}

func failureOf(store string, e *evidence.StoreEvidence) CollectionFailure {
	f := CollectionFailure{Store: store, Error: "no evidence supplied"}
	if e != nil {
		f.URL = e.URL
		if e.Failure != nil {
			f.Error = e.Failure.Error
		}
	}
	return f
}

// confidence grades how complete the expansion store evidence is.
func confidence(e *evidence.StoreEvidence) float64 {
	switch {
	case !e.Collected():
		return 0
	case e.StoreName == "":
		return 0.3
	case e.Branding.Logo == "" && e.Branding.Tagline == "":
		return 0.5
	case len(e.Products) == 0:
		return 0.7
	default:
		return 0.9
	}
}
