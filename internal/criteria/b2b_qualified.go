package criteria

import (
	"strings"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

// Requirement flags reported for every gated surface.
const (
	RequirementProductListing = "Requires login for product listing"
	RequirementPricing        = "Pricing not publicly visible"
	RequirementCart           = "Requires login for cart functionality"
)

var surfaceRequirements = []struct {
	surface     evidence.Surface
	requirement string
}{
	{evidence.SurfaceProductListing, RequirementProductListing},
	{evidence.SurfacePricing, RequirementPricing},
	{evidence.SurfaceCart, RequirementCart},
}

type b2bQualified struct{}

// NewB2BQualified returns the B2B override criterion. It is met only when the
// collector confirmed authentication gating on the product listing, pricing or
// cart of a b2b expansion store. Domain or URL wording never qualifies.
func NewB2BQualified() Criterion {
	return &b2bQualified{}
}

func (c *b2bQualified) ID() ID { return B2BQualified }

func (c *b2bQualified) Status() Status {
	return Status{ID: c.ID(), Details: map[string]string{"gated_surfaces": "product_listing,pricing,cart"}}
}

func (c *b2bQualified) Evaluate(main, expansion *evidence.StoreEvidence) Result {
	main, expansion = orEmpty(main), orEmpty(expansion)

	if !expansion.Collected() {
		return notEvaluated(c.ID(), "B2B access was not evaluated because expansion store evidence could not be collected", main, expansion)
	}

	confirmed := make(map[evidence.Surface]bool)
	for _, s := range expansion.ConfirmedSurfaces() {
		confirmed[s] = true
	}

	requirements := []string{}
	if expansion.AccessRestricted {
		for _, sr := range surfaceRequirements {
			if confirmed[sr.surface] {
				requirements = append(requirements, sr.requirement)
			}
		}
	}

	signals := []evidence.AccessSignal{}
	for _, s := range expansion.AccessSignals {
		if s.Confirmed {
			signals = append(signals, s)
		}
	}

	isB2B := expansion.BusinessType == evidence.B2B
	met := isB2B && expansion.AccessRestricted && len(requirements) > 0

	var summary string
	switch {
	case !isB2B:
		summary = "Expansion store is not declared as a B2B store"
	case met:
		summary = "Expansion store is a qualified B2B site: " + strings.Join(requirements, "; ")
	case !expansion.AccessRestricted:
		summary = "No confirmed authentication gating was observed on the expansion store"
	default:
		summary = "Authentication gating was observed but not on product listing, pricing or cart"
	}

	return Result{
		CriterionID: c.ID(),
		Met:         met,
		Summary:     summary,
		MainStoreEvidence: map[string]any{
			"business_type": main.BusinessType,
		},
		ExpansionStoreEvidence: map[string]any{
			"business_type":     expansion.BusinessType,
			"access_restricted": expansion.AccessRestricted,
			"confirmed_signals": signals,
		},
		EvaluationDetails: map[string]any{
			"b2b_requirements": requirements,
			"b2b_indicators":   nonNil(expansion.B2BIndicators),
			"indicators_note":  "Wording and URL patterns are informational and never establish gating",
		},
	}
}
