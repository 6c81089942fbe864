package criteria

import (
	"fmt"
	"strconv"

	"github.com/spigell/expansion-evaluator/internal/evidence"
	"github.com/spigell/expansion-evaluator/internal/matching"
)

// ProductAnalysis is the detailed outcome of product matching.
type ProductAnalysis struct {
	MainStoreProducts      int              `json:"main_store_products"`
	ExpansionStoreProducts int              `json:"expansion_store_products"`
	ExactMatches           int              `json:"exact_matches"`
	FuzzyMatches           int              `json:"fuzzy_matches"`
	TotalMatches           int              `json:"total_matches"`
	RequiredMatches        int              `json:"required_matches"`
	FuzzyThreshold         float64          `json:"fuzzy_threshold"`
	Matches                []matching.Match `json:"matches"`
	StatusType             string           `json:"status_type"`
}

// ProductsIdenticalCriterion checks that the expansion store carries enough of
// the main store's products.
type ProductsIdenticalCriterion struct {
	matcher *matching.Matcher
	minimum int
}

func NewProductsIdentical(cfg matching.Config) *ProductsIdenticalCriterion {
	minimum := cfg.MinimumMatches
	if minimum <= 0 {
		minimum = matching.DefaultMinimumMatches
	}

	return &ProductsIdenticalCriterion{
		matcher: matching.New(cfg),
		minimum: minimum,
	}
}

func (c *ProductsIdenticalCriterion) ID() ID { return ProductsIdentical }

func (c *ProductsIdenticalCriterion) Status() Status {
	return Status{ID: c.ID(), Required: true, Details: map[string]string{
		"minimum_matches": strconv.Itoa(c.minimum),
		"fuzzy_threshold": strconv.FormatFloat(c.matcher.Threshold(), 'f', 2, 64),
	}}
}

func (c *ProductsIdenticalCriterion) Evaluate(main, expansion *evidence.StoreEvidence) Result {
	result, _ := c.Analyze(main, expansion)
	return result
}

// Analyze evaluates the criterion and returns the matching analysis. The
// analysis is nil when matching did not run because evidence is missing.
func (c *ProductsIdenticalCriterion) Analyze(main, expansion *evidence.StoreEvidence) (Result, *ProductAnalysis) {
	main, expansion = orEmpty(main), orEmpty(expansion)

	if !main.Collected() || !expansion.Collected() {
		return notEvaluated(c.ID(), "Products were not compared because store evidence could not be collected", main, expansion), nil
	}

	matched := c.matcher.Match(main.Products, expansion.Products)
	total := matched.Total()
	met := total >= c.minimum

	status := "Criteria NOT MET"
	statusType := "not_met"
	if met {
		status = "Criteria MET"
		statusType = "met"
	}

	analysisSummary := fmt.Sprintf("Found %d matching products (%d exact, %d fuzzy) - %s (%d/%d required)",
		total, matched.Exact, matched.Fuzzy, status, total, c.minimum)

	var summary string
	switch {
	case len(main.Products) == 0 && len(expansion.Products) == 0:
		summary = "Neither store lists products to compare"
	case len(expansion.Products) == 0:
		summary = "Expansion store lists no products to compare with the main store"
	case len(main.Products) == 0:
		summary = "Main store lists no products to compare with the expansion store"
	case met:
		summary = fmt.Sprintf("Expansion store carries %d of the main store's products", total)
	default:
		summary = fmt.Sprintf("Only %d identically named products found (minimum %d required)", total, c.minimum)
	}

	matches := matched.Matches
	if matches == nil {
		matches = []matching.Match{}
	}

	analysis := &ProductAnalysis{
		MainStoreProducts:      len(main.Products),
		ExpansionStoreProducts: len(expansion.Products),
		ExactMatches:           matched.Exact,
		FuzzyMatches:           matched.Fuzzy,
		TotalMatches:           total,
		RequiredMatches:        c.minimum,
		FuzzyThreshold:         c.matcher.Threshold(),
		Matches:                matches,
		StatusType:             statusType,
	}

	return Result{
		CriterionID:            c.ID(),
		Met:                    met,
		Summary:                summary,
		MainStoreEvidence:      productEvidence(main),
		ExpansionStoreEvidence: productEvidence(expansion),
		EvaluationDetails: map[string]any{
			"exact_matches":    matched.Exact,
			"fuzzy_matches":    matched.Fuzzy,
			"total_matches":    total,
			"required_matches": c.minimum,
			"analysis_summary": analysisSummary,
		},
	}, analysis
}

func productEvidence(e *evidence.StoreEvidence) map[string]any {
	names := e.ProductNames()
	return map[string]any{
		"product_count":  len(names),
		"products":       nonNil(names),
		"product_source": evidence.Display(e.ProductSource),
	}
}
