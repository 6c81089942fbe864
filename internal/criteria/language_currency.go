package criteria

import (
	"fmt"
	"strings"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

type languageCurrency struct{}

// NewLanguageCurrency returns the informational language and currency
// criterion. Expansion stores may differ in both, so it is always met.
func NewLanguageCurrency() Criterion {
	return &languageCurrency{}
}

func (c *languageCurrency) ID() ID { return LanguageCurrencyDifferent }

func (c *languageCurrency) Evaluate(main, expansion *evidence.StoreEvidence) Result {
	main, expansion = orEmpty(main), orEmpty(expansion)

	languageDiffers := differs(main.Language, expansion.Language)
	currencyDiffers := differs(main.Currency, expansion.Currency)

	var differences []string
	if languageDiffers != nil && *languageDiffers {
		differences = append(differences, fmt.Sprintf("language: %s vs %s", main.Language, expansion.Language))
	}
	if currencyDiffers != nil && *currencyDiffers {
		differences = append(differences, fmt.Sprintf("currency: %s vs %s", main.Currency, expansion.Currency))
	}

	summary := "Language and currency differences are allowed for expansion stores"
	if len(differences) > 0 {
		summary = fmt.Sprintf("Language/currency differences detected (%s); these are allowed", strings.Join(differences, ", "))
	}

	return Result{
		CriterionID:            c.ID(),
		Met:                    true,
		Summary:                summary,
		MainStoreEvidence:      localeEvidence(main),
		ExpansionStoreEvidence: localeEvidence(expansion),
		EvaluationDetails: map[string]any{
			"language_differs": languageDiffers,
			"currency_differs": currencyDiffers,
			"differences":      nonNil(differences),
		},
	}
}

// differs is nil when either side is unknown.
func differs(a, b string) *bool {
	if a == "" || b == "" {
		return nil
	}
	d := !strings.EqualFold(a, b)
	return &d
}

func localeEvidence(e *evidence.StoreEvidence) map[string]any {
	return map[string]any{
		"language":        evidence.Display(e.Language),
		"language_source": sourceOrUnknown(e.LanguageSource),
		"currency":        evidence.Display(e.Currency),
		"currency_source": sourceOrUnknown(e.CurrencySource),
	}
}

func sourceOrUnknown(s evidence.Source) evidence.Source {
	if s == "" {
		return evidence.SourceUnknown
	}
	return s
}
