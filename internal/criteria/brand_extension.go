package criteria

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

const minRootLength = 3

// Roots too generic to prove a relationship between two stores.
var genericRoots = map[string]bool{
	"shop": true, "store": true, "online": true, "official": true, "boutique": true, "market": true,
}

type brandRoot struct {
	value  string
	origin string
}

type brandExtension struct{}

func NewBrandExtension() Criterion {
	return &brandExtension{}
}

func (c *brandExtension) ID() ID { return BrandExtension }

func (c *brandExtension) Status() Status {
	return Status{ID: c.ID(), Required: true, Details: map[string]string{"min_root_length": fmt.Sprint(minRootLength)}}
}

// Evaluate compares the registrable domain labels and store names of both
// stores with separators removed. A root of one store that equals, prefixes,
// suffixes or is contained in a root of the other counts as a shared brand.
func (c *brandExtension) Evaluate(main, expansion *evidence.StoreEvidence) Result {
	main, expansion = orEmpty(main), orEmpty(expansion)

	mainRoots := roots(main)
	expRoots := roots(expansion)

	var matched []string
	matchType := ""
	for _, m := range mainRoots {
		for _, e := range expRoots {
			kind, shared := compareRoots(m.value, e.value)
			if kind == "" {
				continue
			}
			if matchType == "" {
				matchType = kind
			}
			matched = appendUnique(matched, fmt.Sprintf("%s (%s ~ %s)", shared, m.origin, e.origin))
		}
	}

	met := len(matched) > 0
	summary := "Expansion store does not share a recognizable brand root with the main store"
	if met {
		summary = fmt.Sprintf("Expansion store shares the brand root %q with the main store", strings.SplitN(matched[0], " ", 2)[0])
	}

	return Result{
		CriterionID:            c.ID(),
		Met:                    met,
		Summary:                summary,
		MainStoreEvidence:      rootEvidence(main, mainRoots),
		ExpansionStoreEvidence: rootEvidence(expansion, expRoots),
		EvaluationDetails: map[string]any{
			"matched_substrings": nonNil(matched),
			"match_type":         evidence.Display(matchType),
		},
	}
}

func roots(e *evidence.StoreEvidence) []brandRoot {
	var out []brandRoot
	if label := squash(evidence.DomainLabel(e.URL)); len(label) >= minRootLength {
		out = append(out, brandRoot{value: label, origin: "domain"})
	}
	if name := squash(e.StoreName); len(name) >= minRootLength {
		out = append(out, brandRoot{value: name, origin: "store_name"})
	}
	return out
}

// compareRoots returns the kind of overlap between two roots and the shared part.
func compareRoots(a, b string) (string, string) {
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}

	if len(shorter) < minRootLength || genericRoots[shorter] {
		return "", ""
	}

	switch {
	case a == b:
		return "identical", a
	case strings.HasPrefix(longer, shorter):
		return "prefix", shorter
	case strings.HasSuffix(longer, shorter):
		return "suffix", shorter
	case strings.Contains(longer, shorter):
		return "substring", shorter
	default:
		return "", ""
	}
}

// squash lower-cases s and drops everything but letters and digits.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func rootEvidence(e *evidence.StoreEvidence, rs []brandRoot) map[string]any {
	values := make([]string, 0, len(rs))
	for _, r := range rs {
		values = append(values, r.value)
	}

	return map[string]any{
		"url":        e.URL,
		"domain":     evidence.Display(evidence.RegistrableDomain(e.URL)),
		"store_name": evidence.Display(e.StoreName),
		"roots":      values,
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
