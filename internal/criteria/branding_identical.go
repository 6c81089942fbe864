package criteria

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

// Words that mark a regional or channel variant of the same brand name.
var nameQualifiers = map[string]bool{
	"eu": true, "uk": true, "usa": true, "europe": true, "canada": true, "australia": true,
	"intl": true, "international": true, "global": true, "worldwide": true,
	"wholesale": true, "b2b": true, "trade": true,
	"official": true, "store": true, "shop": true, "online": true,
}

var (
	nameSeparators = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	logoVariant    = regexp.MustCompile(`(?:[_-]\d+x\d*|[_-]x\d+|@\dx)$`)
)

type brandingIdentical struct{}

func NewBrandingIdentical() Criterion {
	return &brandingIdentical{}
}

func (c *brandingIdentical) ID() ID { return BrandingIdentical }

func (c *brandingIdentical) Status() Status {
	return Status{ID: c.ID(), Required: true, Details: map[string]string{"signals": "store_name,logo,tagline"}}
}

func (c *brandingIdentical) Evaluate(main, expansion *evidence.StoreEvidence) Result {
	main, expansion = orEmpty(main), orEmpty(expansion)

	if !main.Collected() || !expansion.Collected() {
		return notEvaluated(c.ID(), "Branding was not evaluated because store evidence could not be collected", main, expansion)
	}

	mainName := NormalizeStoreName(main.StoreName)
	expName := NormalizeStoreName(expansion.StoreName)

	details := map[string]any{
		"main_normalized_name":      evidence.Display(mainName),
		"expansion_normalized_name": evidence.Display(expName),
	}

	var checked, conflicts []string

	checked = append(checked, "store_name")
	namesIdentical := mainName != "" && mainName == expName
	details["names_identical"] = namesIdentical

	mainLogo, expLogo := logoKey(main.Branding.Logo), logoKey(expansion.Branding.Logo)
	if mainLogo != "" && expLogo != "" {
		checked = append(checked, "logo")
		if mainLogo != expLogo {
			conflicts = append(conflicts, "logo")
		}
	}

	// Taglines are translated between language variants, so they are only
	// compared when both stores publish the same language.
	if main.Language != "" && main.Language == expansion.Language {
		mainTagline, expTagline := normalizeText(main.Branding.Tagline), normalizeText(expansion.Branding.Tagline)
		if mainTagline != "" && expTagline != "" {
			checked = append(checked, "tagline")
			if mainTagline != expTagline {
				conflicts = append(conflicts, "tagline")
			}
		}
	}

	details["checked_signals"] = checked
	details["conflicting_signals"] = nonNil(conflicts)

	met := namesIdentical && len(conflicts) == 0

	var summary string
	switch {
	case mainName == "" || expName == "":
		summary = "Store name could not be detected for both stores"
	case !namesIdentical:
		summary = "Store names differ after normalization"
	case len(conflicts) > 0:
		summary = "Store names match but branding signals conflict: " + strings.Join(conflicts, ", ")
	default:
		summary = "Store name and available branding signals are identical"
	}

	return Result{
		CriterionID:            c.ID(),
		Met:                    met,
		Summary:                summary,
		MainStoreEvidence:      brandingEvidence(main),
		ExpansionStoreEvidence: brandingEvidence(expansion),
		EvaluationDetails:      details,
	}
}

// NormalizeStoreName lower-cases a store name, drops punctuation and strips
// trailing regional or channel qualifiers such as "EU", "Canada" or
// "Wholesale". Two-letter words only count as region codes when written in
// upper case, so "Acme Co" keeps its "co". At least one word is always kept.
func NormalizeStoreName(name string) string {
	words := strings.Fields(nameSeparators.ReplaceAllString(name, " "))

	for len(words) > 1 && isQualifier(words[len(words)-1]) {
		words = words[:len(words)-1]
	}

	return strings.ToLower(strings.Join(words, " "))
}

func isQualifier(word string) bool {
	lower := strings.ToLower(word)
	if nameQualifiers[lower] {
		return true
	}
	if len(word) != 2 || word != strings.ToUpper(word) {
		return false
	}
	_, err := language.ParseRegion(word)
	return err == nil
}

// logoKey reduces a logo URL to its file name without extension or size variant.
func logoKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if idx := strings.IndexAny(raw, "?#"); idx != -1 {
		raw = raw[:idx]
	}

	base := strings.ToLower(path.Base(raw))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = logoVariant.ReplaceAllString(base, "")
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(nameSeparators.ReplaceAllString(strings.ToLower(s), " ")), " ")
}

func brandingEvidence(e *evidence.StoreEvidence) map[string]any {
	return map[string]any{
		"store_name": evidence.Display(e.StoreName),
		"logo":       evidence.Display(e.Branding.Logo),
		"tagline":    evidence.Display(e.Branding.Tagline),
	}
}
