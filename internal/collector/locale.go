package collector

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

var localeSegment = regexp.MustCompile(`^([a-z]{2})(?:[-_]([a-z]{2}))?$`)

// Storefronts use these two-letter segments for markets rather than languages.
var regionSegments = map[string]string{
	"uk": "GB",
	"us": "US",
	"ca": "CA",
	"au": "AU",
	"eu": "EU",
}

type locale struct {
	Language       string
	LanguageSource evidence.Source
	Currency       string
	CurrencySource evidence.Source
	Notes          []string
}

// detectLocale derives language and currency from the store URL. A locale in
// the path or subdomain wins over the country-code TLD. Page declarations only
// cross-check domain inferences: a disagreement leaves the field unknown.
func detectLocale(rawURL string, p *page, ldCurrency string) locale {
	loc := locale{LanguageSource: evidence.SourceUnknown, CurrencySource: evidence.SourceUnknown}

	if lang, region, ok := urlLocale(rawURL); ok {
		if lang != "" {
			loc.Language, loc.LanguageSource = lang, evidence.SourceURL
		}
		if cur := regionCurrency(region); cur != "" {
			loc.Currency, loc.CurrencySource = cur, evidence.SourceURL
		}
	}

	domainLang, domainCur := domainLocale(rawURL)
	if loc.LanguageSource == evidence.SourceUnknown && domainLang != "" {
		loc.Language, loc.LanguageSource = domainLang, evidence.SourceDomain
	}
	if loc.CurrencySource == evidence.SourceUnknown && domainCur != "" {
		loc.Currency, loc.CurrencySource = domainCur, evidence.SourceDomain
	}

	if p == nil {
		return loc
	}

	if loc.LanguageSource == evidence.SourceDomain {
		if declared := pageLanguage(p); declared != "" && declared != loc.Language {
			loc.Notes = append(loc.Notes, fmt.Sprintf("language ambiguous: domain suggests %s, page declares %s", loc.Language, declared))
			loc.Language, loc.LanguageSource = "", evidence.SourceUnknown
		}
	}

	if loc.CurrencySource == evidence.SourceDomain {
		if declared := pageCurrency(p, ldCurrency); declared != "" && declared != loc.Currency {
			loc.Notes = append(loc.Notes, fmt.Sprintf("currency ambiguous: domain suggests %s, page declares %s", loc.Currency, declared))
			loc.Currency, loc.CurrencySource = "", evidence.SourceUnknown
		}
	}

	return loc
}

// urlLocale looks for a locale in the first path segment ("/fr-ca/", "/uk/")
// or the first subdomain label ("fr.acme.com"). Market segments yield a region
// without a language.
func urlLocale(rawURL string) (string, string, bool) {
	u, err := url.Parse(evidence.NormalizeURL(rawURL))
	if err != nil {
		return "", "", false
	}

	var candidates []string
	if segments := strings.Split(strings.Trim(u.Path, "/"), "/"); segments[0] != "" {
		candidates = append(candidates, segments[0])
	}
	if labels := evidence.Subdomains(rawURL); len(labels) > 0 {
		candidates = append(candidates, labels[0])
	}

	for _, candidate := range candidates {
		candidate = strings.ToLower(candidate)
		if region, ok := regionSegments[candidate]; ok {
			return "", region, true
		}

		match := localeSegment.FindStringSubmatch(candidate)
		if match == nil {
			continue
		}
		base, err := language.ParseBase(match[1])
		if err != nil {
			continue
		}
		region := ""
		if match[2] != "" {
			if r, err := language.ParseRegion(match[2]); err == nil && r.IsCountry() {
				region = r.String()
			}
		}
		return base.String(), region, true
	}

	return "", "", false
}

// Country-code TLDs sold and used as generic ones. They say nothing about the
// market a store serves.
var genericCountryTLDs = map[string]bool{
	"io": true, "co": true, "ai": true, "tv": true, "me": true, "ly": true,
	"gg": true, "sh": true, "fm": true, "am": true, "to": true, "cc": true,
	"ws": true, "so": true, "gl": true, "vc": true, "la": true, "st": true,
}

// domainLocale infers language and currency from the country-code TLD. Generic
// TLDs other than .com yield nothing.
func domainLocale(rawURL string) (string, string) {
	suffix := evidence.PublicSuffix(rawURL)
	if suffix == "" {
		return "", ""
	}

	tld := suffix
	if idx := strings.LastIndex(suffix, "."); idx != -1 {
		tld = suffix[idx+1:]
	}

	switch tld {
	case "com":
		return "en", "USD"
	case "eu":
		return "", "EUR"
	case "uk":
		tld = "gb"
	}

	// Only a bare generic-use TLD is ignored: "acme.co.uk" still means GB.
	if genericCountryTLDs[tld] && suffix == tld {
		return "", ""
	}
	if len(tld) != 2 {
		return "", ""
	}

	region, err := language.ParseRegion(tld)
	if err != nil || !region.IsCountry() {
		return "", ""
	}

	lang := ""
	if base, conf := language.Make("und-" + region.String()).Base(); conf >= language.Low {
		lang = base.String()
	}

	return lang, regionCurrency(region.String())
}

func regionCurrency(code string) string {
	switch code {
	case "":
		return ""
	case "EU":
		return "EUR"
	}

	region, err := language.ParseRegion(code)
	if err != nil {
		return ""
	}

	unit, ok := currency.FromRegion(region)
	if !ok {
		return ""
	}

	return unit.String()
}

func pageLanguage(p *page) string {
	for _, raw := range []string{p.Lang, p.OGLocale} {
		raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
		if raw == "" {
			continue
		}
		tag, err := language.Parse(raw)
		if err != nil {
			continue
		}
		if base, conf := tag.Base(); conf == language.Exact {
			return base.String()
		}
	}
	return ""
}

func pageCurrency(p *page, ldCurrency string) string {
	for _, raw := range []string{p.PriceCurrency, ldCurrency} {
		if code := normalizeCurrency(raw); code != "" {
			return code
		}
	}
	return ""
}

// normalizeCurrency validates an ISO 4217 code, returning "" when invalid.
func normalizeCurrency(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	unit, err := currency.ParseISO(raw)
	if err != nil {
		return ""
	}

	return unit.String()
}
