package collector

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

// Body markers that confirm content sits behind a login.
var loginMarkers = []string{
	"please log in",
	"please login",
	"login required",
	"log in required",
	"sign in to continue",
	"authentication required",
	"enter store using password",
	"this store is password protected",
	"login to view prices",
	"login to view price",
	"log in to view prices",
	"sign in to view prices",
	"price available after login",
	"prices available after login",
}

// Body markers that confirm prices are hidden until login.
var pricingMarkers = []string{
	"login to view prices",
	"login to view price",
	"log in to view prices",
	"log in to see prices",
	"sign in to view prices",
	"sign in to see prices",
	"price available after login",
	"prices available after login",
	"log in for pricing",
	"login for pricing",
}

// Wording that suggests a trade store without establishing gating.
var b2bTextMarkers = []string{
	"wholesale pricing",
	"member pricing",
	"contact for pricing",
	"price on request",
	"trade pricing",
	"business pricing",
	"dealer pricing",
	"reseller pricing",
	"request a quote",
}

var b2bDomainKeywords = []string{
	"b2b", "wholesale", "business", "enterprise", "corporate",
	"trade", "distributor", "reseller", "partner", "pro", "professional",
}

var loginPath = regexp.MustCompile(`(?i)/(login|log-in|signin|sign-in|sign_in|password|auth|account/login|customer/account/login|my-account)(/|$|\?)`)

// classify turns a probe answer into an access signal.
func classify(surface evidence.Surface, requested string, resp *response) evidence.AccessSignal {
	signal := evidence.AccessSignal{Surface: surface, URL: requested}
	if resp == nil {
		return signal
	}
	signal.Status = resp.Status

	marker := findMarker(strings.ToLower(resp.visibleText()), loginMarkers)

	switch {
	case resp.Status == http.StatusUnauthorized:
		signal.Marker = "http 401"
		signal.Confirmed = true
	case resp.Status == http.StatusForbidden && marker != "":
		signal.Marker = marker
		signal.Confirmed = true
	case redirectedToLogin(requested, resp.URL):
		signal.Marker = "redirect to " + pathOf(resp.URL)
		signal.Confirmed = true
	case resp.ok() && marker != "":
		signal.Marker = marker
		signal.Confirmed = true
	}

	return signal
}

// pricingSignal reports hidden pricing when one of the documents says prices
// require a login.
func pricingSignal(requested string, docs ...*response) evidence.AccessSignal {
	signal := evidence.AccessSignal{Surface: evidence.SurfacePricing, URL: requested}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if marker := findMarker(strings.ToLower(doc.visibleText()), pricingMarkers); marker != "" {
			signal.URL = doc.URL
			signal.Status = doc.Status
			signal.Marker = marker
			signal.Confirmed = true
			return signal
		}
	}
	return signal
}

// b2bIndicators lists trade hints found in the domain and the page text.
func b2bIndicators(rawURL, text string) []string {
	var indicators []string

	tokens := strings.FieldsFunc(evidence.Host(rawURL), func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	for _, keyword := range b2bDomainKeywords {
		for _, token := range tokens {
			// Short keywords such as "pro" must be whole labels.
			if token == keyword || (len(keyword) >= 6 && strings.Contains(token, keyword)) {
				indicators = append(indicators, "domain: "+keyword)
				break
			}
		}
	}

	lower := strings.ToLower(text)
	for _, marker := range b2bTextMarkers {
		if strings.Contains(lower, marker) {
			indicators = append(indicators, "page: "+marker)
		}
	}

	return indicators
}

func findMarker(body string, markers []string) string {
	for _, marker := range markers {
		if strings.Contains(body, marker) {
			return marker
		}
	}
	return ""
}

func redirectedToLogin(requested, final string) bool {
	if final == "" || final == requested {
		return false
	}
	if loginPath.MatchString(pathOf(requested)) {
		return false
	}
	return loginPath.MatchString(pathOf(final))
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
