// Package evidence holds the per-store facts gathered by the collector and
// consumed by the qualification criteria.
package evidence

import (
	"strings"
)

// NotDetected is displayed for fields the collector could not determine.
const NotDetected = "Not detected"

// BusinessType is the declared business model of a store.
type BusinessType string

const (
	D2C BusinessType = "d2c"
	B2B BusinessType = "b2b"
)

// ParseBusinessType maps free-form input to a BusinessType. Anything that is
// not recognisably b2b defaults to d2c.
func ParseBusinessType(raw string) BusinessType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "b2b", "business-to-business":
		return B2B
	default:
		return D2C
	}
}

// Source tells where a language or currency value came from.
type Source string

const (
	SourceURL     Source = "detected-in-url"
	SourceDomain  Source = "inferred-from-domain"
	SourceUnknown Source = "unknown"
)

// Surface is a part of a storefront that may sit behind authentication.
type Surface string

const (
	SurfaceLanding        Surface = "landing"
	SurfaceProductListing Surface = "product_listing"
	SurfacePricing        Surface = "pricing"
	SurfaceCart           Surface = "cart"
)

// Price is a currency-tagged decimal. Amount keeps the decimal text as
// published by the store so no precision is lost.
type Price struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type Product struct {
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Price *Price `json:"price,omitempty"`
}

// Branding carries optional visual identity signals.
type Branding struct {
	Logo    string `json:"logo,omitempty"`
	Tagline string `json:"tagline,omitempty"`
}

// AccessSignal is the outcome of probing one surface for authentication gating.
// Confirmed is only set for HTTP 401, a redirect to a login page or an
// explicit login/authentication-required marker in the response body.
type AccessSignal struct {
	Surface   Surface `json:"surface"`
	URL       string  `json:"url,omitempty"`
	Status    int     `json:"status,omitempty"`
	Marker    string  `json:"marker,omitempty"`
	Confirmed bool    `json:"confirmed"`
}

// Failure records why evidence for a store could not be collected.
type Failure struct {
	Error     string `json:"error"`
	Status    int    `json:"status,omitempty"`
	Retryable bool   `json:"retryable"`
}

// StoreEvidence is everything known about one store.
type StoreEvidence struct {
	URL            string         `json:"url"`
	StoreName      string         `json:"store_name"`
	BusinessType   BusinessType   `json:"business_type"`
	Platform       string         `json:"platform,omitempty"`
	Language       string         `json:"language"`
	LanguageSource Source         `json:"language_source"`
	Currency       string         `json:"currency"`
	CurrencySource Source         `json:"currency_source"`
	Products       []Product      `json:"products"`
	ProductSource  string         `json:"product_source,omitempty"`
	Branding       Branding       `json:"branding_elements"`
	AccessSignals  []AccessSignal `json:"access_signals,omitempty"`
	// AccessRestricted is true when at least one access signal is confirmed.
	AccessRestricted bool `json:"access_restricted"`
	// B2BIndicators are textual hints (wholesale wording, trade pricing) that
	// never establish gating on their own.
	B2BIndicators []string `json:"b2b_indicators,omitempty"`
	Notes         []string `json:"notes,omitempty"`
	Failure       *Failure `json:"collection_failure,omitempty"`
}

// Unavailable builds the evidence of a store that could not be collected.
func Unavailable(url string, bt BusinessType, failure Failure) *StoreEvidence {
	return &StoreEvidence{
		URL:            url,
		BusinessType:   bt,
		LanguageSource: SourceUnknown,
		CurrencySource: SourceUnknown,
		Failure:        &failure,
	}
}

// Collected reports whether the collector reached the store.
func (e *StoreEvidence) Collected() bool {
	return e != nil && e.Failure == nil
}

// ConfirmedSurfaces returns the surfaces with confirmed authentication gating
// in probe order, without duplicates.
func (e *StoreEvidence) ConfirmedSurfaces() []Surface {
	if e == nil {
		return nil
	}

	seen := make(map[Surface]bool)
	var surfaces []Surface
	for _, signal := range e.AccessSignals {
		if !signal.Confirmed || seen[signal.Surface] {
			continue
		}
		seen[signal.Surface] = true
		surfaces = append(surfaces, signal.Surface)
	}

	return surfaces
}

// ProductNames returns the product names in listing order.
func (e *StoreEvidence) ProductNames() []string {
	if e == nil {
		return nil
	}

	names := make([]string, 0, len(e.Products))
	for _, p := range e.Products {
		names = append(names, p.Name)
	}

	return names
}

// Display returns v or the NotDetected marker when v is empty.
func Display(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotDetected
	}
	return v
}
