package server

import (
	"github.com/spigell/expansion-evaluator/internal/evidence"
)

// StoreInfo is the presenter-facing summary of a store's evidence. Missing
// values are shown as "Not detected" while the *_source fields keep the
// distinction between unknown and detected.
type StoreInfo struct {
	URL              string   `json:"url"`
	StoreName        string   `json:"store_name"`
	BusinessType     string   `json:"business_type"`
	Platform         string   `json:"platform"`
	Language         string   `json:"language"`
	LanguageSource   string   `json:"language_source"`
	Currency         string   `json:"currency"`
	CurrencySource   string   `json:"currency_source"`
	BrandingElements []string `json:"branding_elements"`
	Products         []string `json:"products"`
	AccessRestricted bool     `json:"access_restricted"`
	Collected        bool     `json:"collected"`
}

func NewStoreInfo(ev *evidence.StoreEvidence) StoreInfo {
	if ev == nil {
		return StoreInfo{
			StoreName:        evidence.NotDetected,
			Language:         evidence.NotDetected,
			LanguageSource:   string(evidence.SourceUnknown),
			Currency:         evidence.NotDetected,
			CurrencySource:   string(evidence.SourceUnknown),
			BrandingElements: []string{},
			Products:         []string{},
		}
	}

	branding := []string{}
	if ev.Branding.Logo != "" {
		branding = append(branding, "logo: "+ev.Branding.Logo)
	}
	if ev.Branding.Tagline != "" {
		branding = append(branding, "tagline: "+ev.Branding.Tagline)
	}

	return StoreInfo{
		URL:              ev.URL,
		StoreName:        evidence.Display(ev.StoreName),
		BusinessType:     string(ev.BusinessType),
		Platform:         evidence.Display(ev.Platform),
		Language:         evidence.Display(ev.Language),
		LanguageSource:   string(ev.LanguageSource),
		Currency:         evidence.Display(ev.Currency),
		CurrencySource:   string(ev.CurrencySource),
		BrandingElements: branding,
		Products:         ev.ProductNames(),
		AccessRestricted: ev.AccessRestricted,
		Collected:        ev.Collected(),
	}
}
