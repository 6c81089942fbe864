package evidence

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL adds an https scheme to bare hosts and trims whitespace.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}

	return raw
}

// Host returns the lower-cased host of raw without port and leading "www.".
func Host(raw string) string {
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// RegistrableDomain returns eTLD+1 for the URL host, falling back to the host
// itself for IPs, localhost and unknown suffixes.
func RegistrableDomain(raw string) string {
	host := Host(raw)
	if host == "" || net.ParseIP(host) != nil {
		return host
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}

	return registrable
}

// PublicSuffix returns the public suffix of the URL host ("co.uk", "com").
func PublicSuffix(raw string) string {
	host := Host(raw)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(host)
	return suffix
}

// DomainLabel returns the registrable domain without its public suffix, e.g.
// "acme-eu" for "shop.acme-eu.co.uk".
func DomainLabel(raw string) string {
	registrable := RegistrableDomain(raw)
	if registrable == "" || net.ParseIP(registrable) != nil {
		return registrable
	}

	suffix := PublicSuffix(raw)
	if suffix != "" && suffix != registrable {
		registrable = strings.TrimSuffix(registrable, "."+suffix)
	}

	if idx := strings.LastIndex(registrable, "."); idx != -1 {
		registrable = registrable[:idx]
	}

	return registrable
}

// Subdomains returns the host labels left of the registrable domain.
func Subdomains(raw string) []string {
	host := Host(raw)
	registrable := RegistrableDomain(raw)
	if host == "" || host == registrable {
		return nil
	}

	prefix := strings.TrimSuffix(host, "."+registrable)
	if prefix == host {
		return nil
	}

	return strings.Split(prefix, ".")
}

// Resolve joins ref onto base, returning ref unchanged when either is unparsable.
func Resolve(base, ref string) string {
	b, err := url.Parse(NormalizeURL(base))
	if err != nil {
		return ref
	}

	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}

	return b.ResolveReference(r).String()
}
