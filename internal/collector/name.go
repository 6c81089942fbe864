package collector

import (
	"regexp"
	"strings"

	"github.com/spigell/expansion-evaluator/internal/evidence"
)

var titleSeparator = regexp.MustCompile(`\s+[|\-–—:·•]+\s+`)

// storeName picks the store name from og:site_name, application-name, the
// page title and finally the domain label.
func storeName(p *page, rawURL string) string {
	label := evidence.DomainLabel(rawURL)

	if p != nil {
		for _, candidate := range []string{p.SiteName, p.AppName} {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				return candidate
			}
		}

		if name := nameFromTitle(p.Title, label); name != "" {
			return name
		}
	}

	return label
}

// nameFromTitle returns the title part that resembles the domain label, or
// the first part when none does.
func nameFromTitle(title, label string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	parts := titleSeparator.Split(title, -1)
	squashedLabel := squash(label)
	if squashedLabel != "" {
		for _, part := range parts {
			s := squash(part)
			if s != "" && (strings.Contains(s, squashedLabel) || (len(s) >= 3 && strings.Contains(squashedLabel, s))) {
				return strings.TrimSpace(part)
			}
		}
	}

	return strings.TrimSpace(parts[0])
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
