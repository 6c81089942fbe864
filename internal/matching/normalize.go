package matching

import (
	"regexp"
	"strings"
)

var (
	trailingPrice = regexp.MustCompile(`\s*[$€£¥]\s?\d+(?:[.,]\d+)?\s*$`)

	wholesalePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*-\s*min\.?\s*\d+.*$`),
		regexp.MustCompile(`(?i)\s*\bminimum\s+\d+.*$`),
		regexp.MustCompile(`\s*\([\w\-]+\)$`),
		regexp.MustCompile(`(?i)\s*-\s*\d+\s*pack.*$`),
		regexp.MustCompile(`(?i)\s*\bwholesale\b.*$`),
		regexp.MustCompile(`(?i)\s*\bbulk\b.*$`),
	}

	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

var (
	prefixes = []string{"the ", "a ", "an ", "new ", "original ", "classic "}
	suffixes = []string{" - new", " - original", " (new)", " (original)", " - limited edition"}
)

// Normalize reduces a product name to the form used for comparison: lower
// case, without trailing prices, wholesale packaging notes, marketing
// prefixes and suffixes or punctuation.
func Normalize(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return ""
	}

	normalized = trailingPrice.ReplaceAllString(normalized, "")

	for _, pattern := range wholesalePatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)

	for _, prefix := range prefixes {
		if strings.HasPrefix(normalized, prefix) {
			normalized = normalized[len(prefix):]
		}
	}

	for _, suffix := range suffixes {
		if strings.HasSuffix(normalized, suffix) {
			normalized = normalized[:len(normalized)-len(suffix)]
		}
	}

	normalized = nonWord.ReplaceAllString(normalized, " ")
	normalized = whitespace.ReplaceAllString(normalized, " ")

	return strings.TrimSpace(normalized)
}

// Tokens returns the distinct words of the normalized name.
func Tokens(name string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(Normalize(name)) {
		set[token] = struct{}{}
	}
	return set
}

// Similarity is the token-set (Jaccard) similarity of two product names.
func Similarity(a, b string) float64 {
	left := Tokens(a)
	right := Tokens(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	shared := 0
	for token := range left {
		if _, ok := right[token]; ok {
			shared++
		}
	}

	union := len(left) + len(right) - shared
	return float64(shared) / float64(union)
}
