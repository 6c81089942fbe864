package evidence

import (
	"regexp"
	"strings"
)

var amountPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// ParseAmount extracts the first decimal amount from s and returns it with a
// dot as decimal separator and no grouping, e.g. "€1.299,50" -> "1299.50".
// A lone separator followed by exactly three digits is read as grouping.
func ParseAmount(s string) string {
	match := amountPattern.FindString(s)
	if match == "" {
		return ""
	}

	lastDot := strings.LastIndex(match, ".")
	lastComma := strings.LastIndex(match, ",")

	decimal := lastDot
	if lastComma > lastDot {
		decimal = lastComma
	}

	if lastDot == -1 || lastComma == -1 {
		if decimal != -1 {
			sep := match[decimal : decimal+1]
			if strings.Count(match, sep) > 1 || len(match)-decimal-1 == 3 {
				decimal = -1
			}
		}
	}

	var b strings.Builder
	for i, r := range match {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case i == decimal:
			b.WriteByte('.')
		}
	}

	return b.String()
}
