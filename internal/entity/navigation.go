package entity

import (
	"strings"
	"unicode"
)

// CanonicalNavigation derives the URL-safe navigation key from a display
// name. Names may embed a "namespace::title" convention; the separator is
// preserved. The result is lower case with runs of whitespace collapsed to
// single underscores and other unsafe runes dropped.
func CanonicalNavigation(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(strings.ToLower(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ':' || r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case unicode.IsSpace(r) || r == '_' || r == '/':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// SplitName separates a "namespace::title" display name. Names without the
// separator have an empty namespace.
func SplitName(name string) (namespace, title string) {
	if i := strings.Index(name, "::"); i >= 0 {
		return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+2:])
	}
	return "", strings.TrimSpace(name)
}
