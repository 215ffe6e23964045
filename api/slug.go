package api

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify converts a project name into a provider-safe slug: NFKD
// decomposition drops diacritics, everything outside [a-z0-9] collapses to
// a single dash, and leading/trailing dashes are trimmed.
func Slugify(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	lastDash := false
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		case unicode.IsMark(r):
			// Combining mark left over from decomposition; drop it.
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
