// Package address parses raw Detroit parcel addresses into their house-number
// and street components and normalizes street names into stable lookup keys.
package address

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticFold strips combining marks so accented street names collapse to
// their ASCII spelling ("Dubois" and "Duboís" normalize identically).
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize converts a street name into its canonical key form: lowercase,
// internal whitespace collapsed to single underscores, every character
// outside [a-z0-9_] removed. Normalize is idempotent and returns "" for
// empty input.
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(diacriticFold, name); err == nil {
		name = folded
	}
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			pendingSep = b.Len() > 0
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		default:
			// punctuation and symbols are dropped without acting as separators
		}
	}
	return b.String()
}
