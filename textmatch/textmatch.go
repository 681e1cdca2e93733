// Package textmatch compares chat text the way users type it: any case, with
// or without accents, with stray spaces.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics and collapses whitespace, so
// "  Aquí  mi RECIBO" becomes "aqui mi recibo".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// Equal reports whether a and b are the same text after folding.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// ContainsAny reports whether s contains any of the keywords after folding.
func ContainsAny(s string, keywords []string) bool {
	folded := Fold(s)
	if folded == "" {
		return false
	}
	for _, k := range keywords {
		if k = Fold(k); k != "" && strings.Contains(folded, k) {
			return true
		}
	}
	return false
}

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
