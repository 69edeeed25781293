// Package textnorm provides accent-insensitive string comparison.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s and strips combining diacritical marks so that
// "Ángel" and "angel" compare equal.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// ContainsIgnoringAccents reports whether the normalized needle occurs in the
// normalized haystack. An empty needle or haystack never matches.
func ContainsIgnoringAccents(haystack, needle string) bool {
	if haystack == "" || needle == "" {
		return false
	}
	return strings.Contains(Normalize(haystack), Normalize(needle))
}

// Key returns the lookup key used for free-text card names: lower-cased and
// trimmed, accents preserved.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
