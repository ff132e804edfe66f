package referentiel

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cleanText NFC-normalizes s and collapses runs of whitespace. Blank input
// yields "".
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// cleanOptional is cleanText returning nil for blank input.
func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	out := cleanText(*s)
	if out == "" {
		return nil
	}
	return &out
}

// foldKey is the accent- and case-insensitive comparison key of s.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, cleanText(s))
	if err != nil {
		return strings.ToLower(cleanText(s))
	}
	return strings.ToLower(out)
}
