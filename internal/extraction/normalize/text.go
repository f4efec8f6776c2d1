// Package normalize holds the pure cleaning and parsing functions applied to raw
// OCR values. Every function here is total: bad input yields an empty or absent
// result, never a panic.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// CleanText trims and collapses newlines, tabs and repeated spaces into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanIdentifier strips dots, hyphens and whitespace from document and tax ids.
func CleanIdentifier(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// CleanPlate strips whitespace and hyphens and upper-cases the plate.
func CleanPlate(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

// CleanPhone strips whitespace, hyphens, parentheses and a leading plus sign.
func CleanPhone(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == '(' || r == ')' || unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimLeft(cleaned, "+")
}

// IsValidEmail is a strict syntactic check; surrounding whitespace makes it fail.
func IsValidEmail(s string) bool {
	if len(s) > 254 || !emailPattern.MatchString(s) {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	if len(local) > 64 || strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return false
	}
	if strings.Contains(s, "..") || strings.HasPrefix(domain, ".") || strings.HasPrefix(domain, "-") {
		return false
	}
	return true
}

// Fold upper-cases and removes diacritics so "Próximo" and "PROXIMO" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(out)
}
