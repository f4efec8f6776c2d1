// internal/extraction/normalize/decimal.go
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	currencyMarkers = regexp.MustCompile(`(?i)\$UYU|\$USD|U\$S|US\$|\$U|AR\$|R\$|UYU|USD|EUR|ARS|BRL|€|\$|PESOS?|DOLARES|DOLAR`)
	numericBody     = regexp.MustCompile(`^-?[0-9.,]+$`)
	closingSuffix   = regexp.MustCompile(`[0-9][.,]?-$`)
	digitRun        = regexp.MustCompile(`\d+`)
	yearPattern     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// ParseDecimal reads amounts such as "$UYU 15,000.50", "15.000,50", "28750.50" or
// "$ 1.250,00.-".
// It returns false, never zero, when the input holds no usable number.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	s := currencyMarkers.ReplaceAllString(Fold(raw), "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	// "1.250,00.-" and "1.250,-" close the amount; the dash is not a sign
	if closingSuffix.MatchString(s) {
		s = strings.TrimRight(strings.TrimSuffix(s, "-"), ".,")
	}
	if s == "" || !numericBody.MatchString(s) {
		return decimal.Zero, false
	}

	negative := strings.HasPrefix(s, "-")
	s = normalizeSeparators(strings.TrimPrefix(s, "-"))
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// ParseAmount is ParseDecimal converted for the record's float fields.
func ParseAmount(raw string) (float64, bool) {
	d, ok := ParseDecimal(raw)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// normalizeSeparators leaves a plain "1234.56" string. When both separators
// appear the rightmost one is the decimal mark. A single separator followed by
// exactly three digits after a short integer part is read as thousands.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		return single(s, ",")

	case lastDot >= 0:
		return single(s, ".")
	}
	return s
}

func single(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	intPart, frac, _ := strings.Cut(s, sep)
	if frac == "" {
		return intPart
	}
	if len(frac) == 3 && len(intPart) >= 1 && len(intPart) <= 3 && intPart != "0" {
		return intPart + frac
	}
	if intPart == "" {
		intPart = "0"
	}
	return intPart + "." + frac
}

// ParseInteger returns the first run of digits, e.g. "10 cuotas" -> 10.
func ParseInteger(raw string) (int, bool) {
	m := digitRun.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseYear finds a four digit year between 1900 and 2099.
func ParseYear(raw string) (int, bool) {
	m := yearPattern.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, _ := strconv.Atoi(m)
	return n, true
}
