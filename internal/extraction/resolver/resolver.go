// Package resolver looks up a semantic field in an OCR field bag through its alias list.
package resolver

import (
	"strings"

	"policy-extraction-workers/internal/models"
)

// Match is a successful lookup: the bag key that won and its raw value.
type Match struct {
	Key   string
	Value string
}

// Lookup tries each candidate in priority order. For every candidate an exact key
// match is tried first, then a case-insensitive match over the bag keys in sorted
// order. Blank values never match. The second result is false when nothing matched,
// which is distinct from a present-but-empty field.
func Lookup(bag models.ExtractedFieldBag, candidates []string) (Match, bool) {
	keys := bag.Keys()
	for _, candidate := range candidates {
		if v, ok := bag.Get(candidate); ok && !isBlank(v) {
			return Match{Key: candidate, Value: v}, true
		}
		for _, k := range keys {
			if k == candidate || !strings.EqualFold(k, candidate) {
				continue
			}
			if v, _ := bag.Get(k); !isBlank(v) {
				return Match{Key: k, Value: v}, true
			}
		}
	}
	return Match{}, false
}

// Resolve is Lookup returning only the raw value.
func Resolve(bag models.ExtractedFieldBag, candidates []string) (string, bool) {
	m, ok := Lookup(bag, candidates)
	return m.Value, ok
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
