// internal/extraction/normalize/currency.go
package normalize

import (
	"strings"
	"sync"

	"policy-extraction-workers/pkg/registry"
)

const DefaultCurrency = "UYU"

// CurrencyMapper maps free-text currency mentions onto the supported ISO codes.
type CurrencyMapper struct {
	rules []registry.CurrencyRule
}

func NewCurrencyMapper(rules []registry.CurrencyRule) *CurrencyMapper {
	folded := make([]registry.CurrencyRule, 0, len(rules))
	for _, r := range rules {
		syn := make([]string, 0, len(r.Synonyms))
		for _, s := range r.Synonyms {
			if s = Fold(strings.TrimSpace(s)); s != "" {
				syn = append(syn, s)
			}
		}
		folded = append(folded, registry.CurrencyRule{Code: r.Code, Synonyms: syn})
	}
	return &CurrencyMapper{rules: folded}
}

// Map returns the ISO code for raw, falling back to UYU.
// Exact synonym matches are checked across all rules before substring matches.
func (m *CurrencyMapper) Map(raw string) string {
	s := Fold(CleanText(raw))
	if s == "" {
		return DefaultCurrency
	}
	for _, r := range m.rules {
		if r.Code == s {
			return r.Code
		}
		for _, syn := range r.Synonyms {
			if syn == s {
				return r.Code
			}
		}
	}
	for _, r := range m.rules {
		for _, syn := range r.Synonyms {
			if strings.Contains(s, syn) {
				return r.Code
			}
		}
	}
	return DefaultCurrency
}

var defaultCurrencyMapper = sync.OnceValue(func() *CurrencyMapper {
	reg, err := registry.LoadDefault()
	if err != nil {
		return NewCurrencyMapper(nil)
	}
	return NewCurrencyMapper(reg.Currencies)
})

// MapCurrency uses the currency synonyms shipped with the default rules.
func MapCurrency(raw string) string {
	return defaultCurrencyMapper().Map(raw)
}
