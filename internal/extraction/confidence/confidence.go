// Package confidence decides whether a mapped record is complete enough for automatic
// submission and which fields a reviewer should double-check.
package confidence

import (
	"strings"

	"github.com/shopspring/decimal"

	"policy-extraction-workers/internal/models"
	"policy-extraction-workers/pkg/registry"
)

// Thresholds gate validation. Confidences are fractions in [0,1]; MinCompleteness
// is a percentage.
type Thresholds struct {
	MinCompleteness  float64
	LowConfidence    float64
	ReviewConfidence float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCompleteness:  70,
		LowConfidence:    0.70,
		ReviewConfidence: 0.85,
	}
}

var (
	lowConfidenceSet = []string{
		registry.FieldPolicyNumber,
		registry.FieldStartDate,
		registry.FieldEndDate,
		registry.FieldCommercialPremium,
	}
	reviewConfidenceSet = []string{
		registry.FieldCommercialPremium,
		registry.FieldInsuredAmount,
	}
)

type Validator struct {
	thresholds Thresholds
}

// New returns a validator; zero thresholds are replaced by the defaults.
func New(t Thresholds) *Validator {
	d := DefaultThresholds()
	if t.MinCompleteness <= 0 {
		t.MinCompleteness = d.MinCompleteness
	}
	if t.LowConfidence <= 0 {
		t.LowConfidence = d.LowConfidence
	}
	if t.ReviewConfidence <= 0 {
		t.ReviewConfidence = d.ReviewConfidence
	}
	return &Validator{thresholds: t}
}

func (v *Validator) Thresholds() Thresholds {
	return v.thresholds
}

// Validate checks the required fields and gates on the upstream confidence.
// A nil record is reported with every required field missing.
func (v *Validator) Validate(rec *models.PolicyRecord, confidence float64) models.ValidationResult {
	if rec == nil {
		rec = &models.PolicyRecord{}
	}

	missing := make([]string, 0, 5)
	if blank(rec.PolicyNumber) {
		missing = append(missing, registry.FieldPolicyNumber)
	}
	if blank(rec.InsuredPartyName) {
		missing = append(missing, "insuredPartyName")
	}
	if blank(rec.StartDate) {
		missing = append(missing, registry.FieldStartDate)
	}
	if blank(rec.EndDate) {
		missing = append(missing, registry.FieldEndDate)
	}
	if rec.CommercialPremium <= 0 {
		missing = append(missing, registry.FieldCommercialPremium)
	}

	completeness := Percentage(confidence)
	return models.ValidationResult{
		IsValid:                len(missing) == 0 && completeness >= v.thresholds.MinCompleteness,
		MissingFields:          missing,
		CompletenessPercentage: completeness,
	}
}

// LowConfidenceFields flags a fixed subset of high-value fields from the aggregate
// confidence. The result is advisory.
func (v *Validator) LowConfidenceFields(confidence float64) []string {
	c := fraction(confidence)
	switch {
	case c < v.thresholds.LowConfidence:
		return append([]string{}, lowConfidenceSet...)
	case c < v.thresholds.ReviewConfidence:
		return append([]string{}, reviewConfidenceSet...)
	default:
		return []string{}
	}
}

// RequiresReview is true when upstream asked for it, the record is not valid, or
// any field was flagged.
func (v *Validator) RequiresReview(upstream bool, result models.ValidationResult, flagged []string) bool {
	return upstream || !result.IsValid || len(flagged) > 0
}

// Percentage expresses confidence as a percentage rounded to two decimals. Values
// above 1 are taken as already being percentages; the result is clamped to [0,100].
func Percentage(confidence float64) float64 {
	if confidence <= 0 {
		return 0
	}
	d := decimal.NewFromFloat(confidence)
	if confidence <= 1 {
		d = d.Mul(decimal.NewFromInt(100))
	}
	if d.GreaterThan(decimal.NewFromInt(100)) {
		d = decimal.NewFromInt(100)
	}
	f, _ := d.Round(2).Float64()
	return f
}

func fraction(confidence float64) float64 {
	if confidence > 1 {
		return Percentage(confidence) / 100
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

var defaultValidator = New(DefaultThresholds())

// Validate uses the default thresholds.
func Validate(rec *models.PolicyRecord, confidence float64) models.ValidationResult {
	return defaultValidator.Validate(rec, confidence)
}

// LowConfidenceFields uses the default thresholds.
func LowConfidenceFields(confidence float64) []string {
	return defaultValidator.LowConfidenceFields(confidence)
}
