// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"policy-extraction-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFieldBag(t *testing.T) {
	tests := []struct {
		name      string
		document  map[string]interface{}
		wantValid bool
		wantCode  string
	}{
		{
			name: "valid bag",
			document: map[string]interface{}{
				"fileId":         "f-1",
				"fields":         map[string]interface{}{"numero_poliza": "BSE-1"},
				"confidence":     0.9,
				"requiresReview": false,
			},
			wantValid: true,
		},
		{
			name:      "empty fields object is valid",
			document:  map[string]interface{}{"fields": map[string]interface{}{}},
			wantValid: true,
		},
		{
			name:      "missing fields",
			document:  map[string]interface{}{"fileId": "f-1"},
			wantValid: false,
			wantCode:  "required",
		},
		{
			name:      "non-string field value",
			document:  map[string]interface{}{"fields": map[string]interface{}{"premio": 1500}},
			wantValid: false,
			wantCode:  "invalid_type",
		},
		{
			name:      "negative confidence",
			document:  map[string]interface{}{"fields": map[string]interface{}{}, "confidence": -0.5},
			wantValid: false,
			wantCode:  "number_gte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateFieldBag(tt.document)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid, result.GetErrorMessages())
			if tt.wantCode != "" {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.wantCode, result.Errors[0].Code)
			}
		})
	}
}

func TestValidatePolicyRecord(t *testing.T) {
	rec := models.NewPolicyRecord()
	rec.PolicyNumber = "BSE-1"
	rec.StartDate = "2024-03-15"
	rec.EndDate = "2025-03-15"
	rec.CurrencyCode = "UYU"
	rec.CommercialPremium = 1500

	result, err := ValidatePolicyRecord(rec)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.GetErrorMessages())

	rec.CurrencyCode = "GBP"
	result, err = ValidatePolicyRecord(rec)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("currencyCode"))
	assert.Len(t, result.GetErrorsForField("currencyCode"), 1)
}

func TestValidatePolicyRecord_WrongTypes(t *testing.T) {
	result, err := ValidatePolicyRecord(map[string]interface{}{
		"policyNumber":      "BSE-1",
		"startDate":         "2024-03-15",
		"endDate":           "2025-03-15",
		"currencyCode":      "USD",
		"commercialPremium": "1500",
		"isActive":          true,
		"vehicleYear":       2020.5,
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("commercialPremium"))
	assert.True(t, result.HasErrors("vehicleYear"))
}

func TestNewSchema_Invalid(t *testing.T) {
	_, err := NewSchema("broken", []byte(`{"type": 12}`))
	assert.Error(t, err)

	_, err = Lookup("does-not-exist")
	assert.Error(t, err)
}
