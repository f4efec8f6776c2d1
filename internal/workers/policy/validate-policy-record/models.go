// internal/workers/policy/validate-policy-record/models.go
package validatepolicyrecord

import "policy-extraction-workers/internal/models"

type Input struct {
	PolicyRecord   *models.PolicyRecord `json:"policyRecord"`
	Confidence     float64              `json:"confidence"`
	RequiresReview bool                 `json:"requiresReview"`
}

type Output struct {
	IsValid                bool     `json:"isValid"`
	MissingFields          []string `json:"missingFields"`
	CompletenessPercentage float64  `json:"completenessPercentage"`
	LowConfidenceFields    []string `json:"lowConfidenceFields"`
	RequiresReview         bool     `json:"requiresReview"`
	SchemaErrors           []string `json:"schemaErrors"`
}
