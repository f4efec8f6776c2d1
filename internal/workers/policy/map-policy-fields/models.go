// internal/workers/policy/map-policy-fields/models.go
package mappolicyfields

import "policy-extraction-workers/internal/models"

// Input is the OCR collaborator's field bag plus its file metadata.
type Input struct {
	FileID         string            `json:"fileId,omitempty"`
	FileName       string            `json:"fileName,omitempty"`
	Fields         map[string]string `json:"fields"`
	Confidence     float64           `json:"confidence"`
	RequiresReview bool              `json:"requiresReview"`
}

type Output struct {
	RequestID           string                     `json:"requestId"`
	RulesVersion        string                     `json:"rulesVersion"`
	PolicyRecord        *models.PolicyRecord       `json:"policyRecord"`
	Installments        models.InstallmentSchedule `json:"installments"`
	Validation          models.ValidationResult    `json:"validation"`
	LowConfidenceFields []string                   `json:"lowConfidenceFields"`
	RequiresReview      bool                       `json:"requiresReview"`
	CacheHit            bool                       `json:"cacheHit"`
}
