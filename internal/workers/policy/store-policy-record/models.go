// internal/workers/policy/store-policy-record/models.go
package storepolicyrecord

import "policy-extraction-workers/internal/models"

type Input struct {
	FileID         string                      `json:"fileId"`
	FileName       string                      `json:"fileName"`
	PolicyRecord   *models.PolicyRecord        `json:"policyRecord"`
	Installments   *models.InstallmentSchedule `json:"installments,omitempty"`
	Validation     *models.ValidationResult    `json:"validation,omitempty"` // recomputed from confidence when absent
	Confidence     float64                     `json:"confidence"`
	RequiresReview bool                        `json:"requiresReview"`
	ManualOverride bool                        `json:"manualOverride"`
}

type Output struct {
	RecordID     string `json:"recordId"`
	PolicyNumber string `json:"policyNumber"`
	Status       string `json:"status"`
	StoredAt     string `json:"storedAt"` // ISO 8601
}

const (
	StatusStored             = "stored"
	StatusStoredWithOverride = "stored_with_override"
)
