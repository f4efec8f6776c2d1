// internal/workers/policy/extract-installments/models.go
package extractinstallments

import "policy-extraction-workers/internal/models"

type Input struct {
	FileID           string            `json:"fileId,omitempty"`
	Fields           map[string]string `json:"fields"`
	InstallmentCount int               `json:"installmentCount,omitempty"` // declared on the policy, 0 when unknown
}

type Output struct {
	Installments  models.InstallmentSchedule `json:"installments"`
	ScheduleFound bool                       `json:"scheduleFound"`
	// CountMatches is false only when a declared count disagrees with the rows found.
	CountMatches bool `json:"countMatches"`
}
