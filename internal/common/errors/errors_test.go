// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewPolicyValidationFailedError([]string{"policyNumber"}, 60)

	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "POLICY_VALIDATION_FAILED", bpmnErr.Code)
	assert.False(t, bpmnErr.Retryable)
	assert.Equal(t, 0, bpmnErr.Retries)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "POLICY_VALIDATION_FAILED", vars["errorCode"])
	assert.Equal(t, "POLICY_VALIDATION_FAILED", vars["originalErrorCode"])
	assert.Equal(t, []string{"policyNumber"}, vars["missingFields"])
	assert.Equal(t, 60.0, vars["completenessPercentage"])
}

func TestConvertToBPMNError_UnmappedCode(t *testing.T) {
	bpmnErr := ConvertToBPMNError(&StandardError{Code: "SOMETHING_NEW", Retryable: true})
	assert.Equal(t, "SOMETHING_NEW", bpmnErr.Code)
	assert.Equal(t, 0, bpmnErr.Retries)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		jobRetries  int32
		wantAction  JobAction
		wantRetries int32
	}{
		{"business error throws", NewFieldBagInvalidError("fields missing"), 3, ActionThrow, 0},
		{"duplicate throws", NewDuplicatePolicyRecordError("BSE-1", "0", "abc"), 5, ActionThrow, 0},
		{"insert failure retries", NewDatabaseInsertFailedError(fmt.Errorf("conn reset")), 3, ActionFail, 2},
		{"retries capped by code", NewDatabaseInsertFailedError(fmt.Errorf("conn reset")), 10, ActionFail, 3},
		{"last attempt throws", NewDatabaseInsertFailedError(fmt.Errorf("conn reset")), 1, ActionThrow, 0},
		{"timeout retries twice", NewQueryTimeoutError("duplicate_check"), 5, ActionFail, 2},
		{"internal error throws", NewInternalError(fmt.Errorf("nil pointer")), 3, ActionThrow, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, retries := Decide(tt.err, tt.jobRetries)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantRetries, retries)
		})
	}
}

func TestAsStandardError(t *testing.T) {
	original := NewCacheUnavailableError(fmt.Errorf("dial tcp: refused"))
	wrapped := fmt.Errorf("map-policy-fields: %w", original)

	got := AsStandardError(wrapped)
	require.Same(t, original, got)

	plain := AsStandardError(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeFieldBagInvalid:        "EXTRACTION",
		ErrCodeRulesLoadFailed:        "EXTRACTION",
		ErrCodeDatabaseInsertFailed:   "DATABASE",
		ErrCodeDuplicatePolicyRecord:  "DATABASE",
		ErrCodeQueryTimeout:           "DATABASE",
		ErrCodeCacheUnavailable:       "CACHE",
		ErrCodePolicyValidationFailed: "VALIDATION",
		ErrCodePolicyRecordInvalid:    "VALIDATION",
		ErrCodeBrokerUnavailable:      "BROKER",
		ErrCodeInternal:               "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
	assert.True(t, IsRetryableErrorCode(ErrCodeDatabaseInsertFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicatePolicyRecord))
}
