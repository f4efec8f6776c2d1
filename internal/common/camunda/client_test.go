// internal/common/camunda/client_test.go
package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"policy-extraction-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestExecuteWithRetry_RecoversFromTransientErrors(t *testing.T) {
	calls := 0
	err := executeWithRetry(context.Background(), testRetryConfig(), "topology", func(context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := executeWithRetry(context.Background(), testRetryConfig(), "deploy", func(context.Context) error {
		calls++
		return stderrors.New("rpc error: code = PermissionDenied")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errors.ErrCodeBrokerUnavailable, errors.AsStandardError(err).Code)
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := executeWithRetry(context.Background(), testRetryConfig(), "topology", func(context.Context) error {
		calls++
		return stderrors.New("context deadline exceeded")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "BROKER_UNAVAILABLE")
}

func TestExecuteWithRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry := &RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
	err := executeWithRetry(ctx, retry, "topology", func(context.Context) error {
		return stderrors.New("unavailable")
	})

	require.Error(t, err)
	assert.Contains(t, errors.AsStandardError(err).Details, "cancelled after 1 attempts")
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(stderrors.New("Connection Reset by peer")))
	assert.True(t, isRetryableZeebeError(stderrors.New("broken pipe")))
	assert.False(t, isRetryableZeebeError(stderrors.New("not found")))
}
