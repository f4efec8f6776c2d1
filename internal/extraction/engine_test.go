// internal/extraction/engine_test.go
package extraction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/extraction/confidence"
	"policy-extraction-workers/internal/extraction/mapper"
	"policy-extraction-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithLogger(logger.NewTestLogger(t)),
		WithClock(func() time.Time { return time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC) }),
	}, opts...)
	e, err := NewDefaultEngine(opts...)
	require.NoError(t, err)
	return e
}

func completeBag(policyNumber string, conf float64) models.ExtractedFieldBag {
	return models.NewFieldBag(map[string]string{
		"numero_poliza":  policyNumber,
		"cliente_nombre": "Juan Pérez",
		"fecha_desde":    "01/07/2024",
		"fecha_hasta":    "01/07/2025",
		"premio_total":   "$U 12.400,00",
		"cuotas_detalle": "1 01/07/2024 $U 6.200,00\n2 01/08/2024 $U 6.200,00",
	}, conf, false)
}

func TestProcess_CompleteBag(t *testing.T) {
	e := createTestEngine(t)

	res := e.Process(completeBag("BSE-AUTO-777", 0.93))

	assert.NotEmpty(t, res.RequestID)
	require.NotNil(t, res.Record)
	assert.Equal(t, "BSE-AUTO-777", res.Record.PolicyNumber)
	assert.Equal(t, 12400.0, res.Record.CommercialPremium)
	assert.Equal(t, 2, res.Schedule.Count)
	assert.Equal(t, 6200.0, res.Schedule.AverageAmount)
	assert.True(t, res.Validation.IsValid)
	assert.Equal(t, 93.0, res.Validation.CompletenessPercentage)
	assert.Empty(t, res.LowConfidenceFields)
	assert.False(t, res.RequiresReview)
}

func TestProcess_LowConfidence(t *testing.T) {
	e := createTestEngine(t)

	bag := models.NewFieldBag(map[string]string{
		"cliente_nombre": "Juan Pérez",
		"premio_total":   "1.000",
	}, 0.60, false)
	res := e.Process(bag)

	assert.False(t, res.Validation.IsValid)
	assert.Contains(t, res.Validation.MissingFields, "policyNumber")
	assert.Equal(t, 60.0, res.Validation.CompletenessPercentage)
	assert.Equal(t, []string{"policyNumber", "startDate", "endDate", "commercialPremium"}, res.LowConfidenceFields)
	assert.True(t, res.RequiresReview)
	assert.Empty(t, res.Schedule.Installments)
}

func TestProcess_UpstreamReviewFlag(t *testing.T) {
	e := createTestEngine(t)

	bag := completeBag("BSE-1", 0.99)
	bag.RequiresReview = true

	res := e.Process(bag)
	assert.True(t, res.Validation.IsValid)
	assert.True(t, res.RequiresReview)
}

func TestProcess_CustomSettings(t *testing.T) {
	e := createTestEngine(t,
		WithThresholds(confidence.Thresholds{MinCompleteness: 95}),
		WithDefaults(mapper.Defaults{LineOfBusiness: "MOTO", Currency: "USD"}),
	)

	res := e.Process(completeBag("BSE-2", 0.93))

	assert.False(t, res.Validation.IsValid)
	assert.Empty(t, res.Validation.MissingFields)
	assert.Equal(t, "MOTO", res.Record.LineOfBusiness)
	assert.Equal(t, 0, res.Record.BrokerID)
}

func TestProcessBatch_PreservesOrder(t *testing.T) {
	e := createTestEngine(t)

	bags := make([]models.ExtractedFieldBag, 25)
	for i := range bags {
		bags[i] = completeBag(fmt.Sprintf("POL-%02d", i), 0.9)
	}

	for _, limit := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			results, err := e.ProcessBatch(context.Background(), bags, limit)
			require.NoError(t, err)
			require.Len(t, results, len(bags))
			for i, res := range results {
				assert.Equal(t, fmt.Sprintf("POL-%02d", i), res.Record.PolicyNumber)
			}
		})
	}
}

func TestProcessBatch_Empty(t *testing.T) {
	e := createTestEngine(t)

	results, err := e.ProcessBatch(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessBatch_CancelledContext(t *testing.T) {
	e := createTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := e.ProcessBatch(ctx, []models.ExtractedFieldBag{completeBag("A", 0.9)}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Record)
}

func TestProcess_IsDeterministicApartFromRequestID(t *testing.T) {
	e := createTestEngine(t)
	bag := completeBag("BSE-9", 0.8)

	first := e.Process(bag)
	second := e.Process(bag)

	assert.NotEqual(t, first.RequestID, second.RequestID)
	first.RequestID, second.RequestID = "", ""
	assert.Equal(t, first, second)
}
