// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/extraction"
	"policy-extraction-workers/internal/models"

	extractinstallments "policy-extraction-workers/internal/workers/policy/extract-installments"
	mappolicyfields "policy-extraction-workers/internal/workers/policy/map-policy-fields"
	storepolicyrecord "policy-extraction-workers/internal/workers/policy/store-policy-record"
	validatepolicyrecord "policy-extraction-workers/internal/workers/policy/validate-policy-record"
)

type pipeline struct {
	mapper    *mappolicyfields.Handler
	installer *extractinstallments.Handler
	validator *validatepolicyrecord.Handler
	store     *storepolicyrecord.Handler
	mock      sqlmock.Sqlmock
	redis     *miniredis.Miniredis
}

func setupPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := logger.NewTestLogger(t)

	engine, err := extraction.NewDefaultEngine(
		extraction.WithLogger(log),
		extraction.WithClock(func() time.Time { return time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return &pipeline{
		mapper: mappolicyfields.NewHandler(
			&mappolicyfields.Config{Timeout: 5 * time.Second, CacheTTL: time.Hour},
			engine, rdb, nil, log),
		installer: extractinstallments.NewHandler(extractinstallments.LoadConfig(), engine, nil, log),
		validator: validatepolicyrecord.NewHandler(validatepolicyrecord.LoadConfig(), engine, nil, log),
		store:     storepolicyrecord.NewHandler(storepolicyrecord.LoadConfig(), db, engine, nil, log),
		mock:      mock,
		redis:     mr,
	}
}

func ocrFields() map[string]string {
	return map[string]string{
		"numero_poliza":     "SURA-AUTO-2024-0042",
		"endoso":            "0",
		"asegurado":         "María Fernández",
		"documento":         "1.234.567-8",
		"email":             "maria@example.com",
		"vigencia_desde":    "15/03/2024",
		"vigencia_hasta":    "15 de marzo de 2025",
		"moneda":            "Dólares",
		"premio":            "US$ 1,250.00",
		"marca":             "toyota",
		"matricula":         "sbc 1234",
		"cantidad_cuotas":   "3 cuotas",
		"detalle_de_cuotas": "1 15/03/2024 US$ 416,67\n2 15/04/2024 US$ 416,67\n3 15/05/2024 US$ 416,66",
	}
}

func TestPolicyPipeline_MapValidateStore(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	mapped, err := p.mapper.Execute(ctx, &mappolicyfields.Input{
		FileID:     "file-42",
		FileName:   "sura-auto.pdf",
		Fields:     ocrFields(),
		Confidence: 0.91,
	})
	require.NoError(t, err)
	rec := mapped.PolicyRecord
	require.NotNil(t, rec)
	assert.Equal(t, "SURA-AUTO-2024-0042", rec.PolicyNumber)
	assert.Equal(t, "USD", rec.CurrencyCode)
	assert.Equal(t, "2024-03-15", rec.StartDate)
	assert.Equal(t, "2025-03-15", rec.EndDate)
	assert.Equal(t, 1250.0, rec.CommercialPremium)
	assert.Equal(t, 3, mapped.Installments.Count)
	assert.True(t, mapped.Validation.IsValid)

	installments, err := p.installer.Execute(ctx, &extractinstallments.Input{
		FileID:           "file-42",
		Fields:           ocrFields(),
		InstallmentCount: rec.InstallmentCount,
	})
	require.NoError(t, err)
	assert.Equal(t, mapped.Installments, installments.Installments)
	assert.True(t, installments.ScheduleFound)
	assert.True(t, installments.CountMatches)

	validated, err := p.validator.Execute(ctx, &validatepolicyrecord.Input{
		PolicyRecord: rec,
		Confidence:   0.91,
	})
	require.NoError(t, err)
	assert.True(t, validated.IsValid)
	assert.Empty(t, validated.SchemaErrors)
	assert.Equal(t, mapped.Validation.CompletenessPercentage, validated.CompletenessPercentage)

	p.mock.ExpectQuery(`SELECT id FROM policy_records`).
		WithArgs("SURA-AUTO-2024-0042", "0").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	p.mock.ExpectExec(`INSERT INTO policy_records`).WillReturnResult(sqlmock.NewResult(1, 1))
	p.mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(1, 1))

	stored, err := p.store.Execute(ctx, &storepolicyrecord.Input{
		FileID:       "file-42",
		FileName:     "sura-auto.pdf",
		PolicyRecord: rec,
		Installments: &mapped.Installments,
		Validation: &models.ValidationResult{
			IsValid:                validated.IsValid,
			MissingFields:          validated.MissingFields,
			CompletenessPercentage: validated.CompletenessPercentage,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, storepolicyrecord.StatusStored, stored.Status)
	assert.NotEmpty(t, stored.RecordID)
	assert.NoError(t, p.mock.ExpectationsWereMet())
}

func TestPolicyPipeline_IncompleteDocumentIsRefused(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	fields := ocrFields()
	delete(fields, "premio")

	mapped, err := p.mapper.Execute(ctx, &mappolicyfields.Input{Fields: fields, Confidence: 0.91})
	require.NoError(t, err)
	assert.False(t, mapped.Validation.IsValid)
	assert.Contains(t, mapped.Validation.MissingFields, "commercialPremium")
	assert.True(t, mapped.RequiresReview)

	_, err = p.store.Execute(ctx, &storepolicyrecord.Input{
		PolicyRecord: mapped.PolicyRecord,
		Validation:   &mapped.Validation,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storepolicyrecord.ErrPolicyValidationFailed))
	assert.NoError(t, p.mock.ExpectationsWereMet())
}

func TestPolicyPipeline_RepeatedDocumentHitsCache(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()
	input := &mappolicyfields.Input{Fields: ocrFields(), Confidence: 0.91}

	first, err := p.mapper.Execute(ctx, input)
	require.NoError(t, err)
	second, err := p.mapper.Execute(ctx, input)
	require.NoError(t, err)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.PolicyRecord, second.PolicyRecord)
	assert.Len(t, p.redis.Keys(), 1)
}
