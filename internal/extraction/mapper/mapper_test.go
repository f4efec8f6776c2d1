// internal/extraction/mapper/mapper_test.go
package mapper

import (
	"errors"
	"testing"
	"time"

	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/extraction/normalize"
	"policy-extraction-workers/internal/models"
	"policy-extraction-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC)

func createTestMapper(t *testing.T, opts ...Option) *Mapper {
	t.Helper()
	rules, err := registry.LoadDefault()
	require.NoError(t, err)

	opts = append([]Option{
		WithLogger(logger.NewTestLogger(t)),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return New(rules, opts...)
}

func bag(fields map[string]string) models.ExtractedFieldBag {
	return models.NewFieldBag(fields, 0.92, false)
}

// ==========================
// End-to-end Scenarios
// ==========================

func TestMap_CoreIdentifiers(t *testing.T) {
	m := createTestMapper(t)

	rec := m.Map(bag(map[string]string{
		"numero_poliza":      "BSE-AUTO-123  \n",
		"cliente_documento":  "1.234.567-8",
		"vehiculo_matricula": "SBD-1234",
		"premio_total":       "$UYU 15,000.50",
	}))

	require.NotNil(t, rec)
	assert.Equal(t, "BSE-AUTO-123", rec.PolicyNumber)
	assert.Equal(t, "12345678", rec.TaxOrNationalID)
	assert.Equal(t, "SBD1234", rec.Plate)
	assert.Equal(t, 15000.50, rec.CommercialPremium)
	assert.Equal(t, 15000.50, rec.TotalPremium)
}

func TestMap_EqualDatesAreRepaired(t *testing.T) {
	m := createTestMapper(t)

	rec := m.Map(bag(map[string]string{
		"fecha_desde": "15/03/2024",
		"fecha_hasta": "15/03/2024",
	}))

	assert.Equal(t, "2024-03-15", rec.StartDate)
	assert.Equal(t, "2025-03-15", rec.EndDate)
	assert.True(t, rec.HasObservation(normalize.DateCorrectedNote))
}

func TestMap_EmptyBag(t *testing.T) {
	m := createTestMapper(t)

	rec := m.Map(bag(map[string]string{}))

	require.NotNil(t, rec)
	assert.Equal(t, "", rec.PolicyNumber)
	assert.Equal(t, "", rec.InsuredPartyName)
	assert.Equal(t, 0.0, rec.CommercialPremium)
	assert.True(t, rec.IsActive)
	assert.False(t, rec.IsProcessed)

	// missing start becomes today, end one year later
	assert.Equal(t, "2024-06-10", rec.StartDate)
	assert.Equal(t, "2025-06-10", rec.EndDate)

	assert.Equal(t, "AUTO", rec.LineOfBusiness)
	assert.Equal(t, "UYU", rec.CurrencyCode)
	assert.Equal(t, 2, rec.BrokerID)
	assert.Equal(t, 20, rec.CategoryID)
	assert.ElementsMatch(t, []string{"lineOfBusiness", "currencyCode", "brokerId", "categoryId"}, rec.DefaultedFields)
}

func TestMap_FullDocument(t *testing.T) {
	m := createTestMapper(t)

	rec := m.Map(bag(map[string]string{
		"poliza.numero":        "AUTO-998877",
		"endoso":               "0",
		"ramo":                 "Automóviles",
		"moneda":               "Dólares",
		"vigencia_desde":       "01/07/2024",
		"vigencia_hasta":       "2025-07-01",
		"fecha_emision":        "28 de junio de 2024",
		"asegurado_nombre":     "  María\nFernández ",
		"direccion":            "Av. Italia 2345",
		"localidad":            "Montevideo",
		"departamento":         "Montevideo",
		"rut":                  "21.234.567-0018",
		"EMAIL":                "Maria.Fernandez@Correo.com.uy",
		"telefono":             "+598 (99) 123-456",
		"marca":                "toyota",
		"modelo":               "Corolla XEI",
		"tipo_vehiculo":        "Sedán",
		"categoria":            "Particular",
		"matricula":            "sbd 4321",
		"motor":                "2zr-1234567",
		"padron":               "903.112",
		"chasis":               "9bwzzz377vt004251",
		"combustible":          "Nafta",
		"anio":                 "Año 2021",
		"prima_comercial":      "USD 1.250,00",
		"premio_total":         "USD 1.525,00",
		"iva":                  "275",
		"suma_asegurada":       "U$S 25.000",
		"forma_pago":           "Débito automático",
		"cantidad_cuotas":      "10 cuotas",
		"corredor":             "Seguros del Sur Corredores",
		"codigo_corredor":      "Cod. 145",
	}))

	assert.Equal(t, "AUTO-998877", rec.PolicyNumber)
	assert.Equal(t, "0", rec.EndorsementNumber)
	assert.Equal(t, "AUTOMÓVILES", rec.LineOfBusiness)
	assert.Equal(t, "USD", rec.CurrencyCode)
	assert.Equal(t, "2024-07-01", rec.StartDate)
	assert.Equal(t, "2025-07-01", rec.EndDate)
	assert.Equal(t, "2024-06-28", rec.CreationDate)

	assert.Equal(t, "María Fernández", rec.InsuredPartyName)
	assert.Equal(t, "Av. Italia 2345", rec.InsuredAddress)
	assert.Equal(t, "Montevideo", rec.InsuredLocality)
	assert.Equal(t, "Montevideo", rec.InsuredDepartment)
	assert.Equal(t, "212345670018", rec.TaxOrNationalID)
	assert.Equal(t, "maria.fernandez@correo.com.uy", rec.InsuredEmail)
	assert.Equal(t, "59899123456", rec.InsuredPhone)

	assert.Equal(t, "TOYOTA", rec.VehicleMake)
	assert.Equal(t, "Corolla XEI", rec.VehicleModel)
	assert.Equal(t, "Sedán", rec.VehicleType)
	assert.Equal(t, "Particular", rec.VehicleCategory)
	assert.Equal(t, "SBD4321", rec.Plate)
	assert.Equal(t, "2ZR-1234567", rec.EngineNumber)
	assert.Equal(t, "903112", rec.RegistrationNumber)
	assert.Equal(t, "9BWZZZ377VT004251", rec.ChassisNumber)
	assert.Equal(t, "Nafta", rec.FuelType)
	assert.Equal(t, 2021, rec.VehicleYear)

	assert.Equal(t, 1250.0, rec.CommercialPremium)
	assert.Equal(t, 1525.0, rec.TotalPremium)
	assert.Equal(t, 275.0, rec.TaxAmount)
	assert.Equal(t, 25000.0, rec.InsuredAmount)
	assert.Equal(t, "Débito automático", rec.PaymentMethod)
	assert.Equal(t, 10, rec.InstallmentCount)

	assert.Equal(t, "Seguros del Sur Corredores", rec.BrokerName)
	assert.Equal(t, 145, rec.BrokerID)

	assert.Empty(t, rec.Observations)
	assert.Equal(t, []string{"categoryId"}, rec.DefaultedFields)
}

// ==========================
// Degraded Input
// ==========================

func TestMap_InvalidEmailIsDropped(t *testing.T) {
	m := createTestMapper(t)

	rec := m.Map(bag(map[string]string{"email": "juan at correo"}))

	assert.Equal(t, "", rec.InsuredEmail)
	assert.True(t, rec.HasObservation("Email descartado"))
}

func TestMap_UnparseableValuesAreKeptOrNoted(t *testing.T) {
	m := createTestMapper(t)

	rec := m.Map(bag(map[string]string{
		"fecha_desde":  "a confirmar",
		"premio_total": "según condiciones",
	}))

	assert.Equal(t, "a confirmar", rec.StartDate)
	assert.Equal(t, "", rec.EndDate)
	assert.Equal(t, 0.0, rec.CommercialPremium)
	assert.True(t, rec.HasObservation("Fecha no reconocida en startDate"))
	assert.True(t, rec.HasObservation("Importe no reconocido en commercialPremium"))
}

func TestMap_PanickingPassIsRecovered(t *testing.T) {
	tests := []struct {
		name    string
		cause   interface{}
		wantMsg string
	}{
		{"string panic", "índice fuera de rango", "Error en mapeo automático: índice fuera de rango. Revisar manualmente."},
		{"error panic", errors.New("nil map"), "Error en mapeo automático: nil map. Revisar manualmente."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := createTestMapper(t)
			m.passes = append([]pass{{name: "explosive", apply: func(*models.PolicyRecord, models.ExtractedFieldBag) {
				panic(tt.cause)
			}}}, m.passes...)

			var rec *models.PolicyRecord
			assert.NotPanics(t, func() {
				rec = m.Map(bag(map[string]string{
					"numero_poliza":      "BSE-1",
					"vehiculo_matricula": "AAA-111",
				}))
			})

			require.NotNil(t, rec)
			assert.True(t, rec.HasObservation(tt.wantMsg))
			// passes after the failing one still ran
			assert.Equal(t, "BSE-1", rec.PolicyNumber)
			assert.Equal(t, "AAA111", rec.Plate)
		})
	}
}

func TestMap_CustomDefaults(t *testing.T) {
	m := createTestMapper(t, WithDefaults(Defaults{
		LineOfBusiness: "HOGAR",
		Currency:       "USD",
		BrokerID:       7,
		CategoryID:     3,
	}))

	rec := m.Map(bag(map[string]string{"moneda": "pesos"}))

	assert.Equal(t, "HOGAR", rec.LineOfBusiness)
	assert.Equal(t, "UYU", rec.CurrencyCode)
	assert.Equal(t, 7, rec.BrokerID)
	assert.Equal(t, 3, rec.CategoryID)
	assert.NotContains(t, rec.DefaultedFields, "currencyCode")
}

func TestMap_IsDeterministic(t *testing.T) {
	m := createTestMapper(t)
	input := bag(map[string]string{
		"numero_poliza": "X-1",
		"Numero_Poliza": "X-2",
		"fecha_desde":   "01/01/2024",
		"premio":        "1.000",
	})

	first := m.Map(input)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, m.Map(input))
	}
}
