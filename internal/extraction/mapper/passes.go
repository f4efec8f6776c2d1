// internal/extraction/mapper/passes.go
package mapper

import (
	"fmt"
	"strings"

	"policy-extraction-workers/internal/extraction/normalize"
	"policy-extraction-workers/internal/extraction/resolver"
	"policy-extraction-workers/internal/models"
	"policy-extraction-workers/pkg/registry"
)

func (m *Mapper) mapPolicy(rec *models.PolicyRecord, bag models.ExtractedFieldBag) {
	if v, ok := m.text(bag, registry.FieldPolicyNumber); ok {
		rec.PolicyNumber = v
	}
	if v, ok := m.text(bag, registry.FieldEndorsementNumber); ok {
		rec.EndorsementNumber = v
	}
	if v, ok := m.text(bag, registry.FieldLineOfBusiness); ok {
		rec.LineOfBusiness = strings.ToUpper(v)
	}
	if raw, ok := m.raw(bag, registry.FieldCurrency); ok {
		rec.CurrencyCode = m.currency.Map(raw)
	}
	if v, ok := m.date(rec, bag, registry.FieldStartDate); ok {
		rec.StartDate = v
	}
	if v, ok := m.date(rec, bag, registry.FieldEndDate); ok {
		rec.EndDate = v
	}
	if v, ok := m.date(rec, bag, registry.FieldCreationDate); ok {
		rec.CreationDate = v
	}
}

func (m *Mapper) mapInsured(rec *models.PolicyRecord, bag models.ExtractedFieldBag) {
	if v, ok := m.text(bag, registry.FieldInsuredName); ok {
		rec.InsuredPartyName = v
	}
	if v, ok := m.text(bag, registry.FieldInsuredAddress); ok {
		rec.InsuredAddress = v
	}
	if v, ok := m.text(bag, registry.FieldInsuredLocality); ok {
		rec.InsuredLocality = v
	}
	if v, ok := m.text(bag, registry.FieldInsuredDepartment); ok {
		rec.InsuredDepartment = v
	}
	if raw, ok := m.raw(bag, registry.FieldInsuredDocument); ok {
		rec.TaxOrNationalID = normalize.CleanIdentifier(raw)
	}
	if v, ok := m.text(bag, registry.FieldInsuredEmail); ok {
		email := strings.ToLower(v)
		if normalize.IsValidEmail(email) {
			rec.InsuredEmail = email
		} else {
			rec.AddObservation(fmt.Sprintf("Email descartado por formato inválido: %s.", v))
		}
	}
	if raw, ok := m.raw(bag, registry.FieldInsuredPhone); ok {
		rec.InsuredPhone = normalize.CleanPhone(raw)
	}
}

func (m *Mapper) mapVehicle(rec *models.PolicyRecord, bag models.ExtractedFieldBag) {
	if v, ok := m.text(bag, registry.FieldVehicleMake); ok {
		rec.VehicleMake = strings.ToUpper(v)
	}
	if v, ok := m.text(bag, registry.FieldVehicleModel); ok {
		rec.VehicleModel = v
	}
	if v, ok := m.text(bag, registry.FieldVehicleType); ok {
		rec.VehicleType = v
	}
	if v, ok := m.text(bag, registry.FieldVehicleCategory); ok {
		rec.VehicleCategory = v
	}
	if raw, ok := m.raw(bag, registry.FieldPlate); ok {
		rec.Plate = normalize.CleanPlate(raw)
	}
	if v, ok := m.text(bag, registry.FieldEngineNumber); ok {
		rec.EngineNumber = strings.ToUpper(v)
	}
	if raw, ok := m.raw(bag, registry.FieldRegistrationNumber); ok {
		rec.RegistrationNumber = normalize.CleanIdentifier(raw)
	}
	if v, ok := m.text(bag, registry.FieldChassisNumber); ok {
		rec.ChassisNumber = strings.ToUpper(v)
	}
	if v, ok := m.text(bag, registry.FieldFuelType); ok {
		rec.FuelType = v
	}
	if raw, ok := m.raw(bag, registry.FieldVehicleYear); ok {
		if year, ok := normalize.ParseYear(raw); ok {
			rec.VehicleYear = year
		}
	}
}

func (m *Mapper) mapFinancial(rec *models.PolicyRecord, bag models.ExtractedFieldBag) {
	if v, ok := m.amount(rec, bag, registry.FieldCommercialPremium); ok {
		rec.CommercialPremium = v
	}
	if v, ok := m.amount(rec, bag, registry.FieldTotalPremium); ok {
		rec.TotalPremium = v
	}
	if v, ok := m.amount(rec, bag, registry.FieldTaxAmount); ok {
		rec.TaxAmount = v
	}
	if v, ok := m.amount(rec, bag, registry.FieldInsuredAmount); ok {
		rec.InsuredAmount = v
	}
	if v, ok := m.text(bag, registry.FieldPaymentMethod); ok {
		rec.PaymentMethod = v
	}
	if raw, ok := m.raw(bag, registry.FieldInstallmentCount); ok {
		if n, ok := normalize.ParseInteger(raw); ok {
			rec.InstallmentCount = n
		}
	}
}

func (m *Mapper) mapBroker(rec *models.PolicyRecord, bag models.ExtractedFieldBag) {
	if v, ok := m.text(bag, registry.FieldBrokerName); ok {
		rec.BrokerName = v
	}
	if raw, ok := m.raw(bag, registry.FieldBrokerID); ok {
		if n, ok := normalize.ParseInteger(raw); ok && n > 0 {
			rec.BrokerID = n
		}
	}
}

func (m *Mapper) raw(bag models.ExtractedFieldBag, field string) (string, bool) {
	return resolver.Resolve(bag, m.rules.Aliases(field))
}

func (m *Mapper) text(bag models.ExtractedFieldBag, field string) (string, bool) {
	v, ok := m.raw(bag, field)
	if !ok {
		return "", false
	}
	v = normalize.CleanText(v)
	return v, v != ""
}

// date keeps unrecognised dates as their original text and notes it.
func (m *Mapper) date(rec *models.PolicyRecord, bag models.ExtractedFieldBag, field string) (string, bool) {
	raw, ok := m.raw(bag, field)
	if !ok {
		return "", false
	}
	v, parsed := normalize.ParseDate(raw)
	if !parsed {
		rec.AddObservation(fmt.Sprintf("Fecha no reconocida en %s: %q. Se conserva el texto original.", field, v))
	}
	return v, v != ""
}

func (m *Mapper) amount(rec *models.PolicyRecord, bag models.ExtractedFieldBag, field string) (float64, bool) {
	raw, ok := m.raw(bag, field)
	if !ok {
		return 0, false
	}
	v, parsed := normalize.ParseAmount(raw)
	if !parsed {
		rec.AddObservation(fmt.Sprintf("Importe no reconocido en %s: %q.", field, normalize.CleanText(raw)))
		return 0, false
	}
	return v, true
}
