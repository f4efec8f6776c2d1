// pkg/registry/schema.go
package registry

import "regexp"

// Field names understood by the mapper. Each one must carry at least one alias.
const (
	FieldPolicyNumber       = "policyNumber"
	FieldEndorsementNumber  = "endorsementNumber"
	FieldLineOfBusiness     = "lineOfBusiness"
	FieldCurrency           = "currency"
	FieldStartDate          = "startDate"
	FieldEndDate            = "endDate"
	FieldCreationDate       = "creationDate"
	FieldInsuredName        = "insuredName"
	FieldInsuredAddress     = "insuredAddress"
	FieldInsuredLocality    = "insuredLocality"
	FieldInsuredDepartment  = "insuredDepartment"
	FieldInsuredDocument    = "insuredDocument"
	FieldInsuredEmail       = "insuredEmail"
	FieldInsuredPhone       = "insuredPhone"
	FieldVehicleMake        = "vehicleMake"
	FieldVehicleModel       = "vehicleModel"
	FieldVehicleType        = "vehicleType"
	FieldVehicleCategory    = "vehicleCategory"
	FieldPlate              = "plate"
	FieldEngineNumber       = "engineNumber"
	FieldRegistrationNumber = "registrationNumber"
	FieldChassisNumber      = "chassisNumber"
	FieldFuelType           = "fuelType"
	FieldVehicleYear        = "vehicleYear"
	FieldCommercialPremium  = "commercialPremium"
	FieldTotalPremium       = "totalPremium"
	FieldTaxAmount          = "taxAmount"
	FieldInsuredAmount      = "insuredAmount"
	FieldPaymentMethod      = "paymentMethod"
	FieldInstallmentCount   = "installmentCount"
	FieldBrokerName         = "brokerName"
	FieldBrokerID           = "brokerId"
)

var KnownFields = []string{
	FieldPolicyNumber, FieldEndorsementNumber, FieldLineOfBusiness, FieldCurrency,
	FieldStartDate, FieldEndDate, FieldCreationDate,
	FieldInsuredName, FieldInsuredAddress, FieldInsuredLocality, FieldInsuredDepartment,
	FieldInsuredDocument, FieldInsuredEmail, FieldInsuredPhone,
	FieldVehicleMake, FieldVehicleModel, FieldVehicleType, FieldVehicleCategory, FieldPlate,
	FieldEngineNumber, FieldRegistrationNumber, FieldChassisNumber, FieldFuelType, FieldVehicleYear,
	FieldCommercialPremium, FieldTotalPremium, FieldTaxAmount, FieldInsuredAmount,
	FieldPaymentMethod, FieldInstallmentCount,
	FieldBrokerName, FieldBrokerID,
}

// SupportedCurrencies is the closed set mapCurrency may return.
var SupportedCurrencies = []string{"UYU", "USD", "EUR", "ARS", "BRL"}

type RulesRegistry struct {
	Version     string              `yaml:"version" json:"version"`
	LastUpdated string              `yaml:"lastUpdated" json:"lastUpdated"`
	Fields      map[string][]string `yaml:"fields" json:"fields"`
	Currencies  []CurrencyRule      `yaml:"currencies" json:"currencies"`
	Schedule    ScheduleRules       `yaml:"schedule" json:"schedule"`
}

type CurrencyRule struct {
	Code     string   `yaml:"code" json:"code"`
	Synonyms []string `yaml:"synonyms" json:"synonyms"`
}

type ScheduleRules struct {
	CandidateTokens  []string `yaml:"candidateTokens" json:"candidateTokens"`
	Primary          string   `yaml:"primary" json:"primary"`
	Labeled          string   `yaml:"labeled" json:"labeled"`
	Permissive       string   `yaml:"permissive" json:"permissive"`
	FirstInstallment string   `yaml:"firstInstallment" json:"firstInstallment"`
}

// SchedulePatterns holds the compiled schedule regexes.
// Row patterns capture (number, date, amount); FirstInstallment captures (date, amount).
type SchedulePatterns struct {
	CandidateTokens  []string
	Primary          *regexp.Regexp
	Labeled          *regexp.Regexp
	Permissive       *regexp.Regexp
	FirstInstallment *regexp.Regexp
}
