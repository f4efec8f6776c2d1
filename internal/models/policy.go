// internal/models/policy.go
package models

import (
	"sort"
	"strings"
)

// ExtractedFieldBag is the flat key/value output of the OCR collaborator.
// It is read-only once built; keys are kept exactly as the OCR process emitted them.
type ExtractedFieldBag struct {
	fields         map[string]string
	keys           []string
	Confidence     float64
	RequiresReview bool
}

// NewFieldBag copies fields so later changes to the caller's map cannot leak in.
func NewFieldBag(fields map[string]string, confidence float64, requiresReview bool) ExtractedFieldBag {
	copied := make(map[string]string, len(fields))
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		copied[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return ExtractedFieldBag{
		fields:         copied,
		keys:           keys,
		Confidence:     confidence,
		RequiresReview: requiresReview,
	}
}

// Get returns the raw value stored under the exact key.
func (b ExtractedFieldBag) Get(key string) (string, bool) {
	v, ok := b.fields[key]
	return v, ok
}

// Keys returns the bag keys in sorted order.
func (b ExtractedFieldBag) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

func (b ExtractedFieldBag) Len() int {
	return len(b.fields)
}

// Fields returns a copy of the underlying map.
func (b ExtractedFieldBag) Fields() map[string]string {
	out := make(map[string]string, len(b.fields))
	for k, v := range b.fields {
		out[k] = v
	}
	return out
}

// PolicyRecord is the canonical result of mapping a field bag.
// String attributes are never nil; absent values stay as "".
type PolicyRecord struct {
	// Policy identity
	PolicyNumber      string `json:"policyNumber"`
	EndorsementNumber string `json:"endorsementNumber"`
	LineOfBusiness    string `json:"lineOfBusiness"`
	CurrencyCode      string `json:"currencyCode"`
	StartDate         string `json:"startDate"`
	EndDate           string `json:"endDate"`
	CreationDate      string `json:"creationDate"`

	// Insured party
	InsuredPartyName  string `json:"insuredPartyName"`
	InsuredAddress    string `json:"insuredAddress"`
	InsuredLocality   string `json:"insuredLocality"`
	InsuredDepartment string `json:"insuredDepartment"`
	TaxOrNationalID   string `json:"taxOrNationalId"`
	InsuredEmail      string `json:"insuredEmail"`
	InsuredPhone      string `json:"insuredPhone"`

	// Vehicle
	VehicleMake        string `json:"vehicleMake"`
	VehicleModel       string `json:"vehicleModel"`
	VehicleType        string `json:"vehicleType"`
	VehicleCategory    string `json:"vehicleCategory"`
	Plate              string `json:"plate"`
	EngineNumber       string `json:"engineNumber"`
	RegistrationNumber string `json:"registrationNumber"`
	ChassisNumber      string `json:"chassisNumber"`
	FuelType           string `json:"fuelType"`
	VehicleYear        int    `json:"vehicleYear"`

	// Financial terms
	CommercialPremium float64 `json:"commercialPremium"`
	TotalPremium      float64 `json:"totalPremium"`
	TaxAmount         float64 `json:"taxAmount"`
	InsuredAmount     float64 `json:"insuredAmount"`
	PaymentMethod     string  `json:"paymentMethod"`
	InstallmentCount  int     `json:"installmentCount"`

	// Broker
	BrokerName string `json:"brokerName"`
	BrokerID   int    `json:"brokerId"`
	CategoryID int    `json:"categoryId"`

	// Bookkeeping
	IsActive        bool     `json:"isActive"`
	IsProcessed     bool     `json:"isProcessed"`
	Observations    string   `json:"observations"`
	DefaultedFields []string `json:"defaultedFields"`
}

// NewPolicyRecord returns a record with the bookkeeping defaults applied.
func NewPolicyRecord() *PolicyRecord {
	return &PolicyRecord{
		IsActive:        true,
		DefaultedFields: []string{},
	}
}

// AddObservation appends a diagnostic line to the observation trail.
func (r *PolicyRecord) AddObservation(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if r.Observations == "" {
		r.Observations = note
		return
	}
	r.Observations += "\n" + note
}

// HasObservation reports whether the trail contains the given text.
func (r *PolicyRecord) HasObservation(text string) bool {
	return strings.Contains(r.Observations, text)
}

// MarkDefaulted records that an attribute was filled from a configured default.
func (r *PolicyRecord) MarkDefaulted(field string) {
	for _, f := range r.DefaultedFields {
		if f == field {
			return
		}
	}
	r.DefaultedFields = append(r.DefaultedFields, field)
}

// Clone returns a deep copy; corrections are applied to copies, never in place.
func (r *PolicyRecord) Clone() *PolicyRecord {
	c := *r
	c.DefaultedFields = append([]string{}, r.DefaultedFields...)
	return &c
}

const InstallmentStatusPending = "PENDING"

type Installment struct {
	Number  int     `json:"number"`
	DueDate string  `json:"dueDate"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
}

// InstallmentSchedule is the ordered payment plan found in the document.
// An empty schedule is a valid result.
type InstallmentSchedule struct {
	Installments  []Installment `json:"installments"`
	Count         int           `json:"count"`
	AverageAmount float64       `json:"averageAmount"`
	TotalAmount   float64       `json:"totalAmount"`
	First         *Installment  `json:"first,omitempty"`
}

type ValidationResult struct {
	IsValid                bool     `json:"isValid"`
	MissingFields          []string `json:"missingFields"`
	CompletenessPercentage float64  `json:"completenessPercentage"`
}
