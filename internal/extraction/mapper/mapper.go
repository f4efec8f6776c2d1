// Package mapper turns an OCR field bag into a PolicyRecord. Mapping never fails:
// missing or unusable fields are left at their defaults and any unexpected panic in
// a pass is turned into an observation on the partial record.
package mapper

import (
	"fmt"
	"time"

	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/extraction/normalize"
	"policy-extraction-workers/internal/models"
	"policy-extraction-workers/pkg/registry"
)

const (
	PassPolicy    = "policy"
	PassInsured   = "insured"
	PassVehicle   = "vehicle"
	PassFinancial = "financial"
	PassBroker    = "broker"
)

// Defaults are the deployment-specific fallbacks for the few attributes that
// downstream consumers cannot accept blank.
type Defaults struct {
	LineOfBusiness string
	Currency       string
	BrokerID       int
	CategoryID     int
}

func DefaultValues() Defaults {
	return Defaults{
		LineOfBusiness: "AUTO",
		Currency:       normalize.DefaultCurrency,
		BrokerID:       2,
		CategoryID:     20,
	}
}

type pass struct {
	name  string
	apply func(rec *models.PolicyRecord, bag models.ExtractedFieldBag)
}

type Mapper struct {
	rules    *registry.RulesRegistry
	currency *normalize.CurrencyMapper
	defaults Defaults
	logger   logger.Logger
	now      func() time.Time
	passes   []pass
}

type Option func(*Mapper)

func WithDefaults(d Defaults) Option {
	return func(m *Mapper) { m.defaults = d }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Mapper) { m.logger = logger.OrNoOp(l) }
}

// WithClock replaces the source of "today" used when the start date is missing.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) { m.now = now }
}

func New(rules *registry.RulesRegistry, opts ...Option) *Mapper {
	m := &Mapper{
		rules:    rules,
		currency: normalize.NewCurrencyMapper(rules.Currencies),
		defaults: DefaultValues(),
		logger:   logger.NewNoOpLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	// the passes write disjoint attributes, so their order is not significant
	m.passes = []pass{
		{name: PassPolicy, apply: m.mapPolicy},
		{name: PassInsured, apply: m.mapInsured},
		{name: PassVehicle, apply: m.mapVehicle},
		{name: PassFinancial, apply: m.mapFinancial},
		{name: PassBroker, apply: m.mapBroker},
	}
	return m
}

// Map builds a new record from bag. It always returns a non-nil record.
func (m *Mapper) Map(bag models.ExtractedFieldBag) (rec *models.PolicyRecord) {
	rec = models.NewPolicyRecord()
	defer func() {
		if r := recover(); r != nil {
			m.recordFailure(rec, "record", r)
		}
	}()

	for _, p := range m.passes {
		m.run(p, rec, bag)
		if p.name == PassPolicy {
			normalize.RepairDateRange(rec, m.now())
		}
	}
	m.applyDefaults(rec)

	m.logger.Debug("policy fields mapped", map[string]interface{}{
		"fieldCount":      bag.Len(),
		"policyNumber":    rec.PolicyNumber,
		"defaultedFields": rec.DefaultedFields,
	})
	return rec
}

func (m *Mapper) run(p pass, rec *models.PolicyRecord, bag models.ExtractedFieldBag) {
	defer func() {
		if r := recover(); r != nil {
			m.recordFailure(rec, p.name, r)
		}
	}()
	p.apply(rec, bag)
}

func (m *Mapper) recordFailure(rec *models.PolicyRecord, stage string, cause interface{}) {
	msg := fmt.Sprint(cause)
	if err, ok := cause.(error); ok {
		msg = err.Error()
	}
	rec.AddObservation(fmt.Sprintf("Error en mapeo automático: %s. Revisar manualmente.", msg))
	m.logger.Error("mapping pass failed", map[string]interface{}{
		"pass":  stage,
		"cause": msg,
	})
}

func (m *Mapper) applyDefaults(rec *models.PolicyRecord) {
	if rec.LineOfBusiness == "" && m.defaults.LineOfBusiness != "" {
		rec.LineOfBusiness = m.defaults.LineOfBusiness
		rec.MarkDefaulted(registry.FieldLineOfBusiness)
	}
	if rec.CurrencyCode == "" && m.defaults.Currency != "" {
		rec.CurrencyCode = m.defaults.Currency
		rec.MarkDefaulted("currencyCode")
	}
	if rec.BrokerID == 0 && m.defaults.BrokerID != 0 {
		rec.BrokerID = m.defaults.BrokerID
		rec.MarkDefaulted(registry.FieldBrokerID)
	}
	if rec.CategoryID == 0 && m.defaults.CategoryID != 0 {
		rec.CategoryID = m.defaults.CategoryID
		rec.MarkDefaulted("categoryId")
	}
}
