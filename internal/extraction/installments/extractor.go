// Package installments finds a payment schedule inside the free-text fields of an
// OCR field bag.
package installments

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/extraction/normalize"
	"policy-extraction-workers/internal/models"
	"policy-extraction-workers/pkg/registry"
)

// Strategy names, reported in logs.
const (
	StrategyPrimary = "primary"
	StrategyLines   = "line-scan"
	StrategyFirst   = "first-installment"
	StrategyNone    = "none"
)

type Extractor struct {
	patterns *registry.SchedulePatterns
	tokens   []string
	logger   logger.Logger
}

type Option func(*Extractor)

func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) { e.logger = logger.OrNoOp(l) }
}

// New compiles the schedule patterns of rules. It fails only on a broken rules file.
func New(rules *registry.RulesRegistry, opts ...Option) (*Extractor, error) {
	patterns, err := rules.SchedulePatterns()
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		patterns: patterns,
		logger:   logger.NewNoOpLogger(),
	}
	for _, tok := range patterns.CandidateTokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			e.tokens = append(e.tokens, normalize.Fold(tok))
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract returns the schedule found in bag. Finding nothing is not an error: the
// result then has an empty installment list.
func (e *Extractor) Extract(bag models.ExtractedFieldBag) models.InstallmentSchedule {
	values := e.candidates(bag)

	strategy := StrategyPrimary
	found := e.scanPrimary(values)
	if len(found) == 0 {
		strategy = StrategyLines
		found = e.scanLines(values)
	}
	if len(found) == 0 {
		strategy = StrategyFirst
		if first, ok := e.scanFirst(values); ok {
			found = append(found, first)
		}
	}
	if len(found) == 0 {
		strategy = StrategyNone
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Number != found[j].Number {
			return found[i].Number < found[j].Number
		}
		return found[i].DueDate < found[j].DueDate
	})

	e.logger.Debug("installment schedule scanned", map[string]interface{}{
		"candidateFields": len(values),
		"strategy":        strategy,
		"installments":    len(found),
	})
	return NewSchedule(found)
}

// candidates returns, in sorted key order, the values of fields whose key or value
// mentions a schedule token.
func (e *Extractor) candidates(bag models.ExtractedFieldBag) []string {
	var out []string
	for _, k := range bag.Keys() {
		v, _ := bag.Get(k)
		if strings.TrimSpace(v) == "" {
			continue
		}
		if e.mentionsSchedule(k) || e.mentionsSchedule(v) {
			out = append(out, v)
		}
	}
	return out
}

func (e *Extractor) mentionsSchedule(s string) bool {
	folded := normalize.Fold(s)
	for _, tok := range e.tokens {
		if strings.Contains(folded, tok) {
			return true
		}
	}
	return false
}

func (e *Extractor) scanPrimary(values []string) []models.Installment {
	var out []models.Installment
	for _, v := range values {
		for _, m := range e.patterns.Primary.FindAllStringSubmatch(v, -1) {
			if inst, ok := row(m[1], m[2], m[3]); ok {
				out = append(out, inst)
			}
		}
	}
	return out
}

// scanLines tries the labeled pattern on every line, then the permissive one.
func (e *Extractor) scanLines(values []string) []models.Installment {
	var out []models.Installment
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			m := e.patterns.Labeled.FindStringSubmatch(line)
			if m == nil {
				m = e.patterns.Permissive.FindStringSubmatch(line)
			}
			if m == nil {
				continue
			}
			if inst, ok := row(m[1], m[2], m[3]); ok {
				out = append(out, inst)
			}
		}
	}
	return out
}

func (e *Extractor) scanFirst(values []string) (models.Installment, bool) {
	for _, v := range values {
		m := e.patterns.FirstInstallment.FindStringSubmatch(v)
		if m == nil {
			continue
		}
		if inst, ok := row("1", m[1], m[2]); ok {
			return inst, true
		}
	}
	return models.Installment{}, false
}

func row(number, date, amount string) (models.Installment, bool) {
	n, err := strconv.Atoi(number)
	if err != nil {
		return models.Installment{}, false
	}
	due, ok := normalize.ParseScheduleDate(date)
	if !ok {
		return models.Installment{}, false
	}
	value, ok := normalize.ParseAmount(amount)
	if !ok {
		return models.Installment{}, false
	}
	return models.Installment{
		Number:  n,
		DueDate: due,
		Amount:  value,
		Status:  models.InstallmentStatusPending,
	}, true
}

// NewSchedule derives count, total, average and first from an ordered list.
func NewSchedule(list []models.Installment) models.InstallmentSchedule {
	s := models.InstallmentSchedule{
		Installments: make([]models.Installment, 0, len(list)),
	}
	s.Installments = append(s.Installments, list...)
	s.Count = len(s.Installments)
	if s.Count == 0 {
		return s
	}

	total := decimal.Zero
	for _, inst := range s.Installments {
		total = total.Add(decimal.NewFromFloat(inst.Amount))
	}
	s.TotalAmount, _ = total.Round(2).Float64()
	s.AverageAmount, _ = total.Div(decimal.NewFromInt(int64(s.Count))).Round(2).Float64()

	first := s.Installments[0]
	s.First = &first
	return s
}
