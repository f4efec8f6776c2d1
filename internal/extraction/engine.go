// Package extraction composes the resolver, normalizers, mapper, installment extractor
// and validator into a single engine. The engine holds no mutable state; one value
// may serve any number of concurrent callers.
package extraction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/extraction/confidence"
	"policy-extraction-workers/internal/extraction/installments"
	"policy-extraction-workers/internal/extraction/mapper"
	"policy-extraction-workers/internal/models"
	"policy-extraction-workers/pkg/registry"
)

// Result is everything derived from one field bag.
type Result struct {
	RequestID           string                     `json:"requestId"`
	Record              *models.PolicyRecord       `json:"policyRecord"`
	Schedule            models.InstallmentSchedule `json:"installments"`
	Validation          models.ValidationResult    `json:"validation"`
	LowConfidenceFields []string                   `json:"lowConfidenceFields"`
	RequiresReview      bool                       `json:"requiresReview"`
}

type Engine struct {
	rules     *registry.RulesRegistry
	mapper    *mapper.Mapper
	extractor *installments.Extractor
	validator *confidence.Validator
	logger    logger.Logger
}

type options struct {
	logger     logger.Logger
	defaults   mapper.Defaults
	thresholds confidence.Thresholds
	now        func() time.Time
}

type Option func(*options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = logger.OrNoOp(l) }
}

func WithDefaults(d mapper.Defaults) Option {
	return func(o *options) { o.defaults = d }
}

func WithThresholds(t confidence.Thresholds) Option {
	return func(o *options) { o.thresholds = t }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewEngine builds an engine over rules. It fails only when the schedule patterns
// in rules do not compile.
func NewEngine(rules *registry.RulesRegistry, opts ...Option) (*Engine, error) {
	o := options{
		logger:     logger.NewNoOpLogger(),
		defaults:   mapper.DefaultValues(),
		thresholds: confidence.DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	extractor, err := installments.New(rules, installments.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	return &Engine{
		rules: rules,
		mapper: mapper.New(rules,
			mapper.WithDefaults(o.defaults),
			mapper.WithLogger(o.logger),
			mapper.WithClock(o.now),
		),
		extractor: extractor,
		validator: confidence.New(o.thresholds),
		logger:    o.logger,
	}, nil
}

// NewDefaultEngine uses the embedded rules and default settings.
func NewDefaultEngine(opts ...Option) (*Engine, error) {
	rules, err := registry.LoadDefault()
	if err != nil {
		return nil, err
	}
	return NewEngine(rules, opts...)
}

func (e *Engine) RulesVersion() string {
	return e.rules.Version
}

func (e *Engine) Map(bag models.ExtractedFieldBag) *models.PolicyRecord {
	return e.mapper.Map(bag)
}

func (e *Engine) ExtractInstallments(bag models.ExtractedFieldBag) models.InstallmentSchedule {
	return e.extractor.Extract(bag)
}

// Validate checks rec against the configured thresholds and flags fields for review.
func (e *Engine) Validate(rec *models.PolicyRecord, conf float64, upstreamReview bool) (models.ValidationResult, []string, bool) {
	result := e.validator.Validate(rec, conf)
	flagged := e.validator.LowConfidenceFields(conf)
	return result, flagged, e.validator.RequiresReview(upstreamReview, result, flagged)
}

// Process maps, extracts and validates one bag. It never fails.
func (e *Engine) Process(bag models.ExtractedFieldBag) Result {
	rec := e.mapper.Map(bag)
	schedule := e.extractor.Extract(bag)
	validation, flagged, review := e.Validate(rec, bag.Confidence, bag.RequiresReview)

	res := Result{
		RequestID:           uuid.NewString(),
		Record:              rec,
		Schedule:            schedule,
		Validation:          validation,
		LowConfidenceFields: flagged,
		RequiresReview:      review,
	}

	e.logger.Info("field bag processed", map[string]interface{}{
		"requestId":     res.RequestID,
		"rulesVersion":  e.rules.Version,
		"policyNumber":  rec.PolicyNumber,
		"isValid":       validation.IsValid,
		"missingFields": validation.MissingFields,
		"installments":  schedule.Count,
	})
	return res
}

// ProcessBatch processes bags with at most limit running at once (limit <= 0 means
// no bound). Results keep the order of bags. The only error is cancellation of ctx,
// in which case the bags not yet started are left as zero results.
func (e *Engine) ProcessBatch(ctx context.Context, bags []models.ExtractedFieldBag, limit int) ([]Result, error) {
	results := make([]Result, len(bags))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, bag := range bags {
		if gctx.Err() != nil {
			break
		}
		i, bag := i, bag
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Process(bag)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
