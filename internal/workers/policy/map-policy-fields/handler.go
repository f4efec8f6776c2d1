// internal/workers/policy/map-policy-fields/handler.go
package mappolicyfields

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "policy-extraction-workers/internal/common/errors"
	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/common/metrics"
	"policy-extraction-workers/internal/common/observability"
	"policy-extraction-workers/internal/common/validation"
	"policy-extraction-workers/internal/extraction"
	"policy-extraction-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType       = "map-policy-fields"
	cacheKeyPrefix = "policy:mapping:"
)

var ErrFieldBagInvalid = errors.New("FIELD_BAG_INVALID")

type Handler struct {
	config     *Config
	engine     *extraction.Engine
	redis      *redis.Client
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler wires the worker. redis may be nil, which disables caching.
func NewHandler(config *Config, engine *extraction.Engine, redis *redis.Client, obs *observability.Observability, log logger.Logger) *Handler {
	cfg := *config
	if cfg.Timeout <= 0 {
		cfg.Timeout = LoadConfig().Timeout
	}
	if obs == nil {
		obs = &observability.Observability{}
	}
	log = logger.OrNoOp(log).WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     &cfg,
		engine:     engine,
		redis:      redis,
		obs:        obs,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})
	timer := metrics.StartJob(TaskType)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("jobKey", job.Key))

	var input Input
	err := json.Unmarshal([]byte(job.Variables), &input)
	if err != nil {
		err = fmt.Errorf("%w: parse input: %v", ErrFieldBagInvalid, err)
	}

	var output *Output
	if err == nil {
		output, err = h.execute(ctx, &input)
	}
	observability.EndSpan(span, err)

	if err != nil {
		stdErr := toStandardError(err)
		elapsed := timer.Done(string(stdErr.Code))
		h.obs.RecordJobDuration(ctx, TaskType, elapsed, "failed")
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	elapsed := timer.Done("")
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, "completed")
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := validation.ValidateFieldBag(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFieldBagInvalid, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrFieldBagInvalid, strings.Join(result.GetErrorMessages(), "; "))
	}

	bag := models.NewFieldBag(input.Fields, input.Confidence, input.RequiresReview)
	key := h.cacheKey(bag)

	if cached, ok := h.lookup(ctx, key); ok {
		cached.CacheHit = true
		h.logger.Info("mapping served from cache", map[string]interface{}{
			"fileId":       input.FileID,
			"policyNumber": cached.PolicyRecord.PolicyNumber,
		})
		return cached, nil
	}

	res := h.engine.Process(bag)
	output := &Output{
		RequestID:           res.RequestID,
		RulesVersion:        h.engine.RulesVersion(),
		PolicyRecord:        res.Record,
		Installments:        res.Schedule,
		Validation:          res.Validation,
		LowConfidenceFields: res.LowConfidenceFields,
		RequiresReview:      res.RequiresReview,
	}

	metrics.PolicyRecordsMapped.WithLabelValues(strconv.FormatBool(res.Validation.IsValid)).Inc()
	metrics.PolicyCompleteness.Observe(res.Validation.CompletenessPercentage)
	metrics.PolicyInstallmentsFound.Observe(float64(res.Schedule.Count))
	h.obs.RecordFieldsResolved(ctx, res.Record.CurrencyCode, populatedFields(res.Record))

	h.store(ctx, key, output)

	h.logger.Info("policy fields mapped", map[string]interface{}{
		"fileId":                 input.FileID,
		"fileName":               input.FileName,
		"requestId":              res.RequestID,
		"policyNumber":           res.Record.PolicyNumber,
		"isValid":                res.Validation.IsValid,
		"completenessPercentage": res.Validation.CompletenessPercentage,
		"requiresReview":         res.RequiresReview,
	})
	return output, nil
}

// cacheKey hashes everything that can change the engine's answer: the rules
// version, the sorted fields, the confidence and the upstream review flag.
func (h *Handler) cacheKey(bag models.ExtractedFieldBag) string {
	sum := sha256.New()
	fmt.Fprintf(sum, "rules=%s\n", h.engine.RulesVersion())
	for _, k := range bag.Keys() {
		v, _ := bag.Get(k)
		fmt.Fprintf(sum, "%q=%q\n", k, v)
	}
	fmt.Fprintf(sum, "confidence=%s\nreview=%t\n",
		strconv.FormatFloat(bag.Confidence, 'f', -1, 64), bag.RequiresReview)
	return cacheKeyPrefix + hex.EncodeToString(sum.Sum(nil))
}

func (h *Handler) cacheEnabled() bool {
	return h.redis != nil && h.config.CacheTTL > 0
}

func (h *Handler) lookup(ctx context.Context, key string) (*Output, bool) {
	if !h.cacheEnabled() {
		return nil, false
	}

	val, err := h.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.MappingCacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.MappingCacheRequests.WithLabelValues("error").Inc()
		h.logger.Warn("mapping cache read failed", map[string]interface{}{
			"error": apperrors.NewCacheUnavailableError(err).Details,
			"key":   key,
		})
		return nil, false
	}

	var cached Output
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.PolicyRecord == nil {
		metrics.MappingCacheRequests.WithLabelValues("error").Inc()
		h.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key})
		return nil, false
	}
	metrics.MappingCacheRequests.WithLabelValues("hit").Inc()
	return &cached, true
}

func (h *Handler) store(ctx context.Context, key string, output *Output) {
	if !h.cacheEnabled() {
		return
	}
	data, err := json.Marshal(output)
	if err != nil {
		h.logger.Warn("failed to marshal mapping for cache", map[string]interface{}{"error": err})
		return
	}
	if err := h.redis.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("mapping cache write failed", map[string]interface{}{
			"error": apperrors.NewCacheUnavailableError(err).Details,
			"key":   key,
		})
	}
}

// populatedFields counts the non-blank string attributes of rec.
func populatedFields(rec *models.PolicyRecord) int {
	raw, err := json.Marshal(rec)
	if err != nil {
		return 0
	}
	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return 0
	}
	n := 0
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

func toStandardError(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrFieldBagInvalid):
		return apperrors.NewFieldBagInvalidError(err.Error())
	default:
		return apperrors.AsStandardError(err)
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":   job.Key,
		"cacheHit": output.CacheHit,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
