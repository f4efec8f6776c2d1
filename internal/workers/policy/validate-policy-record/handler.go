// internal/workers/policy/validate-policy-record/handler.go
package validatepolicyrecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	apperrors "policy-extraction-workers/internal/common/errors"
	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/common/metrics"
	"policy-extraction-workers/internal/common/observability"
	"policy-extraction-workers/internal/common/validation"
	"policy-extraction-workers/internal/extraction"
	"policy-extraction-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "validate-policy-record"

var ErrPolicyRecordInvalid = errors.New("POLICY_RECORD_INVALID")

type Handler struct {
	config     *Config
	engine     *extraction.Engine
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, engine *extraction.Engine, obs *observability.Observability, log logger.Logger) *Handler {
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

	var output *Output
	input, err := parseInput(job)
	if err == nil {
		output, err = h.execute(ctx, input)
	}
	observability.EndSpan(span, err)

	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		if errors.Is(err, ErrPolicyRecordInvalid) {
			stdErr = apperrors.NewPolicyRecordInvalidError(err.Error())
		}
		timer.Done(string(stdErr.Code))
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	timer.Done("")
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.completeJob(ctx, client, job, output)
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, fmt.Errorf("%w: parse input: %v", ErrPolicyRecordInvalid, err)
	}
	return &input, nil
}

// execute never fails on an incomplete record; validation findings are output.
// Only a document that cannot be checked at all is an error.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	rec := input.PolicyRecord
	if rec == nil {
		rec = models.NewPolicyRecord()
	}

	schemaErrors := []string{}
	schemaResult, err := validation.ValidatePolicyRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPolicyRecordInvalid, err)
	}
	if !schemaResult.Valid {
		schemaErrors = schemaResult.GetErrorMessages()
	}

	result, flagged, review := h.engine.Validate(rec, input.Confidence, input.RequiresReview)
	isValid := result.IsValid && len(schemaErrors) == 0

	metrics.PolicyRecordsMapped.WithLabelValues(strconv.FormatBool(isValid)).Inc()
	metrics.PolicyCompleteness.Observe(result.CompletenessPercentage)

	h.logger.Info("policy record validated", map[string]interface{}{
		"policyNumber":           rec.PolicyNumber,
		"isValid":                isValid,
		"missingFields":          result.MissingFields,
		"completenessPercentage": result.CompletenessPercentage,
		"schemaErrors":           len(schemaErrors),
	})

	return &Output{
		IsValid:                isValid,
		MissingFields:          result.MissingFields,
		CompletenessPercentage: result.CompletenessPercentage,
		LowConfidenceFields:    flagged,
		RequiresReview:         review || len(schemaErrors) > 0,
		SchemaErrors:           schemaErrors,
	}, nil
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
		"jobKey":  job.Key,
		"isValid": output.IsValid,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
