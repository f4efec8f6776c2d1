// internal/workers/policy/extract-installments/handler.go
package extractinstallments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "extract-installments"

var ErrFieldBagInvalid = errors.New("FIELD_BAG_INVALID")

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

	var input Input
	var output *Output
	err := json.Unmarshal([]byte(job.Variables), &input)
	if err != nil {
		err = fmt.Errorf("%w: parse input: %v", ErrFieldBagInvalid, err)
	} else {
		output, err = h.execute(ctx, &input)
	}
	observability.EndSpan(span, err)

	if err != nil {
		timer.Done(string(apperrors.ErrCodeFieldBagInvalid))
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errHandler.HandleJobError(ctx, client, job, apperrors.NewFieldBagInvalidError(err.Error()))
		return
	}

	timer.Done("")
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	result, err := validation.ValidateFieldBag(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFieldBagInvalid, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrFieldBagInvalid, strings.Join(result.GetErrorMessages(), "; "))
	}
	if input.InstallmentCount < 0 {
		return nil, fmt.Errorf("%w: installmentCount must not be negative", ErrFieldBagInvalid)
	}

	schedule := h.engine.ExtractInstallments(models.NewFieldBag(input.Fields, 0, false))
	metrics.PolicyInstallmentsFound.Observe(float64(schedule.Count))

	output := &Output{
		Installments:  schedule,
		ScheduleFound: schedule.Count > 0,
		CountMatches:  input.InstallmentCount == 0 || input.InstallmentCount == schedule.Count,
	}
	if !output.CountMatches {
		h.logger.Warn("installment count differs from declared count", map[string]interface{}{
			"fileId":   input.FileID,
			"declared": input.InstallmentCount,
			"found":    schedule.Count,
		})
	}

	h.logger.Info("installments extracted", map[string]interface{}{
		"fileId":      input.FileID,
		"count":       schedule.Count,
		"totalAmount": schedule.TotalAmount,
	})
	return output, nil
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
		"jobKey": job.Key,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
