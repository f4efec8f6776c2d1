// internal/workers/policy/store-policy-record/handler.go
package storepolicyrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "policy-extraction-workers/internal/common/errors"
	"policy-extraction-workers/internal/common/logger"
	"policy-extraction-workers/internal/common/metrics"
	"policy-extraction-workers/internal/common/observability"
	"policy-extraction-workers/internal/common/validation"
	"policy-extraction-workers/internal/extraction"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "store-policy-record"

	uniqueViolation pq.ErrorCode = "23505"
)

var (
	ErrPolicyRecordInvalid    = errors.New("POLICY_RECORD_INVALID")
	ErrPolicyValidationFailed = errors.New("POLICY_VALIDATION_FAILED")
	ErrDuplicatePolicyRecord  = errors.New("DUPLICATE_POLICY_RECORD")
	ErrDatabaseInsertFailed   = errors.New("DATABASE_INSERT_FAILED")
)

type Handler struct {
	config     *Config
	db         *sql.DB
	engine     *extraction.Engine
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(config *Config, db *sql.DB, engine *extraction.Engine, obs *observability.Observability, log logger.Logger) *Handler {
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
		db:         db,
		engine:     engine,
		obs:        obs,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
		now:        time.Now,
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
		err = fmt.Errorf("%w: %w", ErrPolicyRecordInvalid, apperrors.NewPolicyRecordInvalidError("parse input: "+err.Error()))
	} else {
		output, err = h.execute(ctx, &input)
	}
	observability.EndSpan(span, err)

	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		timer.Done(string(stdErr.Code))
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	timer.Done("")
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.completeJob(ctx, client, job, output)
}

// execute gates the record on its validation, rejects duplicates by policy and
// endorsement number, and inserts it. Every error wraps both a sentinel and the
// StandardError reported to the broker.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	rec := input.PolicyRecord
	if rec == nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyRecordInvalid, apperrors.NewPolicyRecordInvalidError("policyRecord is required"))
	}

	schemaResult, err := validation.ValidatePolicyRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyRecordInvalid, apperrors.NewPolicyRecordInvalidError(err.Error()))
	}
	if !schemaResult.Valid {
		details := strings.Join(schemaResult.GetErrorMessages(), "; ")
		return nil, fmt.Errorf("%w: %w", ErrPolicyRecordInvalid, apperrors.NewPolicyRecordInvalidError(details))
	}

	result := input.Validation
	if result == nil {
		computed, _, _ := h.engine.Validate(rec, input.Confidence, input.RequiresReview)
		result = &computed
	}

	status := StatusStored
	if !result.IsValid {
		if !input.ManualOverride {
			return nil, fmt.Errorf("%w: %w", ErrPolicyValidationFailed,
				apperrors.NewPolicyValidationFailedError(result.MissingFields, result.CompletenessPercentage))
		}
		status = StatusStoredWithOverride
		h.logger.Warn("storing invalid record on manual override", map[string]interface{}{
			"policyNumber":  rec.PolicyNumber,
			"missingFields": result.MissingFields,
		})
	}

	var existingID string
	err = h.db.QueryRowContext(ctx, `
		SELECT id FROM policy_records
		WHERE policy_number = $1 AND endorsement_number = $2`,
		rec.PolicyNumber, rec.EndorsementNumber).Scan(&existingID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %w", ErrDuplicatePolicyRecord,
			apperrors.NewDuplicatePolicyRecordError(rec.PolicyNumber, rec.EndorsementNumber, existingID))
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %w", ErrDatabaseInsertFailed, databaseError("duplicate_check", err))
	}

	recordID := uuid.New().String()
	storedAt := h.now().UTC().Format(time.RFC3339)

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseInsertFailed, apperrors.NewDatabaseInsertFailedError(err))
	}
	var installmentsJSON interface{}
	if input.Installments != nil {
		data, err := json.Marshal(input.Installments)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseInsertFailed, apperrors.NewDatabaseInsertFailedError(err))
		}
		installmentsJSON = data
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO policy_records (
			id, policy_number, endorsement_number, line_of_business, currency_code,
			start_date, end_date, commercial_premium, completeness, requires_review,
			status, source_file_id, record, installments, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		recordID,
		rec.PolicyNumber,
		rec.EndorsementNumber,
		rec.LineOfBusiness,
		rec.CurrencyCode,
		sqlDate(rec.StartDate),
		sqlDate(rec.EndDate),
		rec.CommercialPremium,
		result.CompletenessPercentage,
		input.RequiresReview || status == StatusStoredWithOverride,
		status,
		input.FileID,
		recordJSON,
		installmentsJSON,
		storedAt,
	)
	if isUniqueViolation(err) {
		// a concurrent store won the race between the duplicate check and the insert
		return nil, fmt.Errorf("%w: %w", ErrDuplicatePolicyRecord,
			apperrors.NewDuplicatePolicyRecordError(rec.PolicyNumber, rec.EndorsementNumber, ""))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseInsertFailed, databaseError("insert", err))
	}

	// Audit entry is best effort.
	auditDetailsJSON, err := json.Marshal(map[string]interface{}{
		"policyNumber":           rec.PolicyNumber,
		"endorsementNumber":      rec.EndorsementNumber,
		"fileId":                 input.FileID,
		"fileName":               input.FileName,
		"status":                 status,
		"completenessPercentage": result.CompletenessPercentage,
		"missingFields":          result.MissingFields,
	})
	if err != nil {
		auditDetailsJSON = []byte("{}")
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"policy_record_stored",
		"policy_record",
		recordID,
		auditDetailsJSON,
		storedAt,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":    err,
			"recordId": recordID,
		})
	}

	metrics.PolicyRecordsStored.WithLabelValues(status).Inc()
	h.logger.Info("policy record stored", map[string]interface{}{
		"recordId":     recordID,
		"policyNumber": rec.PolicyNumber,
		"status":       status,
		"fileId":       input.FileID,
	})

	return &Output{
		RecordID:     recordID,
		PolicyNumber: rec.PolicyNumber,
		Status:       status,
		StoredAt:     storedAt,
	}, nil
}

func databaseError(queryType string, err error) *apperrors.StandardError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewQueryTimeoutError(queryType)
	}
	if queryType == "insert" {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return apperrors.NewQueryExecutionFailedError(queryType, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// sqlDate passes ISO dates through and stores anything else as NULL; the
// original text stays in the JSON record.
func sqlDate(s string) interface{} {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return nil
	}
	return s
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
		"recordId": output.RecordID,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
