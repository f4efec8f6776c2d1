// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Extraction engine metrics.
var (
	PolicyRecordsMapped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_records_mapped_total",
			Help: "Field bags mapped to policy records, by validation outcome",
		},
		[]string{"valid"},
	)

	PolicyCompleteness = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policy_completeness_percentage",
			Help:    "Completeness percentage of mapped policy records",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100},
		},
	)

	PolicyInstallmentsFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "policy_installments_found",
			Help:    "Installments extracted per document",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 10, 12, 24},
		},
	)

	MappingCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_mapping_cache_requests_total",
			Help: "Mapping cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	PolicyRecordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_records_stored_total",
			Help: "Policy records written to the local store, by status",
		},
		[]string{"status"},
	)
)

// JobTimer tracks one job for a task type. Call Done with "" on success or the
// error code on failure.
type JobTimer struct {
	taskType string
	start    time.Time
}

func StartJob(taskType string) *JobTimer {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobTimer{taskType: taskType, start: time.Now()}
}

func (t *JobTimer) Done(errorCode string) time.Duration {
	elapsed := time.Since(t.start)
	WorkerJobsActive.WithLabelValues(t.taskType).Dec()
	WorkerJobDuration.WithLabelValues(t.taskType).Observe(elapsed.Seconds())
	if errorCode != "" {
		WorkerJobsFailed.WithLabelValues(t.taskType, errorCode).Inc()
	} else {
		WorkerJobsCompleted.WithLabelValues(t.taskType).Inc()
	}
	return elapsed
}
