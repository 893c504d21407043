package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	WorkflowInitialPawn        = "initial_pawn"
	WorkflowInstallmentPayment = "installment_payment"
	WorkflowSettlement         = "settlement"
	WorkflowVoidInvoice        = "void_invoice"
)

const (
	WorkflowReasonDeadlineExceeded     = "deadline_exceeded"
	WorkflowReasonDBLockTimeout        = "db_lock_timeout"
	WorkflowReasonSerializationFailure = "serialization_failure"
	WorkflowReasonUniqueViolation      = "unique_violation"
	WorkflowReasonBusinessRule         = "business_rule"
	WorkflowReasonDB                   = "db"
	WorkflowReasonUnknown              = "unknown"
)

const (
	LockResourceLoan            = "loan"
	LockResourceInvoiceSequence = "invoice_sequence"
)

// WorkflowMetrics captures pawn workflow health as prometheus series served on /metrics.
type WorkflowMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	lockWait *prometheus.HistogramVec
}

var (
	workflowMetricsOnce sync.Once
	workflowMetrics     *WorkflowMetrics
)

// Workflow returns the process-wide workflow metrics registered on the default registerer.
func Workflow(cfg Config) *WorkflowMetrics {
	workflowMetricsOnce.Do(func() {
		workflowMetrics = NewWorkflowMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workflowMetrics
}

func NewWorkflowMetrics(registerer prometheus.Registerer, cfg Config) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "pawnshop"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pawnshop_workflow_runs_total",
		Help:        "Pawn workflow runs by name.",
		ConstLabels: constLabels,
	}, []string{"workflow"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "pawnshop_workflow_duration_seconds",
		Help:        "Pawn workflow latency including the surrounding database transaction.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"workflow"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "pawnshop_workflow_errors_total",
		Help:        "Pawn workflow failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"workflow", "reason"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "pawnshop_lock_wait_seconds",
		Help:        "Time spent acquiring per-loan and invoice sequence locks.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"resource"})

	registerer.MustRegister(runs, duration, errs, lockWait)

	return &WorkflowMetrics{
		runs:     runs,
		duration: duration,
		errors:   errs,
		lockWait: lockWait,
	}
}

// Observe records one workflow run and its latency. A non-empty reason
// counts the run as failed.
func (m *WorkflowMetrics) Observe(workflow string, started time.Time, reason string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(workflow).Inc()
	m.duration.WithLabelValues(workflow).Observe(time.Since(started).Seconds())
	if reason != "" {
		m.errors.WithLabelValues(workflow, reason).Inc()
	}
}

func (m *WorkflowMetrics) ObserveLockWait(resource string, d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.lockWait.WithLabelValues(resource).Observe(d.Seconds())
}

// ClassifyWorkflowError maps workflow errors to low-cardinality reasons.
func ClassifyWorkflowError(err error) string {
	if err == nil {
		return WorkflowReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WorkflowReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return WorkflowReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return WorkflowReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return WorkflowReasonUniqueViolation
	}
	if isDBError(err) {
		return WorkflowReasonDB
	}
	return WorkflowReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrInvalidValue) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
