// Package metrics provides the Prometheus counters, gauges, and histograms
// tracepilot exposes at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized collection of application metrics covering
// ingest throughput, the LLM executor, grading, evaluation, optimization,
// and the HTTP API itself.
type Metrics struct {
	// TracesIngested counts POST /http-traces submissions by outcome
	// (persisted|deduped|parse_error).
	TracesIngested *prometheus.CounterVec

	// TraceMatched counts whether an ingested trace was bound to an
	// Implementation by the template matcher, the auto-creator, or left
	// unmatched.
	// Labels: method (submitted|matched|auto_created|unmatched)
	TraceMatched *prometheus.CounterVec

	// AutoCreateRuns counts cluster+infer+auto-create attempts by outcome
	// (created|bound_existing|no_eligible_cluster).
	AutoCreateRuns *prometheus.CounterVec

	// LLMRequestDuration measures executor call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts executor calls by provider, model, status.
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption by provider, model, type
	// (prompt|completion|cached|reasoning).
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD accumulates estimated spend by provider and model.
	LLMCostUSD *prometheus.CounterVec

	// GradeRequestDuration measures one grader LLM call in seconds.
	GradeRequestDuration *prometheus.HistogramVec

	// GradeErrors counts grader call failures by grader_id.
	GradeErrors *prometheus.CounterVec

	// EvaluationDuration measures one full Evaluation run in seconds.
	EvaluationDuration *prometheus.HistogramVec

	// EvaluationCounter counts evaluations by terminal status
	// (completed|failed).
	EvaluationCounter *prometheus.CounterVec

	// OptimizationIterations counts optimization loop iterations by
	// outcome (improved|no_improvement|generation_failed).
	OptimizationIterations *prometheus.CounterVec

	// HTTPRequestDuration measures API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts API requests.
	HTTPRequestCounter *prometheus.CounterVec
}

// New creates and registers every metric with the default Prometheus
// registry. Call once at process startup.
func New() *Metrics {
	return &Metrics{
		TracesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_traces_ingested_total",
				Help: "Total number of HTTP traces submitted to the ingest pipeline by outcome",
			},
			[]string{"outcome"},
		),

		TraceMatched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_trace_binding_total",
				Help: "Total number of traces bound to an implementation by method",
			},
			[]string{"method"},
		),

		AutoCreateRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_autocreate_runs_total",
				Help: "Total number of cluster+infer+auto-create attempts by outcome",
			},
			[]string{"outcome"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracepilot_llm_request_duration_seconds",
				Help:    "Duration of executor LLM calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_llm_requests_total",
				Help: "Total number of executor LLM calls by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_llm_tokens_total",
				Help: "Total tokens consumed by provider, model, and token type",
			},
			[]string{"provider", "model", "type"},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_llm_cost_usd_total",
				Help: "Estimated LLM spend in USD by provider and model",
			},
			[]string{"provider", "model"},
		),

		GradeRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracepilot_grade_duration_seconds",
				Help:    "Duration of one grader LLM call in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"grader_id"},
		),

		GradeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_grade_errors_total",
				Help: "Total number of grader call failures by grader_id",
			},
			[]string{"grader_id"},
		),

		EvaluationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracepilot_evaluation_duration_seconds",
				Help:    "Duration of a full evaluation run in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"task_id"},
		),

		EvaluationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_evaluations_total",
				Help: "Total number of evaluations by terminal status",
			},
			[]string{"status"},
		),

		OptimizationIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_optimization_iterations_total",
				Help: "Total number of optimization loop iterations by outcome",
			},
			[]string{"outcome"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracepilot_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepilot_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordIngest records one ingest outcome (persisted|deduped|parse_error).
func (m *Metrics) RecordIngest(outcome string) {
	m.TracesIngested.WithLabelValues(outcome).Inc()
}

// RecordBinding records how a trace was bound to an implementation.
func (m *Metrics) RecordBinding(method string) {
	m.TraceMatched.WithLabelValues(method).Inc()
}

// RecordAutoCreate records one cluster+auto-create attempt's outcome.
func (m *Metrics) RecordAutoCreate(outcome string) {
	m.AutoCreateRuns.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest records one executor call's latency, status, and token
// usage.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens, cachedTokens, reasoningTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
	if cachedTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "cached").Add(float64(cachedTokens))
	}
	if reasoningTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "reasoning").Add(float64(reasoningTokens))
	}
}

// RecordLLMCost accumulates estimated spend for one executor call.
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordGrade records one grader call's latency and, if err is non-nil, a
// grading failure.
func (m *Metrics) RecordGrade(graderID string, durationSeconds float64, err error) {
	m.GradeRequestDuration.WithLabelValues(graderID).Observe(durationSeconds)
	if err != nil {
		m.GradeErrors.WithLabelValues(graderID).Inc()
	}
}

// RecordEvaluation records one evaluation run's duration and terminal
// status.
func (m *Metrics) RecordEvaluation(taskID, status string, durationSeconds float64) {
	m.EvaluationDuration.WithLabelValues(taskID).Observe(durationSeconds)
	m.EvaluationCounter.WithLabelValues(status).Inc()
}

// RecordOptimizationIteration records one optimization loop iteration's
// outcome.
func (m *Metrics) RecordOptimizationIteration(outcome string) {
	m.OptimizationIterations.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records one API request's latency and status.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
