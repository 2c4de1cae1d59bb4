package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	generationOutcomes    *prometheus.CounterVec
	evaluationRunsTotal   *prometheus.CounterVec
	evaluationAccuracy    prometheus.Gauge
	evaluationCaseLatency *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		generationOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_outcomes_total",
			Help: "Generation results by variant (query, clarification, failure).",
		}, []string{"outcome"})

		evaluationRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_runs_total",
			Help: "Evaluation runs by terminal status.",
		}, []string{"status"})

		evaluationAccuracy = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evaluation_accuracy",
			Help: "Accuracy of the most recent completed evaluation run.",
		})

		evaluationCaseLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evaluation_case_latency_seconds",
			Help:    "Generation latency per evaluated corpus case.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"category"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			generationOutcomes,
			evaluationRunsTotal, evaluationAccuracy, evaluationCaseLatency,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GenerationOutcomes exposes the counter of generation result variants.
func GenerationOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return generationOutcomes
}

// EvaluationRuns exposes the counter of evaluation runs.
func EvaluationRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationRunsTotal
}

// EvaluationAccuracy exposes the accuracy gauge of the latest run.
func EvaluationAccuracy() prometheus.Gauge {
	RegisterMetrics()
	return evaluationAccuracy
}

// EvaluationCaseLatency exposes the per-case latency histogram.
func EvaluationCaseLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationCaseLatency
}
