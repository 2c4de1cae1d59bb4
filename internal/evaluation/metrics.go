package evaluation

import "time"

// Result is the graded outcome of one corpus case.
type Result struct {
	ID             string    `json:"id"`
	Category       Category  `json:"category"`
	Description    string    `json:"description"`
	GeneratedQuery string    `json:"generated_query"`
	ExpectedQuery  string    `json:"expected_query"`
	IsCorrect      bool      `json:"is_correct"`
	Status         string    `json:"status"`
	LatencyMs      float64   `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
	Clarification  string    `json:"clarification,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// CategoryMetrics aggregates the results of one category.
type CategoryMetrics struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Accuracy float64 `json:"accuracy"`
}

// Metrics aggregates a whole run.
type Metrics struct {
	TotalTests           int                          `json:"total_tests"`
	PassedTests          int                          `json:"passed_tests"`
	FailedTests          int                          `json:"failed_tests"`
	Accuracy             float64                      `json:"accuracy"`
	AverageExecutionTime float64                      `json:"average_execution_time"`
	CategoryBreakdown    map[Category]CategoryMetrics `json:"category_breakdown"`
}

// Report is the outcome of one evaluation run. Error is set when the run could not start.
type Report struct {
	Results []Result `json:"results"`
	Metrics Metrics  `json:"metrics"`
	Error   string   `json:"error,omitempty"`
}

// ComputeMetrics derives Metrics from the full result list. Every known category appears in
// the breakdown, with zero values when no result belongs to it.
func ComputeMetrics(results []Result) Metrics {
	metrics := Metrics{
		TotalTests:        len(results),
		CategoryBreakdown: make(map[Category]CategoryMetrics, len(Categories)),
	}

	var totalLatency float64
	for _, result := range results {
		totalLatency += result.LatencyMs
		if result.IsCorrect {
			metrics.PassedTests++
		}
	}
	metrics.FailedTests = metrics.TotalTests - metrics.PassedTests
	if metrics.TotalTests > 0 {
		metrics.Accuracy = float64(metrics.PassedTests) / float64(metrics.TotalTests)
		metrics.AverageExecutionTime = totalLatency / float64(metrics.TotalTests)
	}

	for _, category := range Categories {
		var breakdown CategoryMetrics
		for _, result := range results {
			if result.Category != category {
				continue
			}
			breakdown.Total++
			if result.IsCorrect {
				breakdown.Passed++
			}
		}
		if breakdown.Total > 0 {
			breakdown.Accuracy = float64(breakdown.Passed) / float64(breakdown.Total)
		}
		metrics.CategoryBreakdown[category] = breakdown
	}

	return metrics
}
