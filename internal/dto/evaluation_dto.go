package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/nl2sql-api/internal/evaluation"
	"github.com/noah-isme/nl2sql-api/internal/models"
)

// PaginationMeta describes pagination state for list endpoints.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// EvaluationListRequest defines pagination for listing evaluation runs.
type EvaluationListRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// EvaluationReport is the outcome of one evaluation run as returned to clients.
type EvaluationReport struct {
	RunID   string              `json:"run_id,omitempty"`
	Results []evaluation.Result `json:"results"`
	Metrics evaluation.Metrics  `json:"metrics"`
	Error   string              `json:"error,omitempty"`
}

// EvaluationRunResponse is the stored view of a past run.
type EvaluationRunResponse struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	Model       string              `json:"model,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
	Metrics     evaluation.Metrics  `json:"metrics"`
	Results     []evaluation.Result `json:"results,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// EvaluationListResponse wraps a page of runs.
type EvaluationListResponse struct {
	Items      []EvaluationRunResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// NewEvaluationRunResponse converts a stored run, including any loaded cases.
func NewEvaluationRunResponse(run models.EvaluationRun) EvaluationRunResponse {
	metrics := evaluation.Metrics{
		TotalTests:           run.TotalTests,
		PassedTests:          run.PassedTests,
		FailedTests:          run.FailedTests,
		Accuracy:             run.Accuracy,
		AverageExecutionTime: run.AverageExecutionTime,
		CategoryBreakdown:    map[evaluation.Category]evaluation.CategoryMetrics{},
	}
	if len(run.CategoryBreakdown) > 0 {
		_ = json.Unmarshal(run.CategoryBreakdown, &metrics.CategoryBreakdown)
	}

	var results []evaluation.Result
	if len(run.Cases) > 0 {
		results = make([]evaluation.Result, 0, len(run.Cases))
		for _, item := range run.Cases {
			results = append(results, evaluation.Result{
				ID:             item.CaseID,
				Category:       evaluation.Category(item.Category),
				Description:    item.Description,
				GeneratedQuery: item.GeneratedQuery,
				ExpectedQuery:  item.ExpectedQuery,
				IsCorrect:      item.IsCorrect,
				Status:         item.Status,
				LatencyMs:      item.LatencyMs,
				Timestamp:      item.Timestamp,
				Clarification:  item.Clarification,
				Error:          item.Error,
			})
		}
	}

	return EvaluationRunResponse{
		ID:          run.ID,
		Status:      run.Status,
		Model:       run.Model,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Metrics:     metrics,
		Results:     results,
		Error:       run.Error,
	}
}

// NewEvaluationRunModel converts a finished report into its persisted form.
func NewEvaluationRunModel(id, model string, startedAt, completedAt time.Time, report evaluation.Report) models.EvaluationRun {
	status := models.RunStatusCompleted
	if report.Error != "" {
		status = models.RunStatusFailed
	}

	breakdown, _ := json.Marshal(report.Metrics.CategoryBreakdown)

	cases := make([]models.EvaluationCase, 0, len(report.Results))
	for i, result := range report.Results {
		cases = append(cases, models.EvaluationCase{
			RunID:          id,
			Position:       i,
			CaseID:         result.ID,
			Category:       string(result.Category),
			Description:    result.Description,
			GeneratedQuery: result.GeneratedQuery,
			ExpectedQuery:  result.ExpectedQuery,
			IsCorrect:      result.IsCorrect,
			Status:         result.Status,
			LatencyMs:      result.LatencyMs,
			Clarification:  result.Clarification,
			Error:          result.Error,
			Timestamp:      result.Timestamp,
		})
	}

	return models.EvaluationRun{
		ID:                   id,
		Status:               status,
		Model:                model,
		TotalTests:           report.Metrics.TotalTests,
		PassedTests:          report.Metrics.PassedTests,
		FailedTests:          report.Metrics.FailedTests,
		Accuracy:             report.Metrics.Accuracy,
		AverageExecutionTime: report.Metrics.AverageExecutionTime,
		CategoryBreakdown:    breakdown,
		Error:                report.Error,
		StartedAt:            startedAt,
		CompletedAt:          completedAt,
		Cases:                cases,
	}
}

// Evaluation stream event types.
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// EvaluationEvent is one frame of a streamed evaluation, shared by SSE, websocket and NATS.
type EvaluationEvent struct {
	Type            string             `json:"type"`
	RunID           string             `json:"run_id,omitempty"`
	Message         string             `json:"message,omitempty"`
	Current         int                `json:"current,omitempty"`
	Total           int                `json:"total,omitempty"`
	Description     string             `json:"description,omitempty"`
	Status          string             `json:"status,omitempty"`
	ProgressPercent float64            `json:"progress_percent,omitempty"`
	Result          *evaluation.Result `json:"result,omitempty"`
	Results         *EvaluationReport  `json:"results,omitempty"`
}
