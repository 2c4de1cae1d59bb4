package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation run statuses.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// EvaluationRun stores the aggregate outcome of one pass over the evaluation corpus.
type EvaluationRun struct {
	ID                   string           `gorm:"primaryKey;size:36" json:"id"`
	Status               string           `gorm:"size:32;index" json:"status"`
	Model                string           `gorm:"size:64" json:"model"`
	TotalTests           int              `json:"total_tests"`
	PassedTests          int              `json:"passed_tests"`
	FailedTests          int              `json:"failed_tests"`
	Accuracy             float64          `json:"accuracy"`
	AverageExecutionTime float64          `json:"average_execution_time"`
	CategoryBreakdown    datatypes.JSON   `gorm:"type:json" json:"category_breakdown"`
	Error                string           `gorm:"type:text" json:"error,omitempty"`
	StartedAt            time.Time        `json:"started_at"`
	CompletedAt          time.Time        `json:"completed_at"`
	CreatedAt            time.Time        `json:"created_at"`
	Cases                []EvaluationCase `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"cases,omitempty"`
}

// EvaluationCase stores the graded result of one corpus case within a run.
type EvaluationCase struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	RunID          string    `gorm:"size:36;index;not null" json:"-"`
	Position       int       `gorm:"not null" json:"-"`
	CaseID         string    `gorm:"size:64" json:"id"`
	Category       string    `gorm:"size:32;index" json:"category"`
	Description    string    `gorm:"size:255" json:"description"`
	GeneratedQuery string    `gorm:"type:text" json:"generated_query"`
	ExpectedQuery  string    `gorm:"type:text" json:"expected_query"`
	IsCorrect      bool      `gorm:"not null;default:false" json:"is_correct"`
	Status         string    `gorm:"size:32" json:"status"`
	LatencyMs      float64   `json:"latency_ms"`
	Clarification  string    `gorm:"type:text" json:"clarification,omitempty"`
	Error          string    `gorm:"type:text" json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
