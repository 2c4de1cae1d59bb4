package dto

import "github.com/noah-isme/nl2sql-api/internal/database"

// QueryRequest carries the natural-language question to translate and execute.
type QueryRequest struct {
	NaturalLanguageQuery string `json:"natural_language_query" validate:"required,min=1,max=2000"`
}

// QueryResponse reports the generated query, or the clarification, and the execution result.
type QueryResponse struct {
	GeneratedQuery string                `json:"generated_query,omitempty"`
	Clarification  string                `json:"clarification,omitempty"`
	Status         string                `json:"status"`
	Results        *database.QueryResult `json:"results,omitempty"`
	ExecutionTime  *float64              `json:"execution_time,omitempty"`
	CacheHit       bool                  `json:"-"`
}

// ConnectionTestResponse reports whether a collaborator is reachable.
type ConnectionTestResponse struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}
