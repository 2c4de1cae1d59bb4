package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrExecutorUnavailable indicates no database is configured for query execution.
var ErrExecutorUnavailable = errors.New("query executor unavailable")

// ErrStatementRejected is returned for anything other than a single SELECT statement.
var ErrStatementRejected = errors.New("only single select statements can be executed")

// QueryResult is the tabular outcome of an executed query.
type QueryResult struct {
	Columns         []string        `json:"columns"`
	Rows            [][]interface{} `json:"rows"`
	ExecutionTimeMs float64         `json:"execution_time"`
}

// Executor runs generated queries against the analytics database.
type Executor interface {
	Execute(ctx context.Context, query string) (QueryResult, error)
	Ping(ctx context.Context) error
}

type gormExecutor struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewExecutor wraps db. A nil db yields an executor whose calls fail with ErrExecutorUnavailable.
func NewExecutor(db *gorm.DB, logger zerolog.Logger) Executor {
	return &gormExecutor{
		db:     db,
		logger: logger.With().Str("component", "query_executor").Logger(),
	}
}

func (e *gormExecutor) Execute(ctx context.Context, query string) (QueryResult, error) {
	if e.db == nil {
		return QueryResult{}, ErrExecutorUnavailable
	}
	if !readOnlyStatement(query) {
		return QueryResult{}, ErrStatementRejected
	}

	start := time.Now()
	rows, err := e.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		e.logger.Error().Err(err).Str("query", query).Msg("query execution failed")
		return QueryResult{}, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("read columns: %w", err)
	}

	result := QueryResult{Columns: columns, Rows: make([][]interface{}, 0)}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return QueryResult{}, fmt.Errorf("scan row: %w", err)
		}
		for i, value := range values {
			if b, ok := value.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("iterate rows: %w", err)
	}

	result.ExecutionTimeMs = float64(time.Since(start)) / float64(time.Millisecond)
	return result, nil
}

func (e *gormExecutor) Ping(ctx context.Context) error {
	if e.db == nil {
		return ErrExecutorUnavailable
	}
	sqlDB, err := e.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// readOnlyStatement accepts one statement starting with SELECT, allowing a trailing semicolon.
func readOnlyStatement(query string) bool {
	trimmed := strings.TrimSpace(query)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	if strings.Contains(trimmed, ";") {
		return false
	}
	fields := strings.Fields(trimmed)
	return len(fields) > 0 && strings.EqualFold(fields[0], "select")
}
