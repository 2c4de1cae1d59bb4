package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nl2sql-api/internal/database"
	"github.com/noah-isme/nl2sql-api/internal/dto"
	"github.com/noah-isme/nl2sql-api/internal/evaluation"
	"github.com/noah-isme/nl2sql-api/internal/generation"
)

// DiagnosticsService checks that the generation and execution capabilities are reachable.
type DiagnosticsService interface {
	Generator(ctx context.Context) dto.ConnectionTestResponse
	Database(ctx context.Context) dto.ConnectionTestResponse
}

type diagnosticsService struct {
	generator evaluation.ReadinessChecker
	executor  database.Executor
	logger    zerolog.Logger
}

// NewDiagnosticsService builds the reachability checks. A nil generator reports unavailable.
func NewDiagnosticsService(generator evaluation.ReadinessChecker, executor database.Executor, logger zerolog.Logger) DiagnosticsService {
	return &diagnosticsService{
		generator: generator,
		executor:  executor,
		logger:    logger.With().Str("component", "diagnostics_service").Logger(),
	}
}

func (s *diagnosticsService) Generator(ctx context.Context) dto.ConnectionTestResponse {
	if s.generator == nil {
		return dto.ConnectionTestResponse{Error: generation.ErrGeneratorUnavailable.Error()}
	}
	if err := s.generator.Ready(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("generator connection test failed")
		return dto.ConnectionTestResponse{Error: err.Error()}
	}
	return dto.ConnectionTestResponse{Connected: true}
}

func (s *diagnosticsService) Database(ctx context.Context) dto.ConnectionTestResponse {
	if s.executor == nil {
		return dto.ConnectionTestResponse{Error: database.ErrExecutorUnavailable.Error()}
	}
	if err := s.executor.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("database connection test failed")
		return dto.ConnectionTestResponse{Error: err.Error()}
	}
	return dto.ConnectionTestResponse{Connected: true}
}
