package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/nl2sql-api/internal/database"
	"github.com/noah-isme/nl2sql-api/internal/dto"
	"github.com/noah-isme/nl2sql-api/internal/generation"
	"github.com/noah-isme/nl2sql-api/internal/middleware"
)

var (
	// ErrQueryEmpty indicates the question was blank after trimming.
	ErrQueryEmpty = errors.New("natural language query is empty")
	// ErrGenerationFailed wraps a failure reported by the generation service.
	ErrGenerationFailed = errors.New("query generation failed")
	// ErrExecutionFailed wraps a database error raised while running a generated query.
	ErrExecutionFailed = errors.New("query execution failed")
)

const queryCachePrefix = "nl2sql:query:"

// QueryService translates a question into a query and runs it.
type QueryService interface {
	Answer(ctx context.Context, req dto.QueryRequest) (dto.QueryResponse, error)
}

type queryService struct {
	generator generation.Generator
	executor  database.Executor
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewQueryService wires the generation and execution capabilities. A nil cache disables caching.
func NewQueryService(generator generation.Generator, executor database.Executor, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) QueryService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &queryService{
		generator: generator,
		executor:  executor,
		cache:     cache,
		cacheTTL:  ttl,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "query_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/nl2sql-api/internal/service/query"),
	}
}

func (s *queryService) Answer(ctx context.Context, req dto.QueryRequest) (dto.QueryResponse, error) {
	question := strings.TrimSpace(req.NaturalLanguageQuery)
	if question == "" {
		return dto.QueryResponse{}, ErrQueryEmpty
	}
	req.NaturalLanguageQuery = question
	if err := s.validator.Struct(req); err != nil {
		return dto.QueryResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "query.answer")
	defer span.End()

	query, cacheHit := s.cachedQuery(ctx, question)
	if !cacheHit {
		result := s.generator.Generate(ctx, question)
		switch result.Kind() {
		case generation.KindClarification:
			message, _ := result.Clarification()
			return dto.QueryResponse{
				Clarification: strings.TrimSpace(s.sanitizer.Sanitize(message)),
				Status:        generation.StatusNeedsClarification,
			}, nil
		case generation.KindFailure:
			reason, _ := result.Failure()
			span.SetStatus(codes.Error, reason)
			middleware.LoggerFromContext(ctx, s.logger).Warn().Str("reason", reason).Msg("generation returned a failure")
			return dto.QueryResponse{Status: generation.StatusError}, fmt.Errorf("%w: %s", ErrGenerationFailed, reason)
		}
		query, _ = result.Query()
	}

	if strings.TrimSpace(query) == "" {
		return dto.QueryResponse{Status: generation.StatusError}, nil
	}
	span.SetAttributes(attribute.String("query", query), attribute.Bool("cache_hit", cacheHit))

	rows, err := s.executor.Execute(ctx, query)
	if err != nil {
		middleware.LoggerFromContext(ctx, s.logger).Warn().Err(err).Str("query", query).Msg("generated query did not execute")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, database.ErrExecutorUnavailable) {
			return dto.QueryResponse{GeneratedQuery: query, Status: generation.StatusError}, err
		}
		return dto.QueryResponse{GeneratedQuery: query, Status: generation.StatusError}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	if !cacheHit {
		s.storeQuery(ctx, question, query)
	}

	executionTime := rows.ExecutionTimeMs
	return dto.QueryResponse{
		GeneratedQuery: query,
		Status:         generation.StatusSuccess,
		Results:        &rows,
		ExecutionTime:  &executionTime,
		CacheHit:       cacheHit,
	}, nil
}

// cacheKey folds case and whitespace so trivially different phrasings share an entry.
func cacheKey(question string) string {
	return queryCachePrefix + strings.ToLower(strings.Join(strings.Fields(question), " "))
}

type cachedQuery struct {
	Query string `json:"query"`
}

func (s *queryService) cachedQuery(ctx context.Context, question string) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	raw, err := s.cache.Get(ctx, cacheKey(question)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read query cache")
		}
		return "", false
	}

	var entry cachedQuery
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || strings.TrimSpace(entry.Query) == "" {
		return "", false
	}
	s.logger.Debug().Str("question", question).Msg("query cache hit")
	return entry.Query, true
}

// storeQuery caches only queries that executed; clarifications depend on service state.
func (s *queryService) storeQuery(ctx context.Context, question, query string) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(cachedQuery{Query: query})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(question), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store query cache")
	}
}
